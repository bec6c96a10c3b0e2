package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/pkg/filesystem"
	"github.com/doeshing/conv/internal/ports"
)

const sqliteBusyTimeoutMS = 5000

// SQLiteLog persists turns in a SQLite database.
type SQLiteLog struct {
	path string

	once    sync.Once
	db      *sql.DB
	openErr error
}

// NewSQLiteLog targets path, or $TMPDIR/conv_history.db when path is empty.
// The database is opened lazily on first use.
func NewSQLiteLog(path string) *SQLiteLog {
	if path == "" {
		path = filesystem.TempPath("conv_history.db")
	}
	return &SQLiteLog{path: path}
}

func (s *SQLiteLog) open(ctx context.Context) (*sql.DB, error) {
	s.once.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.openErr = err
			return
		}
		dsn := "file:" + s.path + "?_pragma=busy_timeout(" + strconv.Itoa(sqliteBusyTimeoutMS) + ")"
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			s.openErr = err
			return
		}
		_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT,
			request TEXT NOT NULL,
			command TEXT NOT NULL,
			status_kind TEXT NOT NULL,
			status_detail TEXT NOT NULL
		);`)
		if err != nil {
			_ = db.Close()
			s.openErr = err
			return
		}
		s.db = db
	})
	if s.openErr != nil {
		return nil, s.wrap("open", s.openErr)
	}
	return s.db, nil
}

// Append inserts a new turn.
func (s *SQLiteLog) Append(ctx context.Context, turn domain.Turn) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = db.ExecContext(ctx, `INSERT INTO turns
		(created_at, request, command, status_kind, status_detail)
		VALUES (?, ?, ?, ?, ?)`,
		ts.UTC().Format(domain.TimestampFormat),
		turn.Request,
		turn.Command,
		string(turn.Status.Kind),
		turn.Status.Detail,
	)
	return s.wrap("append", err)
}

// Recent returns up to n turns, oldest first.
func (s *SQLiteLog) Recent(ctx context.Context, n int) ([]domain.Turn, error) {
	if n <= 0 {
		return []domain.Turn{}, nil
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT created_at, request, command, status_kind, status_detail
		FROM turns ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, s.wrap("read", err)
	}
	defer rows.Close()

	var newestFirst []domain.Turn
	for rows.Next() {
		var (
			turn             domain.Turn
			ts, kind, detail string
		)
		if err := rows.Scan(&ts, &turn.Request, &turn.Command, &kind, &detail); err != nil {
			return nil, s.wrap("read", err)
		}
		if t, err := time.Parse(domain.TimestampFormat, ts); err == nil {
			turn.Timestamp = t
		}
		turn.Status = domain.Status{Kind: domain.StatusKind(kind), Detail: detail}
		newestFirst = append(newestFirst, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("read", err)
	}

	turns := make([]domain.Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		turns = append(turns, newestFirst[i])
	}
	return turns, nil
}

// Clear deletes all turns.
func (s *SQLiteLog) Clear(ctx context.Context) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "DELETE FROM turns")
	return s.wrap("clear", err)
}

// Path returns the sqlite database path.
func (s *SQLiteLog) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteLog) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteLog) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.HistoryIOError{Op: op, Path: s.path, Err: errors.WithStack(err)}
}

var _ ports.HistoryLog = (*SQLiteLog)(nil)
