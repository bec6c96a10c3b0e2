package history

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/pkg/filesystem"
	"github.com/doeshing/conv/internal/pkg/fslock"
	"github.com/doeshing/conv/internal/ports"
)

// TextLog appends turns to a line-oriented text file, one labeled record per turn.
type TextLog struct {
	fs   afero.Fs
	path string
	log  ports.Logger
}

// NewTextLog creates a log at path, or at $TMPDIR/conv_history.txt when path is empty.
func NewTextLog(fs afero.Fs, path string, log ports.Logger) *TextLog {
	if path == "" {
		path = filesystem.TempPath(domain.DefaultHistoryFileName)
	}
	return &TextLog{fs: fs, path: path, log: log}
}

// Path returns the backing file path.
func (l *TextLog) Path() string {
	return l.path
}

// Append implements ports.HistoryLog.
func (l *TextLog) Append(ctx context.Context, turn domain.Turn) error {
	err := fslock.Exclusive(ctx, l.path, func() error {
		if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return err
		}
		file, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, domain.SharedFilePermissions)
		if err != nil {
			return err
		}
		defer file.Close()

		record := encodeTurn(turn)
		prefix, err := boundaryPrefix(file)
		if err != nil {
			return err
		}
		if _, err := file.Write(append(prefix, record...)); err != nil {
			return err
		}
		return file.Sync()
	})
	return l.wrap("append", err)
}

// Recent implements ports.HistoryLog. A missing file is created empty.
func (l *TextLog) Recent(ctx context.Context, n int) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := fslock.Shared(ctx, l.path, func() error {
		if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return err
		}
		file, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_RDONLY, domain.SharedFilePermissions)
		if err != nil {
			return err
		}
		defer file.Close()

		turns, err = decodeTurns(file, l.skipRecord)
		return err
	})
	if err != nil {
		return nil, l.wrap("read", err)
	}
	return tail(turns, n), nil
}

// Clear truncates the log to empty.
func (l *TextLog) Clear(ctx context.Context) error {
	err := fslock.Exclusive(ctx, l.path, func() error {
		if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return err
		}
		file, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.SharedFilePermissions)
		if err != nil {
			return err
		}
		return file.Close()
	})
	return l.wrap("clear", err)
}

func (l *TextLog) skipRecord(lines []string, err error) {
	if l.log == nil {
		return
	}
	l.log.Warn("skipping unreadable history record", map[string]interface{}{
		"path":  l.path,
		"lines": len(lines),
		"error": err.Error(),
	})
}

func (l *TextLog) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.HistoryIOError{Op: op, Path: l.path, Err: err}
}

// boundaryPrefix returns the newlines needed so the next record starts after a
// blank line, repairing a log whose last write was cut short.
func boundaryPrefix(file afero.File) ([]byte, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}
	n := int64(2)
	if size < n {
		n = size
	}
	last := make([]byte, n)
	if _, err := file.ReadAt(last, size-n); err != nil {
		return nil, err
	}
	switch {
	case bytes.HasSuffix(last, []byte("\n\n")), size == 1 && last[0] == '\n':
		return nil, nil
	case bytes.HasSuffix(last, []byte("\n")):
		return []byte("\n"), nil
	default:
		return []byte("\n\n"), nil
	}
}

func tail(turns []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(turns) == 0 {
		return []domain.Turn{}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

var _ ports.HistoryLog = (*TextLog)(nil)
