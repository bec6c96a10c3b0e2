package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/pkg/logger"
)

func newTestLog(t *testing.T) *TextLog {
	t.Helper()
	return NewTextLog(afero.NewOsFs(), filepath.Join(t.TempDir(), "history.txt"), logger.Nop())
}

func turnN(i int) domain.Turn {
	return domain.Turn{
		Request: fmt.Sprintf("request %d", i),
		Command: fmt.Sprintf("echo %d", i),
		Status:  domain.Succeeded(),
	}
}

func TestRecentCreatesMissingFile(t *testing.T) {
	log := newTestLog(t)

	turns, err := log.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, turns)

	info, err := os.Stat(log.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestRecentReturnsWindowInInsertionOrder(t *testing.T) {
	tests := []struct {
		name    string
		written int
		n       int
		want    []string
	}{
		{name: "fewer than window", written: 2, n: 5, want: []string{"request 0", "request 1"}},
		{name: "exactly window", written: 3, n: 3, want: []string{"request 0", "request 1", "request 2"}},
		{name: "more than window", written: 7, n: 3, want: []string{"request 4", "request 5", "request 6"}},
		{name: "zero window", written: 2, n: 0, want: []string{}},
		{name: "empty log", written: 0, n: 5, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newTestLog(t)
			ctx := context.Background()
			for i := 0; i < tt.written; i++ {
				require.NoError(t, log.Append(ctx, turnN(i)))
			}

			turns, err := log.Recent(ctx, tt.n)
			require.NoError(t, err)
			got := make([]string, 0, len(turns))
			for _, turn := range turns {
				got = append(got, turn.Request)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClearEmptiesLog(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, log.Append(ctx, turnN(i)))
	}

	require.NoError(t, log.Clear(ctx))

	turns, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	// the log keeps working after a clear
	require.NoError(t, log.Append(ctx, turnN(9)))
	turns, err = log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "request 9", turns[0].Request)
}

func TestMultiLineCommandSurvivesPersistence(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	script := "brew install imagemagick\n\nfor f in *.webp; do\n  magick \"$f\" \"${f%.webp}.png\"\ndone"
	require.NoError(t, log.Append(ctx, domain.Turn{
		Request: "convert all webp\n\nto png",
		Command: script,
		Status:  domain.ExecutionFailed("magick: not found\n\nexit 127"),
	}))
	require.NoError(t, log.Append(ctx, turnN(1)))

	turns, err := log.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, script, turns[0].Command)
	assert.Equal(t, "convert all webp\n\nto png", turns[0].Request)
	assert.Equal(t, domain.ExecutionFailed("magick: not found\n\nexit 127"), turns[0].Status)
}

func TestAppendRepairsTornTail(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()
	torn := "Question: a\nAnswer: ls\nStatus: Success"
	require.NoError(t, os.WriteFile(log.Path(), []byte(torn), 0o644))

	require.NoError(t, log.Append(ctx, turnN(1)))

	turns, err := log.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "a", turns[0].Request)
	assert.Equal(t, "request 1", turns[1].Request)
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.txt")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// separate instances mimic separate processes sharing the file
			log := NewTextLog(afero.NewOsFs(), path, logger.Nop())
			turn := turnN(i)
			turn.Command = strings.Repeat("x", 4096) + fmt.Sprint(i)
			assert.NoError(t, log.Append(ctx, turn))
		}(i)
	}
	wg.Wait()

	turns, err := NewTextLog(afero.NewOsFs(), path, logger.Nop()).Recent(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, turns, 20)
}

func TestUnwritableLocationReportsHistoryIOError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	log := NewTextLog(afero.NewOsFs(), filepath.Join(blocker, "history.txt"), logger.Nop())
	err := log.Append(context.Background(), turnN(0))
	require.Error(t, err)

	var ioErr *domain.HistoryIOError
	assert.ErrorAs(t, err, &ioErr)
}
