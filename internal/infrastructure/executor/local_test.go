package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/conv/internal/domain"
)

func newTestExecutor(t *testing.T, opts Options) (*LocalExecutor, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	var stdout, stderr bytes.Buffer
	opts.Stdin = strings.NewReader("")
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	return NewLocalExecutor(opts), &stdout, &stderr
}

func TestDiagnosticMarkerNeverReachesShell(t *testing.T) {
	dir := t.TempDir()
	sentinel := filepath.Join(dir, "ran")
	runner, _, _ := newTestExecutor(t, Options{})

	text := "ERROR: cannot convert a spreadsheet to audio; touch " + sentinel
	result := runner.Execute(context.Background(), "  "+text)

	assert.True(t, result.Skipped)
	assert.Equal(t, domain.ExecutionFailed("cannot convert a spreadsheet to audio; touch "+sentinel), result.Status)
	_, err := os.Stat(sentinel)
	assert.True(t, os.IsNotExist(err), "diagnostic text must not be executed")
}

func TestDiagnosticAfterCommentLine(t *testing.T) {
	dir := t.TempDir()
	sentinel := filepath.Join(dir, "ran")
	runner, _, stderr := newTestExecutor(t, Options{})

	text := "# the input file does not exist\n\nERROR: input.heic not found\ntouch " + sentinel
	result := runner.Execute(context.Background(), text)

	assert.True(t, result.Skipped)
	assert.Equal(t, domain.ExecutionFailed("input.heic not found\ntouch "+sentinel), result.Status)
	assert.Empty(t, stderr.String())
	_, err := os.Stat(sentinel)
	assert.True(t, os.IsNotExist(err), "diagnostic text must not be executed")
}

func TestIsDiagnostic(t *testing.T) {
	cases := []struct {
		text        string
		explanation string
		ok          bool
	}{
		{text: "ERROR: no such format", explanation: "no such format", ok: true},
		{text: "  ERROR:   padded  ", explanation: "padded", ok: true},
		{text: "# cause\nERROR: cannot fix", explanation: "cannot fix", ok: true},
		{text: "# only a comment", ok: false},
		{text: "# rotate\nmagick a.jpg -rotate 90 a.jpg", ok: false},
		{text: "echo ERROR: in output", ok: false},
		{text: "", ok: false},
	}
	for _, tc := range cases {
		explanation, ok := IsDiagnostic(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.explanation, explanation, tc.text)
	}
}

func TestExecuteSuccess(t *testing.T) {
	runner, stdout, _ := newTestExecutor(t, Options{})

	result := runner.Execute(context.Background(), "echo converted")
	assert.Equal(t, domain.Succeeded(), result.Status)
	assert.Zero(t, result.ExitCode)
	assert.False(t, result.Skipped)
	assert.Equal(t, "converted\n", stdout.String())
}

func TestExecuteFailureCarriesStderr(t *testing.T) {
	runner, _, stderr := newTestExecutor(t, Options{})

	result := runner.Execute(context.Background(), "echo 'magick: permission denied' >&2; exit 3")
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, domain.ExecutionFailed("magick: permission denied"), result.Status)
	assert.Contains(t, stderr.String(), "permission denied", "stderr is still shown to the user")
}

func TestExecuteFailureWithoutStderr(t *testing.T) {
	runner, _, _ := newTestExecutor(t, Options{})

	result := runner.Execute(context.Background(), "exit 7")
	assert.Equal(t, domain.ExecutionFailed("exit status 7"), result.Status)
}

func TestExecuteMultiLineScript(t *testing.T) {
	dir := t.TempDir()
	runner, stdout, _ := newTestExecutor(t, Options{})

	script := "cd \"" + dir + "\"\n\necho one > a.txt\ncp a.txt b.txt\ncat b.txt"
	result := runner.Execute(context.Background(), script)
	require.Equal(t, domain.Succeeded(), result.Status)
	assert.Equal(t, "one\n", stdout.String())
}

func TestExecuteBoundsDiagnostic(t *testing.T) {
	runner, _, _ := newTestExecutor(t, Options{MaxDiagnosticBytes: 64})

	result := runner.Execute(context.Background(), "i=0; while [ $i -lt 200 ]; do echo line$i >&2; i=$((i+1)); done; exit 1")
	assert.LessOrEqual(t, len(result.Status.Detail), 64)
	assert.True(t, strings.HasSuffix(result.Status.Detail, "line199"))
}

func TestExecuteLaunchFailure(t *testing.T) {
	runner, _, _ := newTestExecutor(t, Options{Shell: filepath.Join(t.TempDir(), "no-such-shell")})

	result := runner.Execute(context.Background(), "true")
	assert.Equal(t, domain.StatusExecutionFailed, result.Status.Kind)
	assert.NotEmpty(t, result.Status.Detail)
	assert.Equal(t, -1, result.ExitCode)
}

func TestExecuteTimeout(t *testing.T) {
	runner, _, _ := newTestExecutor(t, Options{Timeout: 100 * time.Millisecond})

	result := runner.Execute(context.Background(), "sleep 5")
	assert.Equal(t, domain.StatusExecutionFailed, result.Status.Kind)
	assert.True(t, strings.HasPrefix(result.Status.Detail, "timed out after 100ms"), result.Status.Detail)
	assert.Less(t, result.Duration, 5*time.Second)
}

func TestExecuteCanceled(t *testing.T) {
	runner, _, _ := newTestExecutor(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result := runner.Execute(ctx, "sleep 5")
	assert.True(t, strings.HasPrefix(result.Status.Detail, "canceled"), result.Status.Detail)
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(5)
	_, _ = tail.Write([]byte("abc"))
	assert.Equal(t, "abc", tail.String())
	_, _ = tail.Write([]byte("defg"))
	assert.Equal(t, "cdefg", tail.String())
	_, _ = tail.Write([]byte("0123456789"))
	assert.Equal(t, "56789", tail.String())

	utf := newTailBuffer(4)
	_, _ = utf.Write([]byte("aé€"))
	assert.Equal(t, "€", utf.String())
}
