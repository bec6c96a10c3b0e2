// Package executor runs generated scripts on the host shell.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// waitDelay bounds how long a canceled script may keep its pipes open.
const waitDelay = 2 * time.Second

// Options configures a LocalExecutor. Nil streams default to the process stdio.
type Options struct {
	Shell              string
	Timeout            time.Duration
	MaxDiagnosticBytes int
	Stdin              io.Reader
	Stdout             io.Writer
	Stderr             io.Writer
	Logger             ports.Logger
}

// LocalExecutor runs commands on the host shell.
type LocalExecutor struct {
	shell   string
	timeout time.Duration
	maxDiag int
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	log     ports.Logger
}

// NewLocalExecutor builds a new executor, shell defaults to /bin/sh.
func NewLocalExecutor(opts Options) *LocalExecutor {
	e := &LocalExecutor{
		shell:   opts.Shell,
		timeout: opts.Timeout,
		maxDiag: opts.MaxDiagnosticBytes,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		log:     opts.Logger,
	}
	if e.shell == "" {
		e.shell = domain.DefaultShell
	}
	if e.maxDiag <= 0 {
		e.maxDiag = domain.DefaultMaxDiagnosticBytes
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	return e
}

// IsDiagnostic reports whether text is an explanation from the generator
// rather than a command, and returns the explanation. Leading blank and
// "#" comment lines are skipped before the marker is checked.
func IsDiagnostic(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !strings.HasPrefix(trimmed, domain.DiagnosticMarker) {
			return "", false
		}
		rest := append([]string{strings.TrimPrefix(trimmed, domain.DiagnosticMarker)}, lines[i+1:]...)
		return strings.TrimSpace(strings.Join(rest, "\n")), true
	}
	return "", false
}

// Execute implements ports.CommandExecutor.
func (e *LocalExecutor) Execute(ctx context.Context, command string) domain.ExecutionResult {
	if explanation, ok := IsDiagnostic(command); ok {
		e.debug("skipping diagnostic reply", map[string]interface{}{"explanation": explanation})
		return domain.ExecutionResult{
			Status:   domain.ExecutionFailed(explanation),
			ExitCode: -1,
			Skipped:  true,
		}
	}
	if strings.TrimSpace(command) == "" {
		return domain.ExecutionResult{Status: domain.ExecutionFailed("empty command"), ExitCode: -1}
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	name, args := e.shellInvocation(command)
	c := exec.CommandContext(runCtx, name, args...)
	c.WaitDelay = waitDelay
	tail := newTailBuffer(e.maxDiag)
	c.Stdin = e.stdin
	c.Stdout = e.stdout
	c.Stderr = io.MultiWriter(e.stderr, tail)

	e.debug("running command", map[string]interface{}{"shell": name, "timeout": e.timeout.String()})
	start := time.Now()
	err := c.Run()
	result := domain.ExecutionResult{Duration: time.Since(start)}

	if err == nil {
		result.Status = domain.Succeeded()
		return result
	}

	execErr := &domain.ExecutionError{ExitCode: -1, Stderr: strings.TrimSpace(tail.String()), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	result.ExitCode = execErr.ExitCode
	result.Status = domain.ExecutionFailed(e.describe(runCtx, ctx, execErr))
	return result
}

// describe renders the failure detail stored in the status.
func (e *LocalExecutor) describe(runCtx, parent context.Context, execErr *domain.ExecutionError) string {
	var reason string
	switch {
	case parent.Err() != nil:
		reason = "canceled"
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		reason = fmt.Sprintf("timed out after %s", e.timeout)
	}

	detail := execErr.Stderr
	if detail == "" {
		var exitErr *exec.ExitError
		if errors.As(execErr.Err, &exitErr) && execErr.ExitCode >= 0 {
			detail = fmt.Sprintf("exit status %d", execErr.ExitCode)
		} else {
			detail = execErr.Err.Error()
		}
	}
	if reason != "" {
		detail = reason + ": " + detail
	}
	return detail
}

func (e *LocalExecutor) shellInvocation(command string) (string, []string) {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(e.shell), ".exe"))
	if base == "cmd" {
		return e.shell, []string{"/C", command}
	}
	return e.shell, []string{"-c", command}
}

func (e *LocalExecutor) debug(msg string, fields map[string]interface{}) {
	if e.log != nil {
		e.log.Debug(msg, fields)
	}
}

var _ ports.CommandExecutor = (*LocalExecutor)(nil)
