package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNonInteractive is returned by a credential prompter that cannot ask the user.
var ErrNonInteractive = errors.New("no interactive terminal available")

// ConfigError means the invocation cannot proceed because configuration or a
// credential could not be resolved. It is the only error that aborts a session.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// GenerationFailure distinguishes why a generator produced no usable text.
type GenerationFailure string

const (
	// GenerationTransport covers network, authentication, quota and service errors.
	GenerationTransport GenerationFailure = "transport"
	// GenerationMalformed covers unparsable, empty or truncated payloads.
	GenerationMalformed GenerationFailure = "malformed"
)

// GenerationError is returned by every CommandGenerator on failure.
type GenerationError struct {
	Kind     GenerationFailure
	Provider string
	// StatusCode is the service status (usually HTTP) when one was received, zero otherwise.
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	prefix := e.Provider
	if prefix == "" {
		prefix = "generator"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failure (status %d): %v", prefix, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failure: %v", prefix, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a transport/service failure.
func NewTransportError(provider string, status int, err error) *GenerationError {
	return &GenerationError{Kind: GenerationTransport, Provider: provider, StatusCode: status, Err: err}
}

// NewMalformedError wraps err as a malformed-response failure.
func NewMalformedError(provider string, err error) *GenerationError {
	return &GenerationError{Kind: GenerationMalformed, Provider: provider, Err: err}
}

// ExecutionError describes a command that exited non-zero or could not be launched.
type ExecutionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.ExitCode)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// HistoryIOError wraps failures reading or writing the history log. Sessions
// treat it as a warning and continue with an empty history.
type HistoryIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *HistoryIOError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *HistoryIOError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
