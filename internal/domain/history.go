package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StatusKind classifies how a turn ended.
type StatusKind string

const (
	StatusSuccess          StatusKind = "Success"
	StatusExecutionFailed  StatusKind = "ExecutionFailed"
	StatusGenerationFailed StatusKind = "GenerationFailed"
)

// Status is the recorded outcome of a turn. Detail is empty for successes.
type Status struct {
	Kind   StatusKind
	Detail string
}

// Succeeded builds a success status.
func Succeeded() Status {
	return Status{Kind: StatusSuccess}
}

// ExecutionFailed builds a failed-execution status carrying detail.
func ExecutionFailed(detail string) Status {
	return Status{Kind: StatusExecutionFailed, Detail: detail}
}

// GenerationFailed builds a failed-generation status carrying detail.
func GenerationFailed(detail string) Status {
	return Status{Kind: StatusGenerationFailed, Detail: detail}
}

// Failed reports whether the status is any kind of failure.
func (s Status) Failed() bool {
	return s.Kind != StatusSuccess
}

// String renders the canonical text form, e.g. "ExecutionFailed: permission denied".
func (s Status) String() string {
	if s.Kind == StatusSuccess {
		return string(StatusSuccess)
	}
	return string(s.Kind) + ": " + s.Detail
}

// ParseStatus inverts Status.String.
func ParseStatus(raw string) (Status, error) {
	if raw == string(StatusSuccess) {
		return Succeeded(), nil
	}
	kind, detail, found := strings.Cut(raw, ":")
	switch StatusKind(kind) {
	case StatusExecutionFailed, StatusGenerationFailed:
	default:
		return Status{}, errors.Errorf("unknown status %q", raw)
	}
	if found {
		detail = strings.TrimPrefix(detail, " ")
	}
	return Status{Kind: StatusKind(kind), Detail: detail}, nil
}

// Turn is one completed request cycle. Turns are values and are never mutated after recording.
type Turn struct {
	Request   string
	Command   string
	Status    Status
	Timestamp time.Time
}
