package ai

import (
	"context"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
)

// settings is the generator slice of the config with defaults applied.
type settings struct {
	Model       string
	Endpoint    string
	MaxTokens   int
	Temperature float32
}

func valueOrDefault(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}

// transportOrCanceled classifies a failed call. Context errors keep their
// identity so callers can tell a timeout from a refused connection.
func transportOrCanceled(ctx context.Context, provider string, status int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewTransportError(provider, status, errors.Wrap(ctxErr, err.Error()))
	}
	return domain.NewTransportError(provider, status, err)
}
