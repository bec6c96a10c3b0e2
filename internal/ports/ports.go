// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the session core and external
// adapters (infrastructure). The core only ever sees these interfaces, so the
// generator, the shell, the persisted stores and the terminal can each be
// replaced by a stub in tests.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., CommandGenerator, HistoryLog)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/conv/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.config/conv/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector gathers environmental context (OS, shell, tools) to enrich prompts.
type ContextCollector interface {
	Collect(context.Context, domain.Config) (domain.ContextSnapshot, error)
}

// CredentialStore persists and resolves named secrets.
// Resolution order is environment override, persisted value, interactive prompt.
type CredentialStore interface {
	Resolve(ctx context.Context, name string) (domain.Credential, error)
	// Lookup is Resolve without the prompt step.
	Lookup(ctx context.Context, name string) (domain.Credential, bool)
	Set(ctx context.Context, name, value string) error
}

// CredentialPrompter asks the user for a missing secret. Implementations that
// cannot reach a user return domain.ErrNonInteractive.
type CredentialPrompter interface {
	PromptSecret(ctx context.Context, name string) (string, error)
}

// HistoryLog is the append-only record of past turns.
type HistoryLog interface {
	Append(ctx context.Context, turn domain.Turn) error
	// Recent returns up to n most recent turns, oldest first.
	Recent(ctx context.Context, n int) ([]domain.Turn, error)
	Clear(ctx context.Context) error
	Path() string
}

// PromptBuilder renders the message sequence sent to the generator. It performs no I/O.
type PromptBuilder interface {
	Build(PromptInput) ([]domain.Message, error)
}

// PromptInput carries everything the prompt builder needs.
type PromptInput struct {
	Request string
	History []domain.Turn
	Context domain.ContextSnapshot
}

// GeneratorFactory builds generator instances from configuration.
type GeneratorFactory interface {
	ForConfig(domain.Config) (CommandGenerator, error)
}

// CommandGenerator turns messages into command text. On failure it returns a
// *domain.GenerationError; on success the text is never empty.
type CommandGenerator interface {
	Name() string
	Generate(ctx context.Context, credential domain.Credential, messages []domain.Message) (domain.Generation, error)
}

// CommandExecutor runs one generated script and classifies the outcome.
type CommandExecutor interface {
	Execute(ctx context.Context, command string) domain.ExecutionResult
}

// SessionObserver is told about pipeline progress so a terminal UI can show it.
// Running is called before the command starts, since the command writes to the
// same terminal.
type SessionObserver interface {
	Querying(request string)
	Generated()
	Running(command string)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
