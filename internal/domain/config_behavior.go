package domain

import (
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
)

// CredentialName returns the credential section for the configured provider.
func (c *Config) CredentialName() string {
	if c.Generator.Credential != "" {
		return NormalizeCredentialName(c.Generator.Credential)
	}
	return c.Generator.Provider.DefaultCredentialName()
}

// AllowsAnonymous reports whether a missing credential may be replaced by an empty one.
func (c *Config) AllowsAnonymous() bool {
	return c.Credentials.AllowAnonymous || c.Generator.Provider.AllowsAnonymous()
}

// HistoryWindow returns the number of turns fed back into prompts
func (c *Config) HistoryWindow() int {
	if c.History.Window <= 0 {
		return DefaultHistoryWindow
	}
	return c.History.Window
}

// GeneratorTimeout returns the deadline for one generator call
func (c *Config) GeneratorTimeout() time.Duration {
	if c.Generator.TimeoutSeconds <= 0 {
		return DefaultGeneratorTimeout
	}
	return time.Duration(c.Generator.TimeoutSeconds) * time.Second
}

// ExecutionTimeout returns the deadline for one generated command.
// Zero means the command may run until it finishes or the user interrupts it.
func (c *Config) ExecutionTimeout() time.Duration {
	if c.Execution.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Execution.TimeoutSeconds) * time.Second
}

// GetExecutionShell returns the configured shell for command execution.
// "auto" follows $SHELL, empty falls back to /bin/sh.
func (c *Config) GetExecutionShell() string {
	switch c.Execution.Shell {
	case "":
		if runtime.GOOS == "windows" {
			return "cmd"
		}
		return DefaultShell
	case "auto":
		if shell := os.Getenv("SHELL"); shell != "" {
			return shell
		}
		return DefaultShell
	default:
		return c.Execution.Shell
	}
}

// GetMaxDiagnosticBytes bounds the stderr tail kept in a failed status
func (c *Config) GetMaxDiagnosticBytes() int {
	if c.Execution.MaxDiagnosticBytes <= 0 {
		return DefaultMaxDiagnosticBytes
	}
	return c.Execution.MaxDiagnosticBytes
}

// GetMaxTokens returns the generation budget
func (c *Config) GetMaxTokens() int {
	if c.Generator.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.Generator.MaxTokens
}

// UsesSQLiteHistory reports whether turns live in a SQLite database
func (c *Config) UsesSQLiteHistory() bool {
	return c.History.Backend == HistoryBackendSQLite
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	switch c.Generator.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderGemini:
	default:
		return errors.Errorf("unsupported generator provider %q", c.Generator.Provider)
	}

	switch c.History.Backend {
	case "", HistoryBackendText, HistoryBackendSQLite:
	default:
		return errors.Errorf("unsupported history backend %q", c.History.Backend)
	}

	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return errors.Errorf("generator.temperature %.2f out of range [0, 2]", c.Generator.Temperature)
	}

	return nil
}
