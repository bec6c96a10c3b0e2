package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/pkg/filesystem"
	"github.com/doeshing/conv/internal/ports"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CONV_CONFIG"

// FileLoader loads YAML configuration from ~/.config/conv/config.yaml (overridable via CONV_CONFIG).
type FileLoader struct {
	fs           afero.Fs
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(fs afero.Fs, path string) *FileLoader {
	return &FileLoader{fs: fs, overridePath: path}
}

// Path returns the file Load reads.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Load implements ports.ConfigProvider. A missing file is created with defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := l.fs.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return domain.Config{}, configError("create config dir", err)
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if err := l.writeDefault(path, cfg); err != nil {
				return domain.Config{}, configError("write default config", err)
			}
			return cfg, nil
		}
		return domain.Config{}, configError("read config", err)
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, configError("parse "+path, err)
	}

	cfg = hydrateDefaults(cfg)
	if err := cfg.ValidateConsistency(); err != nil {
		return domain.Config{}, configError("validate "+path, err)
	}
	return cfg, nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.ConfigDir(), "config.yaml")
}

func (l *FileLoader) writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return afero.WriteFile(l.fs, path, raw, domain.SecureFilePermissions)
}

// DefaultConfig is written on first use.
func DefaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Generator: domain.GeneratorSettings{
			Provider:       domain.ProviderOpenAI,
			Model:          domain.DefaultOpenAIModel,
			MaxTokens:      domain.DefaultMaxTokens,
			TimeoutSeconds: int(domain.DefaultGeneratorTimeout.Seconds()),
		},
		History: domain.HistorySettings{
			Backend: domain.HistoryBackendText,
			Window:  domain.DefaultHistoryWindow,
		},
		Execution: domain.ExecutionSettings{
			Shell:              domain.DefaultShell,
			TimeoutSeconds:     int(domain.DefaultExecutionTimeout.Seconds()),
			MaxDiagnosticBytes: domain.DefaultMaxDiagnosticBytes,
		},
		Context: domain.ContextSettings{
			IncludeTools: true,
		},
	}
}

// hydrateDefaults fills settings a hand-edited file left out. Execution
// timeout is left alone since zero means no limit.
func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = domain.ProviderOpenAI
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = domain.DefaultMaxTokens
	}
	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = int(domain.DefaultGeneratorTimeout.Seconds())
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = domain.HistoryBackendText
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = domain.DefaultHistoryWindow
	}
	if cfg.Execution.MaxDiagnosticBytes == 0 {
		cfg.Execution.MaxDiagnosticBytes = domain.DefaultMaxDiagnosticBytes
	}
	cfg.History.Path = filesystem.ExpandPath(cfg.History.Path)
	cfg.Credentials.Path = filesystem.ExpandPath(cfg.Credentials.Path)
	cfg.Credentials.EnvFile = filesystem.ExpandPath(cfg.Credentials.EnvFile)
	return cfg
}

func configError(op string, err error) error {
	return &domain.ConfigError{Op: op, Err: errors.WithStack(err)}
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
