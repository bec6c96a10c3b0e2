package app

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/doeshing/conv/internal/application/prompt"
	"github.com/doeshing/conv/internal/application/session"
	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/infrastructure/ai"
	"github.com/doeshing/conv/internal/infrastructure/config"
	contextcollector "github.com/doeshing/conv/internal/infrastructure/context"
	"github.com/doeshing/conv/internal/infrastructure/credentials"
	"github.com/doeshing/conv/internal/infrastructure/executor"
	"github.com/doeshing/conv/internal/infrastructure/history"
	"github.com/doeshing/conv/internal/pkg/logger"
	"github.com/doeshing/conv/internal/ports"
)

// Options carries what the CLI knows before the graph is built.
type Options struct {
	Verbose  bool
	Prompter ports.CredentialPrompter
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	// ConfigPath overrides CONV_CONFIG and the default location.
	ConfigPath string
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Session      *session.Service
	Config       domain.Config
	ConfigLoader *config.FileLoader
	History      ports.HistoryLog
	Credentials  *credentials.FileStore
	Logger       *logger.ZeroLogger

	closers []io.Closer
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	log := logger.New(stderr, opts.Verbose).With("invocation", uuid.NewString())

	cfgLoader := config.NewFileLoader(fs, opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("config loaded", map[string]interface{}{
		"path":     cfgLoader.Path(),
		"provider": cfg.Generator.Provider,
		"history":  cfg.History.Backend,
	})

	if err := credentials.LoadEnvFile(cfg.Credentials.EnvFile); err != nil {
		log.Warn("env file not loaded", map[string]interface{}{"error": err.Error()})
	}

	builder, err := prompt.NewBuilder(cfg.Prompt.System)
	if err != nil {
		return nil, &domain.ConfigError{Op: "prompt.system", Err: err}
	}

	c := &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
	}

	var historyLog ports.HistoryLog
	if cfg.UsesSQLiteHistory() {
		store := history.NewSQLiteLog(cfg.History.Path)
		c.closers = append(c.closers, store)
		historyLog = store
	} else {
		historyLog = history.NewTextLog(fs, cfg.History.Path, log)
	}

	credStore := credentials.NewFileStore(fs, cfg.Credentials.Path, opts.Prompter, log)

	exec := executor.NewLocalExecutor(executor.Options{
		Shell:              cfg.GetExecutionShell(),
		Timeout:            cfg.ExecutionTimeout(),
		MaxDiagnosticBytes: cfg.GetMaxDiagnosticBytes(),
		Stdin:              opts.Stdin,
		Stdout:             opts.Stdout,
		Stderr:             stderr,
		Logger:             log,
	})

	c.History = historyLog
	c.Credentials = credStore
	c.Session = &session.Service{
		Config:           cfg,
		ContextCollector: contextcollector.NewBasicCollector(),
		Credentials:      credStore,
		History:          historyLog,
		Prompts:          builder,
		GeneratorFactory: ai.NewFactory(),
		Executor:         exec,
		Logger:           log,
	}
	return c, nil
}

// Close releases resources held by adapters.
func (c *Container) Close() error {
	var first error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
