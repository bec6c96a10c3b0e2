// Package session runs one conv invocation: load state, build the prompt,
// generate a command, run it, and record the turn.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// Service orchestrates the request lifecycle end-to-end.
type Service struct {
	Config           domain.Config
	ContextCollector ports.ContextCollector
	Credentials      ports.CredentialStore
	History          ports.HistoryLog
	Prompts          ports.PromptBuilder
	GeneratorFactory ports.GeneratorFactory
	Executor         ports.CommandExecutor
	Observer         ports.SessionObserver
	Logger           ports.Logger
	Now              func() time.Time
}

func (s *Service) validate() error {
	if s.ContextCollector == nil || s.Credentials == nil || s.History == nil ||
		s.Prompts == nil || s.GeneratorFactory == nil || s.Executor == nil || s.Logger == nil {
		return errors.New("session.Service dependencies not satisfied")
	}
	return nil
}

// Run processes a single natural-language request. The returned error is
// always a *domain.ConfigError; every other failure is reported in the outcome.
func (s *Service) Run(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	if err := s.validate(); err != nil {
		return domain.Outcome{}, &domain.ConfigError{Op: "session", Err: err}
	}
	request := strings.TrimSpace(req.Text)
	if request == "" {
		return domain.Outcome{}, &domain.ConfigError{Op: "session", Err: errors.New("empty request")}
	}

	cfg := applyOverrides(s.Config, req)
	if err := cfg.ValidateConsistency(); err != nil {
		return domain.Outcome{}, &domain.ConfigError{Op: "validate config", Err: err}
	}
	generator, err := s.GeneratorFactory.ForConfig(cfg)
	if err != nil {
		return domain.Outcome{}, &domain.ConfigError{Op: "generator init", Err: err}
	}

	outcome := domain.Outcome{Request: request, Provider: generator.Name(), Model: cfg.Generator.Model}

	credential, err := s.resolveCredential(ctx, cfg)
	if err != nil {
		return domain.Outcome{}, err
	}
	if credential.PersistErr != nil {
		outcome.Warnings = append(outcome.Warnings, "credential not saved: "+credential.PersistErr.Error())
	}

	turns, err := s.History.Recent(ctx, cfg.HistoryWindow())
	if err != nil {
		s.Logger.Warn("history unreadable, continuing without it", map[string]interface{}{"error": err.Error()})
		outcome.Warnings = append(outcome.Warnings, "history unavailable: "+err.Error())
		turns = nil
	}

	snapshot, err := s.ContextCollector.Collect(ctx, cfg)
	if err != nil {
		s.Logger.Warn("context collection failed", map[string]interface{}{"error": err.Error()})
	}

	messages, err := s.Prompts.Build(ports.PromptInput{Request: request, History: turns, Context: snapshot})
	if err != nil {
		return domain.Outcome{}, &domain.ConfigError{Op: "build prompt", Err: err}
	}

	s.Logger.Info("calling generator", map[string]interface{}{
		"provider": generator.Name(),
		"model":    cfg.Generator.Model,
		"history":  len(turns),
		"messages": len(messages),
	})
	if s.Observer != nil {
		s.Observer.Querying(request)
	}
	generation, genErr := s.generate(ctx, cfg, generator, credential, messages)
	if s.Observer != nil {
		s.Observer.Generated()
	}

	if genErr != nil {
		s.Logger.Warn("generation failed", map[string]interface{}{"error": genErr.Error()})
		outcome.Status = domain.GenerationFailed(genErr.Error())
	} else {
		outcome.Command = generation.Text
		if generation.Model != "" {
			outcome.Model = generation.Model
		}
		if s.Observer != nil {
			s.Observer.Running(generation.Text)
		}
		result := s.Executor.Execute(ctx, generation.Text)
		outcome.Execution = &result
		outcome.Status = result.Status
		s.Logger.Info("command finished", map[string]interface{}{
			"status":   result.Status.Kind,
			"exit":     result.ExitCode,
			"skipped":  result.Skipped,
			"duration": result.Duration.String(),
		})
	}

	turn := domain.Turn{
		Request:   request,
		Command:   outcome.Command,
		Status:    outcome.Status,
		Timestamp: s.now(),
	}
	// recording must survive a Ctrl-C that ended the command
	if err := s.History.Append(context.WithoutCancel(ctx), turn); err != nil {
		s.Logger.Warn("history not recorded", map[string]interface{}{"error": err.Error()})
		outcome.Warnings = append(outcome.Warnings, "history not recorded: "+err.Error())
	}

	return outcome, nil
}

func (s *Service) generate(ctx context.Context, cfg domain.Config, generator ports.CommandGenerator, credential domain.Credential, messages []domain.Message) (domain.Generation, error) {
	genCtx, cancel := context.WithTimeout(ctx, cfg.GeneratorTimeout())
	defer cancel()

	generation, err := generator.Generate(genCtx, credential, messages)
	if err == nil && strings.TrimSpace(generation.Text) == "" {
		err = domain.NewMalformedError(generator.Name(), errors.New("empty response"))
	}
	if err != nil {
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			err = domain.NewTransportError(generator.Name(), 0, err)
		}
		return domain.Generation{}, err
	}
	return generation, nil
}

// resolveCredential never prompts for providers that work without a key.
func (s *Service) resolveCredential(ctx context.Context, cfg domain.Config) (domain.Credential, error) {
	name := cfg.CredentialName()
	anonymous := domain.Credential{Name: name, Source: domain.SourceAnonymous}

	if cfg.Generator.Provider.AllowsAnonymous() {
		if cred, ok := s.Credentials.Lookup(ctx, name); ok {
			return cred, nil
		}
		return anonymous, nil
	}

	cred, err := s.Credentials.Resolve(ctx, name)
	if err == nil {
		return cred, nil
	}
	if cfg.AllowsAnonymous() && errors.Is(err, domain.ErrNonInteractive) {
		s.Logger.Debug("using anonymous credential", map[string]interface{}{"credential": name})
		return anonymous, nil
	}
	if domain.IsConfigError(err) {
		return domain.Credential{}, err
	}
	return domain.Credential{}, &domain.ConfigError{Op: "resolve credential " + name, Err: err}
}

// Clear empties the history log. Stored credentials are untouched.
func (s *Service) Clear(ctx context.Context) error {
	if s.History == nil {
		return errors.New("session.Service has no history log")
	}
	return s.History.Clear(ctx)
}

// ShowHistory returns the last n turns, or the configured window when n <= 0.
func (s *Service) ShowHistory(ctx context.Context, n int) ([]domain.Turn, error) {
	if s.History == nil {
		return nil, errors.New("session.Service has no history log")
	}
	if n <= 0 {
		n = s.Config.HistoryWindow()
	}
	return s.History.Recent(ctx, n)
}

// SetCredential stores value under name, or under the active provider's
// credential when name is empty. It returns the name used.
func (s *Service) SetCredential(ctx context.Context, name, value string) (string, error) {
	if s.Credentials == nil {
		return "", errors.New("session.Service has no credential store")
	}
	if strings.TrimSpace(name) == "" {
		name = s.Config.CredentialName()
	}
	name = domain.NormalizeCredentialName(name)
	if err := s.Credentials.Set(ctx, name, value); err != nil {
		return name, err
	}
	return name, nil
}

// applyOverrides switches provider or model for one invocation. A provider
// switch drops the configured model, endpoint and credential, which belong to
// the configured provider.
func applyOverrides(cfg domain.Config, req domain.Request) domain.Config {
	if req.ProviderOverride != "" && req.ProviderOverride != cfg.Generator.Provider {
		cfg.Generator.Provider = req.ProviderOverride
		cfg.Generator.Model = ""
		cfg.Generator.Endpoint = ""
		cfg.Generator.Credential = ""
	}
	if req.ModelOverride != "" {
		cfg.Generator.Model = req.ModelOverride
	}
	return cfg
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
