package ai

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// Factory builds the configured command generator.
type Factory struct {
	httpClient *http.Client
}

func NewFactory() *Factory {
	return &Factory{httpClient: &http.Client{}}
}

// NewFactoryWithClient lets tests point generators at a local server.
func NewFactoryWithClient(client *http.Client) *Factory {
	return &Factory{httpClient: client}
}

// ForConfig implements ports.GeneratorFactory. Deadlines come from the
// caller's context, not the HTTP client.
func (f *Factory) ForConfig(cfg domain.Config) (ports.CommandGenerator, error) {
	s := settings{
		Model:       cfg.Generator.Model,
		Endpoint:    cfg.Generator.Endpoint,
		MaxTokens:   cfg.GetMaxTokens(),
		Temperature: cfg.Generator.Temperature,
	}

	switch cfg.Generator.Provider {
	case domain.ProviderOpenAI, "":
		s.Model = valueOrDefault(s.Model, domain.DefaultOpenAIModel)
		return newOpenAIProvider(s, f.httpClient), nil
	case domain.ProviderAnthropic:
		s.Model = valueOrDefault(s.Model, defaultAnthropicModel)
		s.Endpoint = valueOrDefault(s.Endpoint, defaultAnthropicEndpoint)
		return newHTTPProvider(string(domain.ProviderAnthropic), s, f.httpClient, anthropicAdapter()), nil
	case domain.ProviderOllama:
		s.Model = valueOrDefault(s.Model, defaultOllamaModel)
		s.Endpoint = valueOrDefault(s.Endpoint, defaultOllamaEndpoint)
		return newHTTPProvider(string(domain.ProviderOllama), s, f.httpClient, ollamaAdapter()), nil
	case domain.ProviderGemini:
		s.Model = valueOrDefault(s.Model, defaultGeminiModel)
		return newGeminiProvider(s, f.httpClient), nil
	default:
		return nil, errors.Errorf("unsupported provider kind: %s", cfg.Generator.Provider)
	}
}

var _ ports.GeneratorFactory = (*Factory)(nil)
