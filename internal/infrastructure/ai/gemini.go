package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

const defaultGeminiModel = "gemini-2.0-flash"

// geminiProvider calls the Gemini API through the genai SDK.
type geminiProvider struct {
	settings   settings
	httpClient *http.Client
}

func newGeminiProvider(s settings, httpClient *http.Client) ports.CommandGenerator {
	return &geminiProvider{settings: s, httpClient: httpClient}
}

func (p *geminiProvider) Name() string {
	return string(domain.ProviderGemini)
}

// Generate implements ports.CommandGenerator.
func (p *geminiProvider) Generate(ctx context.Context, credential domain.Credential, messages []domain.Message) (domain.Generation, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     credential.Value,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.settings.Endpoint != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: p.settings.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return domain.Generation{}, domain.NewTransportError(p.Name(), 0, errors.Wrap(err, "create genai client"))
	}

	system, contents := toGeminiContents(messages)
	temperature := p.settings.Temperature
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.settings.MaxTokens),
		Temperature:     &temperature,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, p.settings.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return domain.Generation{}, domain.NewTransportError(p.Name(), apiErr.Code, err)
		}
		return domain.Generation{}, transportOrCanceled(ctx, p.Name(), 0, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return domain.Generation{}, domain.NewMalformedError(p.Name(), errors.New(reason))
	}

	truncated := resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens
	return finishGeneration(p.Name(), p.settings.Model, resp.Text(), truncated)
}

// toGeminiContents folds system messages into one instruction. Gemini has no
// assistant role on input, so those turns are sent as model content.
func toGeminiContents(messages []domain.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, msg.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
