package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// openAIProvider streams a chat completion from OpenAI or any compatible server.
type openAIProvider struct {
	settings   settings
	httpClient *http.Client
}

func newOpenAIProvider(s settings, httpClient *http.Client) ports.CommandGenerator {
	return &openAIProvider{settings: s, httpClient: httpClient}
}

func newOpenAIClient(s settings, token string, httpClient *http.Client) *openai.Client {
	config := openai.DefaultConfig(token)
	if s.Endpoint != "" {
		config.BaseURL = strings.TrimRight(s.Endpoint, "/")
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(config)
}

func (p *openAIProvider) Name() string {
	return string(domain.ProviderOpenAI)
}

// Generate implements ports.CommandGenerator.
func (p *openAIProvider) Generate(ctx context.Context, credential domain.Credential, messages []domain.Message) (domain.Generation, error) {
	client := newOpenAIClient(p.settings, credential.Value, p.httpClient)

	req := openai.ChatCompletionRequest{
		Model:       p.settings.Model,
		Messages:    toOpenAIMessages(messages),
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
		N:           1,
		Stream:      true,
	}

	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return domain.Generation{}, classifyOpenAIError(ctx, err)
	}
	defer stream.Close()

	var (
		content   strings.Builder
		truncated bool
	)
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Generation{}, classifyOpenAIError(ctx, err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		content.WriteString(choice.Delta.Content)
		if choice.FinishReason == openai.FinishReasonLength {
			truncated = true
		}
	}

	return finishGeneration(p.Name(), p.settings.Model, content.String(), truncated)
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// classifyOpenAIError maps client errors onto the generation taxonomy. Service
// and network errors are transport failures; a stream that cannot be decoded
// is malformed.
func classifyOpenAIError(ctx context.Context, err error) error {
	provider := string(domain.ProviderOpenAI)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewTransportError(provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewTransportError(provider, reqErr.HTTPStatusCode, err)
	}
	if isDecodeError(err) {
		return domain.NewMalformedError(provider, err)
	}
	return transportOrCanceled(ctx, provider, 0, err)
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.Is(err, openai.ErrTooManyEmptyStreamMessages)
}
