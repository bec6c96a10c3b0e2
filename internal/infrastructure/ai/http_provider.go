package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel    = "claude-3-5-haiku-latest"
	defaultOllamaEndpoint    = "http://localhost:11434/v1/chat/completions"
	defaultOllamaModel       = "llama3.1"
	anthropicVersion         = "2023-06-01"
	maxErrorBody             = 512
)

// completion is what an adapter extracts from a response body.
type completion struct {
	Text      string
	Truncated bool
}

type httpProvider struct {
	name       string
	settings   settings
	httpClient *http.Client
	adapter    providerAdapter
}

type providerAdapter struct {
	buildRequest  func(settings, []domain.Message) ([]byte, error)
	parseResponse func([]byte) (completion, error)
	setHeaders    func(*http.Request, domain.Credential)
}

func newHTTPProvider(name string, s settings, client *http.Client, adapter providerAdapter) ports.CommandGenerator {
	return &httpProvider{
		name:       name,
		settings:   s,
		httpClient: client,
		adapter:    adapter,
	}
}

func (p *httpProvider) Name() string {
	return p.name
}

// Generate implements ports.CommandGenerator.
func (p *httpProvider) Generate(ctx context.Context, credential domain.Credential, messages []domain.Message) (domain.Generation, error) {
	requestBody, err := p.adapter.buildRequest(p.settings, messages)
	if err != nil {
		return domain.Generation{}, domain.NewMalformedError(p.name, errors.Wrap(err, "encode request"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.Endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return domain.Generation{}, domain.NewTransportError(p.name, 0, err)
	}
	httpReq.Header.Set("content-type", "application/json")
	p.adapter.setHeaders(httpReq, credential)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return domain.Generation{}, transportOrCanceled(ctx, p.name, 0, err)
	}
	defer resp.Body.Close()

	var responseBody bytes.Buffer
	if _, err := responseBody.ReadFrom(resp.Body); err != nil {
		return domain.Generation{}, transportOrCanceled(ctx, p.name, resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		return domain.Generation{}, domain.NewTransportError(p.name, resp.StatusCode,
			errors.New(serviceMessage(resp.Status, responseBody.Bytes())))
	}

	result, err := p.adapter.parseResponse(responseBody.Bytes())
	if err != nil {
		return domain.Generation{}, domain.NewMalformedError(p.name, err)
	}
	return finishGeneration(p.name, p.settings.Model, result.Text, result.Truncated)
}

// serviceMessage prefers the error text a service put in its JSON body.
func serviceMessage(status string, body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &detail); err == nil && detail.Message != "" {
			return fmt.Sprintf("%s: %s", status, detail.Message)
		}
		var plain string
		if err := json.Unmarshal(payload.Error, &plain); err == nil && plain != "" {
			return fmt.Sprintf("%s: %s", status, plain)
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	if text == "" {
		return status
	}
	return fmt.Sprintf("%s: %s", status, text)
}

func anthropicAdapter() providerAdapter {
	return providerAdapter{
		buildRequest:  buildAnthropicRequest,
		parseResponse: parseAnthropicResponse,
		setHeaders:    setAnthropicHeaders,
	}
}

func ollamaAdapter() providerAdapter {
	return providerAdapter{
		buildRequest:  buildChatCompletionRequest,
		parseResponse: parseChatCompletionResponse,
		setHeaders:    setBearerHeaders,
	}
}

func buildAnthropicRequest(s settings, messages []domain.Message) ([]byte, error) {
	systemPrompt, chatMessages := splitSystemMessages(messages)

	request := map[string]interface{}{
		"model":       s.Model,
		"max_tokens":  s.MaxTokens,
		"messages":    chatMessages,
		"temperature": s.Temperature,
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}

	return json.Marshal(request)
}

// splitSystemMessages moves system text to the top-level field and merges
// consecutive user messages, which the messages API requires to alternate.
func splitSystemMessages(messages []domain.Message) (string, []map[string]interface{}) {
	var systemLines []string
	var chatMessages []map[string]interface{}
	var lastRole domain.Role

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			systemLines = append(systemLines, msg.Content)
			continue
		}
		if msg.Role == lastRole && len(chatMessages) > 0 {
			content := chatMessages[len(chatMessages)-1]["content"].([]map[string]string)
			content[0]["text"] += "\n\n" + msg.Content
			continue
		}
		chatMessages = append(chatMessages, map[string]interface{}{
			"role": string(msg.Role),
			"content": []map[string]string{
				{"type": "text", "text": msg.Content},
			},
		})
		lastRole = msg.Role
	}

	return strings.TrimSpace(strings.Join(systemLines, "\n")), chatMessages
}

func parseAnthropicResponse(body []byte) (completion, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return completion{}, errors.Wrap(err, "decode anthropic response")
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return completion{Text: text.String(), Truncated: response.StopReason == "max_tokens"}, nil
}

func setAnthropicHeaders(req *http.Request, credential domain.Credential) {
	if credential.Value != "" {
		req.Header.Set("x-api-key", credential.Value)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

func buildChatCompletionRequest(s settings, messages []domain.Message) ([]byte, error) {
	chatMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		})
	}

	request := map[string]interface{}{
		"model":       s.Model,
		"messages":    chatMessages,
		"temperature": s.Temperature,
		"stream":      false,
	}
	if s.MaxTokens > 0 {
		request["max_tokens"] = s.MaxTokens
	}

	return json.Marshal(request)
}

func parseChatCompletionResponse(body []byte) (completion, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return completion{}, errors.Wrap(err, "decode chat completion")
	}

	if len(response.Choices) == 0 {
		return completion{}, errors.New("response has no choices")
	}
	choice := response.Choices[0]
	return completion{Text: choice.Message.Content, Truncated: choice.FinishReason == "length"}, nil
}

func setBearerHeaders(req *http.Request, credential domain.Credential) {
	if credential.Value != "" {
		req.Header.Set("authorization", "Bearer "+credential.Value)
	}
}
