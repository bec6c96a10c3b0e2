package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/conv/internal/domain"
)

var testMessages = []domain.Message{
	{Role: domain.RoleSystem, Content: "system rules"},
	{Role: domain.RoleUser, Content: "history"},
	{Role: domain.RoleUser, Content: "Answer this as briefly as possible: convert a.webp to png"},
}

func generatorFor(t *testing.T, provider domain.ProviderKind, endpoint string) func(context.Context, domain.Credential) (domain.Generation, error) {
	t.Helper()
	gen, err := NewFactory().ForConfig(domain.Config{Generator: domain.GeneratorSettings{
		Provider: provider,
		Endpoint: endpoint,
		Model:    "test-model",
	}})
	require.NoError(t, err)
	assert.Equal(t, string(provider), gen.Name())
	return func(ctx context.Context, cred domain.Credential) (domain.Generation, error) {
		return gen.Generate(ctx, cred, testMessages)
	}
}

func TestAnthropicProvider(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"` + "```sh\\n" + `dwebp \"a.webp\" -o \"a.png\"` + "\\n```" + `"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	gen, err := generatorFor(t, domain.ProviderAnthropic, server.URL)(context.Background(), domain.Credential{Value: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, `dwebp "a.webp" -o "a.png"`, gen.Text)
	assert.Equal(t, "test-model", gen.Model)

	assert.Equal(t, "system rules", captured["system"])
	msgs := captured["messages"].([]interface{})
	require.Len(t, msgs, 1, "consecutive user messages are merged")
}

func TestAnthropicTruncatedIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ffmpeg -i"}],"stop_reason":"max_tokens"}`))
	}))
	defer server.Close()

	_, err := generatorFor(t, domain.ProviderAnthropic, server.URL)(context.Background(), domain.Credential{Value: "k"})
	assertGenerationKind(t, err, domain.GenerationMalformed)
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("authorization"))
		var req struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0]["role"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"magick a.webp a.png"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	gen, err := generatorFor(t, domain.ProviderOllama, server.URL)(context.Background(), domain.Credential{Source: domain.SourceAnonymous})
	require.NoError(t, err)
	assert.Equal(t, "magick a.webp a.png", gen.Text)
}

func TestHTTPProviderErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   domain.GenerationFailure
		wantStatus int
		wantText   string
	}{
		{name: "auth failure", status: 401, body: `{"error":{"message":"invalid x-api-key"}}`, wantKind: domain.GenerationTransport, wantStatus: 401, wantText: "invalid x-api-key"},
		{name: "quota", status: 429, body: `{"error":"rate limited"}`, wantKind: domain.GenerationTransport, wantStatus: 429, wantText: "rate limited"},
		{name: "server error", status: 500, body: "upstream down", wantKind: domain.GenerationTransport, wantStatus: 500, wantText: "upstream down"},
		{name: "not json", status: 200, body: "<html>", wantKind: domain.GenerationMalformed},
		{name: "no choices", status: 200, body: `{"choices":[]}`, wantKind: domain.GenerationMalformed},
		{name: "empty text", status: 200, body: `{"choices":[{"message":{"content":"  "},"finish_reason":"stop"}]}`, wantKind: domain.GenerationMalformed},
		{name: "truncated", status: 200, body: `{"choices":[{"message":{"content":"ls"},"finish_reason":"length"}]}`, wantKind: domain.GenerationMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := generatorFor(t, domain.ProviderOllama, server.URL)(context.Background(), domain.Credential{})
			genErr := assertGenerationKind(t, err, tt.wantKind)
			assert.Equal(t, tt.wantStatus, genErr.StatusCode)
			assert.Equal(t, "ollama", genErr.Provider)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestHTTPProviderUnreachableIsTransport(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := generatorFor(t, domain.ProviderOllama, url)(context.Background(), domain.Credential{})
	assertGenerationKind(t, err, domain.GenerationTransport)
}

func TestHTTPProviderHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := generatorFor(t, domain.ProviderOllama, server.URL)(ctx, domain.Credential{})
	assertGenerationKind(t, err, domain.GenerationTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := NewFactory().ForConfig(domain.Config{Generator: domain.GeneratorSettings{Provider: "mystery"}})
	assert.Error(t, err)
}
