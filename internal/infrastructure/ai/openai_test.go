package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/conv/internal/domain"
)

func sseServer(t *testing.T, chunks []string, finish string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for i, chunk := range chunks {
			reason := "null"
			if i == len(chunks)-1 {
				reason = fmt.Sprintf("%q", finish)
			}
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", chunk, reason)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func openAIGenerator(t *testing.T, endpoint string) func() (domain.Generation, error) {
	gen, err := NewFactory().ForConfig(domain.Config{Generator: domain.GeneratorSettings{
		Provider: domain.ProviderOpenAI,
		Endpoint: endpoint + "/v1",
	}})
	require.NoError(t, err)
	return func() (domain.Generation, error) {
		return gen.Generate(context.Background(), domain.Credential{Name: "OPENAI", Value: "sk-test"}, testMessages)
	}
}

func TestOpenAIProviderAssemblesStream(t *testing.T) {
	server := sseServer(t, []string{"`brew install", " webp`\n", "`dwebp \"a.webp\"", " -o \"a.png\"`"}, "stop")
	defer server.Close()

	gen, err := openAIGenerator(t, server.URL)()
	require.NoError(t, err)
	assert.Equal(t, "brew install webp\ndwebp \"a.webp\" -o \"a.png\"", gen.Text)
	assert.Equal(t, domain.DefaultOpenAIModel, gen.Model)
	assert.Equal(t, "openai", gen.Provider)
}

func TestOpenAIProviderTruncatedStream(t *testing.T) {
	server := sseServer(t, []string{"ffmpeg -i in.mp4"}, "length")
	defer server.Close()

	_, err := openAIGenerator(t, server.URL)()
	assertGenerationKind(t, err, domain.GenerationMalformed)
}

func TestOpenAIProviderServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	_, err := openAIGenerator(t, server.URL)()
	genErr := assertGenerationKind(t, err, domain.GenerationTransport)
	assert.Equal(t, http.StatusUnauthorized, genErr.StatusCode)
	assert.True(t, strings.Contains(err.Error(), "Incorrect API key"))
}

func TestOpenAIProviderEmptyStream(t *testing.T) {
	server := sseServer(t, []string{""}, "stop")
	defer server.Close()

	_, err := openAIGenerator(t, server.URL)()
	assertGenerationKind(t, err, domain.GenerationMalformed)
}
