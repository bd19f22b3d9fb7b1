package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatbot-gateway/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	var got openAIChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Hola, ¿en qué puedo ayudarte?"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-3.5-turbo", 5*time.Second, discardLogger()).
		WithBaseURL(srv.URL)
	result, err := p.Generate(context.Background(), entity.GenerationRequest{
		Input:     "hola",
		MaxTokens: 128,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hola, ¿en qué puedo ayudarte?", result.Response)
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, "gpt-3.5-turbo", result.ModelVersion)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "hola", got.Messages[0].Content)
	assert.Equal(t, 128, got.MaxTokens)
	assert.Equal(t, 0.7, got.Temperature)
}

func TestOpenAIGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-3.5-turbo", 5*time.Second, discardLogger()).
		WithBaseURL(srv.URL)
	_, err := p.Generate(context.Background(), entity.GenerationRequest{Input: "hola"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAIHealthCheckOnlyValidatesCredentials(t *testing.T) {
	// No network probe: a configured key passes even with no server.
	p := NewOpenAIProvider("sk-test", "gpt-3.5-turbo", time.Second, discardLogger())
	assert.NoError(t, p.HealthCheck(context.Background()))

	empty := NewOpenAIProvider("  ", "gpt-3.5-turbo", time.Second, discardLogger())
	assert.Error(t, empty.HealthCheck(context.Background()))
}
