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

func TestLocalGenerate(t *testing.T) {
	var got localGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		confidence := 0.92
		_ = json.NewEncoder(w).Encode(localGenerateResponse{
			Response:   "Claro, puedo ayudarte con eso.",
			Confidence: &confidence,
		})
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL+"/generate", 5*time.Second, discardLogger())
	result, err := p.Generate(context.Background(), entity.GenerationRequest{
		Input:     "hola",
		Context:   "Usuario: hola\nAsistente:",
		MaxTokens: 256,
	})

	require.NoError(t, err)
	assert.Equal(t, "Claro, puedo ayudarte con eso.", result.Response)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "local-1.0", result.ModelVersion)

	assert.Equal(t, "hola", got.Input)
	assert.Equal(t, 256, got.MaxTokens)
}

func TestLocalGenerateConfidenceDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(localGenerateResponse{Response: "ok"})
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL+"/generate", 5*time.Second, discardLogger())
	result, err := p.Generate(context.Background(), entity.GenerationRequest{Input: "hola"})

	require.NoError(t, err)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestLocalGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL+"/generate", 5*time.Second, discardLogger())
	_, err := p.Generate(context.Background(), entity.GenerationRequest{Input: "hola"})
	assert.Error(t, err)
}

func TestLocalHealthPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL+"/api/generate", 5*time.Second, discardLogger())
	require.NoError(t, p.HealthCheck(context.Background()))
	assert.Equal(t, "/api/health", path)
}

func TestLocalInitializeUnreachable(t *testing.T) {
	p := NewLocalProvider("http://127.0.0.1:1/generate", 500*time.Millisecond, discardLogger())
	assert.Error(t, p.Initialize(context.Background()))
}
