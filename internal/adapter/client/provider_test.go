package client

import (
	"testing"

	"chatbot-gateway/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderSelection(t *testing.T) {
	cfg := config.Config{MaxTokens: 512, ConfidenceThreshold: 0.5}

	cfg.ProviderType = "mock"
	p, err := NewProvider(cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	cfg.ProviderType = "local"
	cfg.LocalEndpoint = "http://localhost:9000/api/generate"
	p, err = NewProvider(cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)

	cfg.ProviderType = "openai"
	_, err = NewProvider(cfg, discardLogger())
	assert.Error(t, err, "missing API key is a configuration error")

	cfg.OpenAIAPIKey = "sk-test"
	p, err = NewProvider(cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	cfg.ProviderType = "gemini"
	_, err = NewProvider(cfg, discardLogger())
	assert.Error(t, err, "missing project is a configuration error")

	cfg.ProviderType = "unknown-xyz"
	_, err = NewProvider(cfg, discardLogger())
	assert.Error(t, err)
}
