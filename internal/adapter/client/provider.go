package client

import (
	"fmt"
	"log/slog"
	"strings"

	"chatbot-gateway/internal/config"
	"chatbot-gateway/internal/domain/repository"
)

// NewProvider builds the configured generation backend. An unknown type
// or a configuration-incomplete choice is an error the orchestrator
// turns into a mock fallback.
func NewProvider(cfg config.Config, logger *slog.Logger) (repository.AIProvider, error) {
	switch strings.ToLower(cfg.ProviderType) {
	case "mock":
		return NewMockProvider(cfg.MaxTokens, cfg.ConfidenceThreshold, logger), nil
	case "local":
		return NewLocalProvider(cfg.LocalEndpoint, cfg.GenerationTimeout, logger), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("OpenAI API key is required but not provided")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.GenerationTimeout, logger), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiProject) == "" {
			return nil, fmt.Errorf("Google Cloud project is required but not provided")
		}
		return NewGeminiProvider(cfg.GeminiProject, cfg.GeminiLocation, cfg.GeminiModel, logger), nil
	default:
		return nil, fmt.Errorf("unknown AI provider type: %s", cfg.ProviderType)
	}
}
