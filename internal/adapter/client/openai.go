package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatbot-gateway/internal/domain/entity"
)

const openAIChatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// The chat-completions API reports no confidence of its own.
const openAIFixedConfidence = 0.7

// OpenAIProvider calls the hosted chat-completions API with bearer
// authentication. Its health probe only verifies that a credential is
// configured; it never touches the network.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAIProvider(apiKey, model string, timeout time.Duration, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIChatCompletionsURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// WithBaseURL overrides the API endpoint, useful for proxies and
// compatible local servers.
func (p *OpenAIProvider) WithBaseURL(baseURL string) *OpenAIProvider {
	p.baseURL = baseURL
	return p
}

func (p *OpenAIProvider) Initialize(ctx context.Context) error {
	p.logger.Info("initializing OpenAI provider", "model", p.model)
	return p.HealthCheck(ctx)
}

func (p *OpenAIProvider) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       p.model,
		Messages:    []openAIMessage{{Role: "user", Content: req.Input}},
		MaxTokens:   req.MaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal OpenAI request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build OpenAI request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer httpResp.Body.Close()

	var resp openAIChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("invalid response from OpenAI API: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (%s)", resp.Error.Message, resp.Error.Type)
	}
	if httpResp.StatusCode != http.StatusOK || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("invalid response from OpenAI API: status %d", httpResp.StatusCode)
	}

	return &entity.GenerationResult{
		Response:     resp.Choices[0].Message.Content,
		Confidence:   openAIFixedConfidence,
		ModelVersion: p.model,
	}, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(p.apiKey) == "" {
		return errors.New("OpenAI API key is not configured")
	}
	return nil
}

func (p *OpenAIProvider) ModelVersion() string { return p.model }

func (p *OpenAIProvider) Shutdown() {
	p.logger.Info("shutting down OpenAI provider")
	p.client.CloseIdleConnections()
}
