package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatbot-gateway/internal/domain/entity"
)

const localModelVersion = "local-1.0"

// LocalProvider posts generation requests to a self-hosted inference
// endpoint. The sibling /health path of the endpoint answers probes.
type LocalProvider struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type localGenerateRequest struct {
	Input     string `json:"input"`
	Context   string `json:"context"`
	MaxTokens int    `json:"max_tokens"`
}

type localGenerateResponse struct {
	Response   string   `json:"response"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func NewLocalProvider(endpoint string, timeout time.Duration, logger *slog.Logger) *LocalProvider {
	return &LocalProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Initialize probes the endpoint; an unreachable local service is an
// initialization failure, not a deferred one.
func (p *LocalProvider) Initialize(ctx context.Context) error {
	p.logger.Info("initializing local AI provider", "endpoint", p.endpoint)
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}
	return nil
}

func (p *LocalProvider) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	body, err := json.Marshal(localGenerateRequest{
		Input:     req.Input,
		Context:   req.Context,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal local AI request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build local AI request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local AI error: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local AI endpoint returned status %d", httpResp.StatusCode)
	}

	var resp localGenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("invalid response from local AI endpoint: %w", err)
	}

	confidence := 0.8
	if resp.Confidence != nil {
		confidence = *resp.Confidence
	}

	return &entity.GenerationResult{
		Response:     resp.Response,
		Confidence:   confidence,
		ModelVersion: localModelVersion,
	}, nil
}

func (p *LocalProvider) HealthCheck(ctx context.Context) error {
	healthURL := strings.Replace(p.endpoint, "/generate", "/health", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to local AI service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local AI service is not healthy: status %d", resp.StatusCode)
	}
	return nil
}

func (p *LocalProvider) ModelVersion() string { return localModelVersion }

func (p *LocalProvider) Shutdown() {
	p.logger.Info("shutting down local AI provider")
	p.client.CloseIdleConnections()
}
