package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chatbot-gateway/internal/domain/entity"

	"google.golang.org/genai"
)

// Vertex reports no per-answer confidence either; mirror the hosted
// provider's constant.
const geminiFixedConfidence = 0.7

// GeminiProvider generates through Vertex AI. Like the hosted provider,
// its health probe only validates configuration.
type GeminiProvider struct {
	projectID string
	location  string
	model     string
	client    *genai.Client
	logger    *slog.Logger
}

func NewGeminiProvider(projectID, location, model string, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		projectID: projectID,
		location:  location,
		model:     model,
		logger:    logger,
	}
}

func (p *GeminiProvider) Initialize(ctx context.Context) error {
	p.logger.Info("initializing Gemini provider", "model", p.model)
	if err := p.HealthCheck(ctx); err != nil {
		return err
	}
	if p.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  p.projectID,
		Location: p.location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return fmt.Errorf("init genai client: %w", err)
	}
	p.client = client
	return nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	if p.client == nil {
		return nil, errors.New("Gemini provider not initialized")
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Input), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil ||
		len(result.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response from Gemini API")
	}

	return &entity.GenerationResult{
		Response:     result.Candidates[0].Content.Parts[0].Text,
		Confidence:   geminiFixedConfidence,
		ModelVersion: p.model,
	}, nil
}

func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	if p.client == nil && strings.TrimSpace(p.projectID) == "" {
		return errors.New("Google Cloud project is not configured")
	}
	return nil
}

func (p *GeminiProvider) ModelVersion() string { return p.model }

func (p *GeminiProvider) Shutdown() {
	p.logger.Info("shutting down Gemini provider")
}
