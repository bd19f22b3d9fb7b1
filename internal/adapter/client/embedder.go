package client

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// Embedder turns prompt text into vectors for the semantic answer cache.
type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(c *genai.Client, model string) *Embedder {
	return &Embedder{client: c, model: model}
}

func (e *Embedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return res.Embeddings[0].Values, nil
}
