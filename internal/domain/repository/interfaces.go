package repository

import (
	"context"
	"time"

	"chatbot-gateway/internal/domain/entity"

	"github.com/google/uuid"
)

// AIProvider is a pluggable generation backend. Initialize is called once
// at startup; Shutdown is best-effort and never returns an error.
type AIProvider interface {
	Initialize(ctx context.Context) error
	Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error)
	HealthCheck(ctx context.Context) error
	ModelVersion() string
	Shutdown()
}

// RateLimiter answers per-key admission over the nested windows.
// State is in-process, so the operations never block on I/O.
type RateLimiter interface {
	Allow(key string) bool
	Status(key string) entity.RateLimitStatus
	Reset(key string)
}

// ConversationStore is the durable collaborator for conversations and
// their ordered message history.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID, userID string) (*entity.Conversation, error)
	ListConversations(ctx context.Context, userID string, page, size int) ([]entity.Conversation, int64, error)
	ArchiveConversation(ctx context.Context, id uuid.UUID, userID string) error
	AppendMessage(ctx context.Context, msg entity.Message) error
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entity.Message, error)
	UserStats(ctx context.Context, userID string) (*entity.ConversationStats, error)
	DeleteOldConversations(ctx context.Context, before time.Time) (int64, error)
	SystemStats(ctx context.Context) (*entity.SystemStats, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// AnswerCache stores generated answers keyed by prompt embedding so
// semantically equivalent questions can skip the provider call.
type AnswerCache interface {
	Search(ctx context.Context, vector []float32, userID string, threshold float32) (*entity.AIResponse, error)
	Save(ctx context.Context, prompt string, resp *entity.AIResponse, vector []float32, userID string) error
}
