package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatbot-gateway/internal/domain/entity"
	"chatbot-gateway/internal/domain/repository"

	"github.com/google/uuid"
)

const cacheScoreThreshold = 0.80

// Pipeline sequences one inbound message through admission, validation,
// persistence, context assembly and generation. It carries no policy of
// its own: each stage either passes the message on or short-circuits
// with that stage's typed error.
type Pipeline struct {
	store        repository.ConversationStore
	limiter      repository.RateLimiter
	orchestrator *Orchestrator
	embedder     repository.Embedder
	cache        repository.AnswerCache

	contextWindow int
	maxMessages   int
	logger        *slog.Logger
}

func NewPipeline(
	store repository.ConversationStore,
	limiter repository.RateLimiter,
	orchestrator *Orchestrator,
	contextWindow, maxMessages int,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:         store,
		limiter:       limiter,
		orchestrator:  orchestrator,
		contextWindow: contextWindow,
		maxMessages:   maxMessages,
		logger:        logger,
	}
}

// WithAnswerCache enables the optional semantic cache; both the embedder
// and the cache must be supplied.
func (p *Pipeline) WithAnswerCache(embedder repository.Embedder, cache repository.AnswerCache) *Pipeline {
	p.embedder = embedder
	p.cache = cache
	return p
}

// ProcessMessage runs the whole pipeline and blocks until the async
// generation settles or the context expires.
func (p *Pipeline) ProcessMessage(ctx context.Context, req entity.MessageRequest) (*entity.ChatResponse, error) {
	if !p.limiter.Allow(req.UserID) {
		return nil, entity.ErrRateLimitExceeded
	}
	if !p.orchestrator.IsValidInput(req.Content) {
		if p.orchestrator.screen.MatchString(req.Content) {
			return nil, entity.ErrContentModeration
		}
		return nil, entity.ErrInvalidMessage
	}

	conv, err := p.getOrCreateConversation(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, err
	}
	if conv.MessageCount >= p.maxMessages {
		return nil, entity.ErrInvalidMessage.WithCause(
			fmt.Errorf("conversation %s has reached maximum message limit", conv.ID))
	}

	userMsg := entity.NewUserMessage(conv.ID, req.Content)
	if err := p.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, entity.ErrGenerationFailed.WithCause(err)
	}

	conversationContext, err := p.buildConversationContext(ctx, conv.ID)
	if err != nil {
		return nil, entity.ErrGenerationFailed.WithCause(err)
	}

	aiResp, vector := p.lookupCache(ctx, req)
	if aiResp == nil {
		outcome := <-p.orchestrator.GenerateAsync(ctx, req.Content, conversationContext)
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		aiResp = outcome.Response
		p.saveCacheAsync(req, aiResp, vector)
	}

	aiMsg := entity.NewAssistantMessage(conv.ID, aiResp)
	if err := p.store.AppendMessage(ctx, aiMsg); err != nil {
		return nil, entity.ErrGenerationFailed.WithCause(err)
	}

	p.logger.Info("message processed",
		"conversation", conv.ID, "user", req.UserID,
		"confidence", aiResp.Confidence, "fallback", aiResp.FallbackUsed,
		"cached", aiResp.Cached, "elapsed_ms", aiResp.ProcessingTimeMs)

	return &entity.ChatResponse{
		ConversationID: conv.ID.String(),
		UserMessage:    userMsg,
		AIMessage:      aiMsg,
		Timestamp:      time.Now(),
	}, nil
}

func (p *Pipeline) CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error) {
	conv, err := p.store.CreateConversation(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	p.logger.Info("conversation created", "conversation", conv.ID, "user", userID)
	return conv, nil
}

func (p *Pipeline) GetConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, []entity.Message, error) {
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, nil, entity.ErrInvalidMessage.WithCause(err)
	}
	conv, err := p.store.GetConversation(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := p.store.RecentMessages(ctx, id, conv.MessageCount)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (p *Pipeline) ListConversations(ctx context.Context, userID string, page, size int) ([]entity.Conversation, int64, error) {
	return p.store.ListConversations(ctx, userID, page, size)
}

func (p *Pipeline) ArchiveConversation(ctx context.Context, conversationID, userID string) error {
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return entity.ErrInvalidMessage.WithCause(err)
	}
	if err := p.store.ArchiveConversation(ctx, id, userID); err != nil {
		return err
	}
	p.logger.Info("conversation archived", "conversation", id, "user", userID)
	return nil
}

func (p *Pipeline) UserStats(ctx context.Context, userID string) (*entity.ConversationStats, error) {
	return p.store.UserStats(ctx, userID)
}

// CleanupConversations marks archived conversations older than daysOld
// as deleted and reports how many were affected.
func (p *Pipeline) CleanupConversations(ctx context.Context, daysOld int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -daysOld)
	deleted, err := p.store.DeleteOldConversations(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	p.logger.Info("marked old conversations for deletion", "days_old", daysOld, "deleted", deleted)
	return deleted, nil
}

func (p *Pipeline) SystemStats(ctx context.Context) (*entity.SystemStats, error) {
	return p.store.SystemStats(ctx)
}

func (p *Pipeline) getOrCreateConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return p.store.CreateConversation(ctx, userID, "")
	}
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, entity.ErrInvalidMessage.WithCause(err)
	}
	return p.store.GetConversation(ctx, id, userID)
}

// buildConversationContext assembles the bounded prompt excerpt,
// most recent turn first.
func (p *Pipeline) buildConversationContext(ctx context.Context, conversationID uuid.UUID) (string, error) {
	msgs, err := p.store.RecentMessages(ctx, conversationID, p.contextWindow)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, msg := range msgs {
		sender := "Asistente"
		if msg.Sender == entity.SenderUser {
			sender = "Usuario"
		}
		b.WriteString(sender)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// lookupCache returns a cached answer (and the prompt vector for a
// later save) when the semantic cache is wired and has a fresh hit.
func (p *Pipeline) lookupCache(ctx context.Context, req entity.MessageRequest) (*entity.AIResponse, []float32) {
	if p.cache == nil || p.embedder == nil {
		return nil, nil
	}
	vector, err := p.embedder.CreateEmbedding(ctx, req.Content)
	if err != nil {
		p.logger.Warn("embedding failed, skipping answer cache", "error", err)
		return nil, nil
	}
	hit, err := p.cache.Search(ctx, vector, req.UserID, cacheScoreThreshold)
	if err != nil {
		p.logger.Warn("answer cache lookup failed", "error", err)
		return nil, vector
	}
	if hit != nil {
		p.logger.Debug("answer cache hit", "user", req.UserID)
	}
	return hit, vector
}

// saveCacheAsync persists a fresh answer in the background; the request
// context may already be gone by the time the write lands.
func (p *Pipeline) saveCacheAsync(req entity.MessageRequest, resp *entity.AIResponse, vector []float32) {
	if p.cache == nil || vector == nil || resp.FallbackUsed {
		return
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.cache.Save(bgCtx, req.Content, resp, vector, req.UserID); err != nil {
			p.logger.Warn("answer cache save failed", "error", err)
		}
	}()
}
