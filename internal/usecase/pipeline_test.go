package usecase

import (
	"context"
	"testing"
	"time"

	"chatbot-gateway/internal/adapter/client"
	"chatbot-gateway/internal/adapter/store"
	"chatbot-gateway/internal/domain/entity"
	"chatbot-gateway/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, primary repository.AIProvider) (*Pipeline, *store.MemoryStore) {
	t.Helper()
	cfg := testConfig()
	o := NewOrchestrator(cfg,
		func(ctx context.Context) (repository.AIProvider, error) { return primary, nil },
		client.NewMockProvider(cfg.MaxTokens, cfg.ConfidenceThreshold, discardLogger()),
		discardLogger())
	require.NoError(t, o.Initialize(context.Background()))
	t.Cleanup(o.Shutdown)

	limiter := store.NewWindowLimiter(store.WindowLimiterConfig{
		BurstLimit:        5,
		RequestsPerMinute: 20,
		RequestsPerHour:   100,
		StaleAfter:        2 * time.Hour,
	}, discardLogger())
	t.Cleanup(limiter.Close)

	memStore := store.NewMemoryStore()
	return NewPipeline(memStore, limiter, o, 10, 1000, discardLogger()), memStore
}

func happyProvider() *stubProvider {
	return &stubProvider{
		result: entity.GenerationResult{
			Response:   "Claro, puedo ayudarte con esa consulta sin problema.",
			Confidence: 0.9,
		},
		version: "stub-1.0",
	}
}

func TestProcessMessageCreatesConversation(t *testing.T) {
	p, memStore := newTestPipeline(t, happyProvider())

	resp, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID:  "u1",
		Content: "Hola, ¿me puedes ayudar?",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, entity.SenderUser, resp.UserMessage.Sender)
	assert.Equal(t, "Hola, ¿me puedes ayudar?", resp.UserMessage.Content)
	assert.Equal(t, entity.SenderAssistant, resp.AIMessage.Sender)
	assert.NotEmpty(t, resp.AIMessage.Content)
	assert.Equal(t, "stub-1.0", resp.AIMessage.ModelVersion)

	// Both turns persisted to the same conversation.
	id, err := uuid.Parse(resp.ConversationID)
	require.NoError(t, err)
	msgs, err := memStore.RecentMessages(context.Background(), id, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestProcessMessageReusesConversation(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())

	first, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "u1", Content: "Primera pregunta",
	})
	require.NoError(t, err)

	second, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID:         "u1",
		Content:        "Segunda pregunta",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
}

func TestProcessMessageRateLimited(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())

	for i := 0; i < 5; i++ {
		_, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
			UserID: "u1", Content: "hola",
		})
		require.NoError(t, err, "request %d", i+1)
	}

	_, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "u1", Content: "hola",
	})
	assert.ErrorIs(t, err, entity.ErrRateLimitExceeded)

	// A different user is unaffected.
	_, err = p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "u2", Content: "hola",
	})
	assert.NoError(t, err)
}

func TestProcessMessageBlankUserRejected(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())

	_, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "", Content: "hola",
	})
	assert.ErrorIs(t, err, entity.ErrRateLimitExceeded)
}

func TestProcessMessageInvalidContent(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())

	_, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "u1", Content: "   ",
	})
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)

	_, err = p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID: "u1", Content: "esto es spam malicioso",
	})
	assert.ErrorIs(t, err, entity.ErrContentModeration)
}

func TestProcessMessageUnknownConversation(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())

	_, err := p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID:         "u1",
		Content:        "hola",
		ConversationID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, entity.ErrConversationNotFound)

	_, err = p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID:         "u1",
		Content:        "hola",
		ConversationID: "not-a-uuid",
	})
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)
}

func TestBuildConversationContextMostRecentFirst(t *testing.T) {
	p, memStore := newTestPipeline(t, happyProvider())

	conv, err := memStore.CreateConversation(context.Background(), "u1", "")
	require.NoError(t, err)
	for _, content := range []string{"uno", "dos", "tres"} {
		require.NoError(t, memStore.AppendMessage(context.Background(),
			entity.NewUserMessage(conv.ID, content)))
	}

	got, err := p.buildConversationContext(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Usuario: tres\nUsuario: dos\nUsuario: uno\n", got)
}

func TestProcessMessageConversationFull(t *testing.T) {
	p, memStore := newTestPipeline(t, happyProvider())
	p.maxMessages = 2

	conv, err := memStore.CreateConversation(context.Background(), "u1", "")
	require.NoError(t, err)
	require.NoError(t, memStore.AppendMessage(context.Background(), entity.NewUserMessage(conv.ID, "a")))
	require.NoError(t, memStore.AppendMessage(context.Background(), entity.NewUserMessage(conv.ID, "b")))

	_, err = p.ProcessMessage(context.Background(), entity.MessageRequest{
		UserID:         "u1",
		Content:        "hola",
		ConversationID: conv.ID.String(),
	})
	assert.ErrorIs(t, err, entity.ErrInvalidMessage)
}

func TestArchiveAndListConversations(t *testing.T) {
	p, _ := newTestPipeline(t, happyProvider())
	ctx := context.Background()

	first, err := p.CreateConversation(ctx, "u1", "primera")
	require.NoError(t, err)
	_, err = p.CreateConversation(ctx, "u1", "segunda")
	require.NoError(t, err)

	convs, total, err := p.ListConversations(ctx, "u1", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, convs, 2)

	require.NoError(t, p.ArchiveConversation(ctx, first.ID.String(), "u1"))

	convs, total, err = p.ListConversations(ctx, "u1", 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "segunda", convs[0].Title)
}
