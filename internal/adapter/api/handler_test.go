package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatbot-gateway/internal/adapter/client"
	"chatbot-gateway/internal/adapter/store"
	"chatbot-gateway/internal/config"
	"chatbot-gateway/internal/domain/repository"
	"chatbot-gateway/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		ProviderType:        "mock",
		ModelVersion:        "1.0",
		MaxTokens:           512,
		ConfidenceThreshold: 0.5,
		ScreenPattern:       `(?i)(spam|violencia|odio|discriminaci[óo]n|hack|malware|virus)`,
		GenerationTimeout:   2 * time.Second,
		Workers:             2,
		QueueSize:           8,
		ShutdownGrace:       time.Second,
		Confidence: config.ConfidenceWeights{
			ShortOutput: 0.7, Hedging: 0.8, TerminalBonus: 0.1, TerseAnswer: 0.6,
		},
	}

	orchestrator := usecase.NewOrchestrator(cfg,
		func(ctx context.Context) (repository.AIProvider, error) {
			return client.NewProvider(cfg, logger)
		},
		client.NewMockProvider(cfg.MaxTokens, cfg.ConfidenceThreshold, logger),
		logger)
	require.NoError(t, orchestrator.Initialize(context.Background()))
	t.Cleanup(orchestrator.Shutdown)

	limiter := store.NewWindowLimiter(store.WindowLimiterConfig{
		BurstLimit:        5,
		RequestsPerMinute: 20,
		RequestsPerHour:   100,
		StaleAfter:        2 * time.Hour,
	}, logger)
	t.Cleanup(limiter.Close)

	pipeline := usecase.NewPipeline(store.NewMemoryStore(), limiter, orchestrator, 10, 1000, logger)

	app := fiber.New()
	SetupRouter(app, NewChatHandler(pipeline, orchestrator, limiter, logger))
	return app
}

func postMessage(t *testing.T, app *fiber.App, userID, content string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"content": content})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestSendMessageOK(t *testing.T) {
	app := newTestApp(t)

	resp := postMessage(t, app, "u1", "Hola, ¿cómo estás?")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat struct {
		ConversationID string `json:"conversation_id"`
		AIMessage      struct {
			Content    string  `json:"content"`
			Confidence float64 `json:"confidence"`
		} `json:"ai_message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.NotEmpty(t, chat.ConversationID)
	assert.NotEmpty(t, chat.AIMessage.Content)
	assert.GreaterOrEqual(t, chat.AIMessage.Confidence, 0.1)
	assert.LessOrEqual(t, chat.AIMessage.Confidence, 1.0)
}

func TestSendMessageRateLimited(t *testing.T) {
	app := newTestApp(t)

	var last *http.Response
	for i := 0; i < 6; i++ {
		last = postMessage(t, app, "u1", "hola")
	}
	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)

	var body struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(last.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.ErrorCode)
	assert.Contains(t, body.Message, "límite de mensajes")
}

func TestSendMessageInvalidContent(t *testing.T) {
	app := newTestApp(t)

	resp := postMessage(t, app, "u1", "   ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postMessage(t, app, "u1", "puro spam")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "CONTENT_MODERATION", body.ErrorCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status        string `json:"status"`
		AIModelLoaded bool   `json:"ai_model_loaded"`
		AIModelStatus string `json:"ai_model_status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "UP", body.Status)
	assert.True(t, body.AIModelLoaded)
	assert.Equal(t, "HEALTHY", body.AIModelStatus)
}

func TestRateLimitStatusAndAdminReset(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 5; i++ {
		postMessage(t, app, "u1", "hola")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/rate-limit/status", nil)
	req.Header.Set("X-User-ID", "u1")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		BurstRequests    int `json:"burst_requests"`
		MaxBurstRequests int `json:"max_burst_requests"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 5, status.BurstRequests)
	assert.Equal(t, 5, status.MaxBurstRequests)

	reset := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/rate-limit/u1", nil)
	resp, err = app.Test(reset, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = postMessage(t, app, "u1", "hola otra vez")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminCleanupAndSystemStats(t *testing.T) {
	app := newTestApp(t)

	postMessage(t, app, "u1", "hola")

	stats := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/system", nil)
	resp, err := app.Test(stats, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		TotalConversations int64 `json:"total_conversations"`
		TotalMessages      int64 `json:"total_messages"`
		ActiveUsers        int64 `json:"active_users"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(1), body.TotalConversations)
	assert.Equal(t, int64(2), body.TotalMessages)
	assert.Equal(t, int64(1), body.ActiveUsers)

	cleanup := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cleanup/conversations?daysOld=30", nil)
	resp, err = app.Test(cleanup, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Nothing is old enough, so the conversation survives the sweep.
	resp, err = app.Test(stats, 5000)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(1), body.TotalConversations)

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cleanup/conversations?daysOld=0", nil)
	resp, err = app.Test(bad, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConversationLifecycleEndpoints(t *testing.T) {
	app := newTestApp(t)

	create := httptest.NewRequest(http.MethodPost, "/api/v1/chat/conversation?title=pruebas", nil)
	create.Header.Set("X-User-ID", "u1")
	resp, err := app.Test(create, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))

	get := httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversation/"+conv.ID, nil)
	get.Header.Set("X-User-ID", "u1")
	resp, err = app.Test(get, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong user gets a 404, not a leak.
	getOther := httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversation/"+conv.ID, nil)
	getOther.Header.Set("X-User-ID", "u2")
	resp, err = app.Test(getOther, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	archive := httptest.NewRequest(http.MethodPut, "/api/v1/chat/conversation/"+conv.ID+"/archive", nil)
	archive.Header.Set("X-User-ID", "u1")
	resp, err = app.Test(archive, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	list := httptest.NewRequest(http.MethodGet, "/api/v1/chat/conversations", nil)
	list.Header.Set("X-User-ID", "u1")
	resp, err = app.Test(list, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Zero(t, page.Total)
}
