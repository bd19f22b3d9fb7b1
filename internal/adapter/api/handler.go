package api

import (
	"log/slog"
	"time"

	"chatbot-gateway/internal/domain/entity"
	"chatbot-gateway/internal/domain/repository"
	"chatbot-gateway/internal/usecase"

	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	pipeline     *usecase.Pipeline
	orchestrator *usecase.Orchestrator
	limiter      repository.RateLimiter
	logger       *slog.Logger
}

func NewChatHandler(pipeline *usecase.Pipeline, orchestrator *usecase.Orchestrator,
	limiter repository.RateLimiter, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, orchestrator: orchestrator, limiter: limiter, logger: logger}
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Message          string `json:"message"`
	DeveloperMessage string `json:"developer_message"`
	Timestamp        int64  `json:"timestamp"`
}

// fail maps a pipeline error to a status code and a body whose message
// field is the safe user-facing text, never the internal diagnostic.
func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	if ce, ok := entity.AsChatError(err); ok {
		h.logger.Error("request failed", "code", ce.Code, "error", ce.Internal)
		return c.Status(ce.HTTPStatus).JSON(errorResponse{
			ErrorCode:        ce.Code,
			Message:          ce.UserMessage,
			DeveloperMessage: ce.Internal,
			Timestamp:        time.Now().UnixMilli(),
		})
	}
	h.logger.Error("unexpected error", "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
		ErrorCode:        "INTERNAL_ERROR",
		Message:          "Ha ocurrido un error inesperado. Por favor, contacta al soporte.",
		DeveloperMessage: "unexpected internal error",
		Timestamp:        time.Now().UnixMilli(),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req entity.MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, entity.ErrInvalidMessage.WithCause(err))
	}
	if req.UserID == "" {
		req.UserID = c.Get("X-User-ID")
	}

	h.logger.Info("received message", "user", req.UserID, "conversation", req.ConversationID)

	resp, err := h.pipeline.ProcessMessage(c.Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	conv, msgs, err := h.pipeline.GetConversation(c.Context(), c.Params("id"), c.Get("X-User-ID"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv, "messages": msgs})
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 20)
	if page < 0 || size < 1 || size > 100 {
		return h.fail(c, entity.ErrInvalidMessage)
	}

	convs, total, err := h.pipeline.ListConversations(c.Context(), c.Get("X-User-ID"), page, size)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"conversations": convs,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	conv, err := h.pipeline.CreateConversation(c.Context(), c.Get("X-User-ID"), c.Query("title"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (h *ChatHandler) ArchiveConversation(c *fiber.Ctx) error {
	if err := h.pipeline.ArchiveConversation(c.Context(), c.Params("id"), c.Get("X-User-ID")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) RateLimitStatus(c *fiber.Ctx) error {
	return c.JSON(h.limiter.Status(c.Get("X-User-ID")))
}

func (h *ChatHandler) ResetRateLimit(c *fiber.Ctx) error {
	userID := c.Params("userId")
	h.logger.Info("admin resetting rate limits", "user", userID)
	h.limiter.Reset(userID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) CleanupConversations(c *fiber.Ctx) error {
	daysOld := c.QueryInt("daysOld", 30)
	if daysOld < 1 {
		return h.fail(c, entity.ErrInvalidMessage)
	}
	h.logger.Info("admin triggering conversation cleanup", "days_old", daysOld)
	if _, err := h.pipeline.CleanupConversations(c.Context(), daysOld); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) SystemStats(c *fiber.Ctx) error {
	stats, err := h.pipeline.SystemStats(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

func (h *ChatHandler) UserStats(c *fiber.Ctx) error {
	stats, err := h.pipeline.UserStats(c.Context(), c.Get("X-User-ID"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}

func (h *ChatHandler) Health(c *fiber.Ctx) error {
	health := h.orchestrator.Health()

	status := fiber.StatusOK
	if !health.Loaded {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":           "UP",
		"timestamp":        health.Timestamp,
		"ai_model_loaded":  health.Loaded,
		"ai_model_status":  health.Status,
		"ai_model_version": health.Version,
	})
}
