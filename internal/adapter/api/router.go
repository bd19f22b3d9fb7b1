package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func SetupRouter(app *fiber.App, handler *ChatHandler) {
	// Middleware
	app.Use(logger.New())

	app.Get("/health", handler.Health)

	chat := app.Group("/api/v1/chat")
	chat.Post("/message", handler.SendMessage)
	chat.Get("/conversation/:id", handler.GetConversation)
	chat.Post("/conversation", handler.CreateConversation)
	chat.Put("/conversation/:id/archive", handler.ArchiveConversation)
	chat.Get("/conversations", handler.ListConversations)
	chat.Get("/rate-limit/status", handler.RateLimitStatus)
	chat.Get("/stats", handler.UserStats)

	admin := app.Group("/api/v1/admin")
	admin.Delete("/rate-limit/:userId", handler.ResetRateLimit)
	admin.Post("/cleanup/conversations", handler.CleanupConversations)
	admin.Get("/stats/system", handler.SystemStats)
}
