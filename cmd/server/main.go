package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatbot-gateway/internal/adapter/api"
	"chatbot-gateway/internal/adapter/client"
	"chatbot-gateway/internal/adapter/store"
	"chatbot-gateway/internal/config"
	"chatbot-gateway/internal/domain/repository"
	"chatbot-gateway/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load(logger)
	ctx := context.Background()

	// Rate limiting is in-process: per-key sliding windows with a
	// background sweep.
	limiter := store.NewWindowLimiter(store.WindowLimiterConfig{
		BurstLimit:        cfg.BurstLimit,
		RequestsPerMinute: cfg.RequestsPerMinute,
		RequestsPerHour:   cfg.RequestsPerHour,
		SweepInterval:     cfg.SweepInterval,
		StaleAfter:        cfg.StaleAfter,
	}, logger)
	defer limiter.Close()

	// Conversation persistence: Redis when configured, in-memory otherwise.
	var convStore repository.ConversationStore = store.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		convStore = store.NewRedisStore(rdb)
		logger.Info("using redis conversation store", "addr", cfg.RedisAddr)
	}

	fallback := client.NewMockProvider(cfg.MaxTokens, cfg.ConfidenceThreshold, logger)
	orchestrator := usecase.NewOrchestrator(cfg,
		func(ctx context.Context) (repository.AIProvider, error) {
			return client.NewProvider(cfg, logger)
		},
		fallback, logger)

	if err := orchestrator.Initialize(ctx); err != nil {
		logger.Error("failed to initialize AI orchestrator", "error", err)
		os.Exit(1)
	}
	defer orchestrator.Shutdown()

	pipeline := usecase.NewPipeline(convStore, limiter, orchestrator,
		cfg.ContextWindow, cfg.MaxMessagesPerConversation, logger)

	// Optional semantic answer cache: needs both Qdrant and a Google
	// Cloud project for the embedder.
	if cfg.QdrantHost != "" && cfg.GeminiProject != "" {
		qClient, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.QdrantHost,
			Port: cfg.QdrantPort,
		})
		if err != nil {
			logger.Error("failed to connect to qdrant", "error", err)
			os.Exit(1)
		}
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  cfg.GeminiProject,
			Location: cfg.GeminiLocation,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			logger.Error("failed to init genai client", "error", err)
			os.Exit(1)
		}
		cache := store.NewQdrantCache(qClient, cfg.QdrantCollection, logger)
		if err := cache.InitCollection(ctx, 768); err != nil {
			logger.Error("failed to init qdrant collection", "error", err)
			os.Exit(1)
		}
		pipeline.WithAnswerCache(client.NewEmbedder(genaiClient, cfg.EmbeddingModel), cache)
		logger.Info("semantic answer cache enabled", "collection", cfg.QdrantCollection)
	}

	app := fiber.New(fiber.Config{
		AppName: "Chatbot Gateway",
	})
	handler := api.NewChatHandler(pipeline, orchestrator, limiter, logger)
	api.SetupRouter(app, handler)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutdown signal received")
		_ = app.Shutdown()
	}()

	logger.Info("chatbot gateway running", "port", cfg.Port, "provider", orchestrator.State().String())
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
