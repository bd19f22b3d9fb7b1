package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable startup snapshot. Nothing reads the
// environment after Load returns.
type Config struct {
	Port string

	// Provider selection
	ProviderType   string // mock | local | openai | gemini
	ModelVersion   string
	OpenAIAPIKey   string
	OpenAIModel    string
	LocalEndpoint  string
	GeminiProject  string
	GeminiLocation string
	GeminiModel    string

	// Generation
	MaxTokens           int
	ConfidenceThreshold float64
	ScreenPattern       string
	GenerationTimeout   time.Duration
	Workers             int
	QueueSize           int
	ShutdownGrace       time.Duration

	Confidence ConfidenceWeights

	// Rate limiting
	BurstLimit        int
	RequestsPerMinute int
	RequestsPerHour   int
	SweepInterval     time.Duration
	StaleAfter        time.Duration

	// Conversations
	ContextWindow              int
	MaxMessagesPerConversation int

	// Optional collaborators
	RedisAddr        string
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	EmbeddingModel   string
}

// ConfidenceWeights are the empirical post-generation adjustments. They
// are tuning constants, not derived values; keep them configurable.
type ConfidenceWeights struct {
	ShortOutput   float64 // multiplier when the answer is under 10 chars
	Hedging       float64 // multiplier when the answer hedges
	TerminalBonus float64 // added when the answer ends a sentence
	TerseAnswer   float64 // multiplier when a long question gets a short answer
}

func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(".env"); err != nil {
		logger.Info("no .env file found, using system environment variables")
	}

	return Config{
		Port: envStr("PORT", "8080"),

		ProviderType:   envStr("AI_PROVIDER", "mock"),
		ModelVersion:   envStr("AI_MODEL_VERSION", "1.0"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    envStr("OPENAI_MODEL", "gpt-3.5-turbo"),
		LocalEndpoint:  envStr("LOCAL_AI_ENDPOINT", "http://localhost:8080/api/generate"),
		GeminiProject:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GeminiLocation: os.Getenv("GOOGLE_CLOUD_LOCATION"),
		GeminiModel:    envStr("GEMINI_MODEL", "gemini-2.5-flash"),

		MaxTokens:           envInt("AI_MAX_TOKENS", 512),
		ConfidenceThreshold: envFloat("AI_CONFIDENCE_THRESHOLD", 0.5),
		ScreenPattern:       envStr("CONTENT_SCREEN_PATTERN", `(?i)(spam|violencia|odio|discriminaci[óo]n|hack|malware|virus)`),
		GenerationTimeout:   envDuration("AI_TIMEOUT", 30*time.Second),
		Workers:             envInt("AI_WORKERS", 4),
		QueueSize:           envInt("AI_QUEUE_SIZE", 64),
		ShutdownGrace:       envDuration("SHUTDOWN_GRACE", 10*time.Second),

		Confidence: ConfidenceWeights{
			ShortOutput:   envFloat("CONFIDENCE_SHORT_OUTPUT", 0.7),
			Hedging:       envFloat("CONFIDENCE_HEDGING", 0.8),
			TerminalBonus: envFloat("CONFIDENCE_TERMINAL_BONUS", 0.1),
			TerseAnswer:   envFloat("CONFIDENCE_TERSE_ANSWER", 0.6),
		},

		BurstLimit:        envInt("RATE_LIMIT_BURST", 5),
		RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 20),
		RequestsPerHour:   envInt("RATE_LIMIT_PER_HOUR", 100),
		SweepInterval:     envDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		StaleAfter:        envDuration("RATE_LIMIT_STALE_AFTER", 2*time.Hour),

		ContextWindow:              envInt("CONTEXT_WINDOW", 10),
		MaxMessagesPerConversation: envInt("MAX_MESSAGES_PER_CONVERSATION", 1000),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		QdrantHost:       os.Getenv("QDRANT_HOST"),
		QdrantPort:       envInt("QDRANT_PORT", 6334),
		QdrantCollection: envStr("QDRANT_COLLECTION", "chat_answers"),
		EmbeddingModel:   envStr("EMBEDDING_MODEL", "text-embedding-004"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
