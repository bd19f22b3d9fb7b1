package entity

import "time"

// GenerationRequest is the immutable per-call payload handed to a provider.
type GenerationRequest struct {
	Input     string
	Context   string
	MaxTokens int
	Timeout   time.Duration
}

// GenerationResult is what a provider reports back, before any
// post-processing or confidence gating.
type GenerationResult struct {
	Response     string
	Confidence   float64
	ModelVersion string
}

// AIResponse is the orchestrator's final answer: post-processed text,
// gated confidence, and timing. FallbackUsed marks a low-confidence
// substitution so it can be told apart from a genuine answer in logs.
type AIResponse struct {
	Content          string  `json:"content"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	ModelVersion     string  `json:"model_version"`
	FallbackUsed     bool    `json:"fallback_used,omitempty"`
	Cached           bool    `json:"cached,omitempty"`
}

type HealthState string

const (
	HealthHealthy   HealthState = "HEALTHY"
	HealthDegraded  HealthState = "DEGRADED"
	HealthUnhealthy HealthState = "UNHEALTHY"
)

type ModelHealth struct {
	Loaded    bool        `json:"loaded"`
	Version   string      `json:"version"`
	Status    HealthState `json:"status"`
	Timestamp int64       `json:"timestamp"`
}

// RateLimitStatus is a read-only snapshot of one key's admission windows.
type RateLimitStatus struct {
	MinuteRequests    int `json:"minute_requests"`
	HourRequests      int `json:"hour_requests"`
	BurstRequests     int `json:"burst_requests"`
	MaxMinuteRequests int `json:"max_minute_requests"`
	MaxHourRequests   int `json:"max_hour_requests"`
	MaxBurstRequests  int `json:"max_burst_requests"`
}

func (s RateLimitStatus) Blocked() bool {
	return s.MinuteRequests >= s.MaxMinuteRequests ||
		s.HourRequests >= s.MaxHourRequests ||
		s.BurstRequests >= s.MaxBurstRequests
}

// MessageRequest is the inbound chat payload.
type MessageRequest struct {
	Content        string `json:"content"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse pairs the echoed user turn with the generated turn.
type ChatResponse struct {
	ConversationID string    `json:"conversation_id"`
	UserMessage    Message   `json:"user_message"`
	AIMessage      Message   `json:"ai_message"`
	Timestamp      time.Time `json:"timestamp"`
}
