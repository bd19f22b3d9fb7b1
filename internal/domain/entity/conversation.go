package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "ACTIVE"
	ConversationArchived ConversationStatus = "ARCHIVED"
	ConversationDeleted  ConversationStatus = "DELETED"
)

type SenderType string

const (
	SenderUser      SenderType = "USER"
	SenderAssistant SenderType = "ASSISTANT"
)

type Conversation struct {
	ID           uuid.UUID          `json:"id"`
	UserID       string             `json:"user_id"`
	Title        string             `json:"title"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	LastActivity time.Time          `json:"last_activity"`
	MessageCount int                `json:"message_count"`
}

type Message struct {
	ID               uuid.UUID  `json:"id"`
	ConversationID   uuid.UUID  `json:"conversation_id"`
	Sender           SenderType `json:"sender"`
	Content          string     `json:"content"`
	ProcessingTimeMs int64      `json:"processing_time_ms,omitempty"`
	Confidence       float64    `json:"confidence,omitempty"`
	ModelVersion     string     `json:"model_version,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func NewUserMessage(conversationID uuid.UUID, content string) Message {
	return Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         SenderUser,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func NewAssistantMessage(conversationID uuid.UUID, resp *AIResponse) Message {
	return Message{
		ID:               uuid.New(),
		ConversationID:   conversationID,
		Sender:           SenderAssistant,
		Content:          resp.Content,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		Confidence:       resp.Confidence,
		ModelVersion:     resp.ModelVersion,
		CreatedAt:        time.Now(),
	}
}

// ConversationStats summarizes one user's recent activity.
type ConversationStats struct {
	TotalConversations    int64   `json:"total_conversations"`
	RecentMessages        int64   `json:"recent_messages"`
	AverageProcessingTime float64 `json:"average_processing_time_ms"`
}

// SystemStats is the admin-facing aggregate across all users.
type SystemStats struct {
	TotalConversations int64 `json:"total_conversations"`
	TotalMessages      int64 `json:"total_messages"`
	ActiveUsers        int64 `json:"active_users"`
}
