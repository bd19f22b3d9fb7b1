package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chatbot-gateway/internal/domain/entity"

	"github.com/google/uuid"
)

// MemoryStore keeps conversations in process memory. It is the default
// collaborator when no Redis address is configured, and the test double
// everywhere else.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      map[uuid.UUID][]entity.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]*entity.Conversation),
		messages:      make(map[uuid.UUID][]entity.Message),
	}
}

func (s *MemoryStore) CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error) {
	if title == "" {
		title = defaultConversationTitle(time.Now())
	}
	conv := &entity.Conversation{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        title,
		Status:       entity.ConversationActive,
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	out := *conv
	return &out, nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, id uuid.UUID, userID string) (*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID || conv.Status == entity.ConversationDeleted {
		return nil, entity.ErrConversationNotFound
	}
	out := *conv
	return &out, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string, page, size int) ([]entity.Conversation, int64, error) {
	s.mu.RLock()
	var all []entity.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID && conv.Status == entity.ConversationActive {
			all = append(all, *conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastActivity.After(all[j].LastActivity)
	})

	total := int64(len(all))
	start := page * size
	if start >= len(all) {
		return []entity.Conversation{}, total, nil
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) ArchiveConversation(ctx context.Context, id uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok || conv.UserID != userID {
		return entity.ErrConversationNotFound
	}
	conv.Status = entity.ConversationArchived
	conv.LastActivity = time.Now()
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return entity.ErrConversationNotFound
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	conv.MessageCount++
	conv.LastActivity = time.Now()
	return nil
}

// RecentMessages returns up to limit messages, most recent first.
func (s *MemoryStore) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]entity.Message, 0, limit)
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (s *MemoryStore) UserStats(ctx context.Context, userID string) (*entity.ConversationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &entity.ConversationStats{}
	cutoff := time.Now().Add(-24 * time.Hour)
	var totalProcessing int64
	var processed int64

	for _, conv := range s.conversations {
		if conv.UserID != userID {
			continue
		}
		if conv.Status == entity.ConversationActive {
			stats.TotalConversations++
		}
		for _, msg := range s.messages[conv.ID] {
			if msg.CreatedAt.Before(cutoff) {
				continue
			}
			if msg.Sender == entity.SenderUser {
				stats.RecentMessages++
			} else if msg.ProcessingTimeMs > 0 {
				totalProcessing += msg.ProcessingTimeMs
				processed++
			}
		}
	}
	if processed > 0 {
		stats.AverageProcessingTime = float64(totalProcessing) / float64(processed)
	}
	return stats, nil
}

// DeleteOldConversations marks archived conversations last active
// before the cutoff as deleted.
func (s *MemoryStore) DeleteOldConversations(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for _, conv := range s.conversations {
		if conv.Status == entity.ConversationArchived && conv.LastActivity.Before(before) {
			conv.Status = entity.ConversationDeleted
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) SystemStats(ctx context.Context) (*entity.SystemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &entity.SystemStats{}
	users := make(map[string]struct{})
	for _, conv := range s.conversations {
		if conv.Status == entity.ConversationDeleted {
			continue
		}
		stats.TotalConversations++
		stats.TotalMessages += int64(conv.MessageCount)
		users[conv.UserID] = struct{}{}
	}
	stats.ActiveUsers = int64(len(users))
	return stats, nil
}

func defaultConversationTitle(now time.Time) string {
	return fmt.Sprintf("Conversación del %02d/%02d/%d", now.Day(), int(now.Month()), now.Year())
}
