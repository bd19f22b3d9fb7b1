package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chatbot-gateway/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists conversations in Redis: one hash per conversation,
// a per-user sorted set ordered by last activity, and a list of JSON
// messages per conversation.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func convKey(id uuid.UUID) string       { return "conv:" + id.String() }
func convMsgsKey(id uuid.UUID) string   { return "conv:" + id.String() + ":msgs" }
func userConvsKey(userID string) string { return "user:" + userID + ":convs" }

func (s *RedisStore) CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error) {
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

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, convKey(conv.ID), map[string]any{
		"user_id":       conv.UserID,
		"title":         conv.Title,
		"status":        string(conv.Status),
		"created_at":    conv.CreatedAt.UnixMilli(),
		"last_activity": conv.LastActivity.UnixMilli(),
		"message_count": 0,
	})
	pipe.ZAdd(ctx, userConvsKey(userID), redis.Z{
		Score:  float64(conv.LastActivity.UnixMilli()),
		Member: conv.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *RedisStore) GetConversation(ctx context.Context, id uuid.UUID, userID string) (*entity.Conversation, error) {
	fields, err := s.client.HGetAll(ctx, convKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if len(fields) == 0 || fields["user_id"] != userID ||
		fields["status"] == string(entity.ConversationDeleted) {
		return nil, entity.ErrConversationNotFound
	}
	return hydrateConversation(id, fields), nil
}

func (s *RedisStore) ListConversations(ctx context.Context, userID string, page, size int) ([]entity.Conversation, int64, error) {
	ids, err := s.client.ZRevRange(ctx, userConvsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}

	var active []entity.Conversation
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		fields, err := s.client.HGetAll(ctx, convKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		if fields["status"] != string(entity.ConversationActive) {
			continue
		}
		active = append(active, *hydrateConversation(id, fields))
	}

	total := int64(len(active))
	start := page * size
	if start >= len(active) {
		return []entity.Conversation{}, total, nil
	}
	end := start + size
	if end > len(active) {
		end = len(active)
	}
	return active[start:end], total, nil
}

func (s *RedisStore) ArchiveConversation(ctx context.Context, id uuid.UUID, userID string) error {
	if _, err := s.GetConversation(ctx, id, userID); err != nil {
		return err
	}
	return s.client.HSet(ctx, convKey(id), "status", string(entity.ConversationArchived)).Err()
}

func (s *RedisStore) AppendMessage(ctx context.Context, msg entity.Message) error {
	ownerID, err := s.client.HGet(ctx, convKey(msg.ConversationID), "user_id").Result()
	if err == redis.Nil {
		return entity.ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	now := time.Now()
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, convMsgsKey(msg.ConversationID), raw)
	pipe.HIncrBy(ctx, convKey(msg.ConversationID), "message_count", 1)
	pipe.HSet(ctx, convKey(msg.ConversationID), "last_activity", now.UnixMilli())
	pipe.ZAdd(ctx, userConvsKey(ownerID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: msg.ConversationID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entity.Message, error) {
	raws, err := s.client.LRange(ctx, convMsgsKey(conversationID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	// Stored oldest-first; callers expect most recent first.
	out := make([]entity.Message, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var msg entity.Message
		if err := json.Unmarshal([]byte(raws[i]), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *RedisStore) UserStats(ctx context.Context, userID string) (*entity.ConversationStats, error) {
	ids, err := s.client.ZRevRange(ctx, userConvsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	stats := &entity.ConversationStats{}
	cutoff := time.Now().Add(-24 * time.Hour)
	var totalProcessing int64
	var processed int64

	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		status, err := s.client.HGet(ctx, convKey(id), "status").Result()
		if err != nil {
			continue
		}
		if status == string(entity.ConversationActive) {
			stats.TotalConversations++
		}
		msgs, err := s.RecentMessages(ctx, id, 200)
		if err != nil {
			continue
		}
		for _, msg := range msgs {
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
// before the cutoff as deleted. Scans the conversation keyspace, so it
// is meant for the periodic admin sweep, not a hot path.
func (s *RedisStore) DeleteOldConversations(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, "conv:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":msgs") {
			continue
		}
		fields, err := s.client.HMGet(ctx, key, "status", "last_activity").Result()
		if err != nil {
			continue
		}
		status, _ := fields[0].(string)
		rawActivity, _ := fields[1].(string)
		lastActivity, _ := strconv.ParseInt(rawActivity, 10, 64)
		if status != string(entity.ConversationArchived) ||
			!time.UnixMilli(lastActivity).Before(before) {
			continue
		}
		if err := s.client.HSet(ctx, key, "status", string(entity.ConversationDeleted)).Err(); err != nil {
			return deleted, fmt.Errorf("delete old conversations: %w", err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("delete old conversations: %w", err)
	}
	return deleted, nil
}

func (s *RedisStore) SystemStats(ctx context.Context) (*entity.SystemStats, error) {
	stats := &entity.SystemStats{}
	users := make(map[string]struct{})

	iter := s.client.Scan(ctx, 0, "conv:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":msgs") {
			continue
		}
		fields, err := s.client.HMGet(ctx, key, "status", "message_count", "user_id").Result()
		if err != nil {
			continue
		}
		status, _ := fields[0].(string)
		if status == string(entity.ConversationDeleted) || status == "" {
			continue
		}
		rawCount, _ := fields[1].(string)
		count, _ := strconv.ParseInt(rawCount, 10, 64)
		stats.TotalConversations++
		stats.TotalMessages += count
		if userID, ok := fields[2].(string); ok && userID != "" {
			users[userID] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	stats.ActiveUsers = int64(len(users))
	return stats, nil
}

func hydrateConversation(id uuid.UUID, fields map[string]string) *entity.Conversation {
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	lastActivity, _ := strconv.ParseInt(fields["last_activity"], 10, 64)
	count, _ := strconv.Atoi(fields["message_count"])
	return &entity.Conversation{
		ID:           id,
		UserID:       fields["user_id"],
		Title:        fields["title"],
		Status:       entity.ConversationStatus(fields["status"]),
		CreatedAt:    time.UnixMilli(createdAt),
		LastActivity: time.UnixMilli(lastActivity),
		MessageCount: count,
	}
}
