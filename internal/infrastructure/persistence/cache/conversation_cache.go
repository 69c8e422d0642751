package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/model"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	ConversationTTL = 48 * time.Hour
	RecentWindowTTL = 24 * time.Hour
)

// RedisCache holds hot conversations and their recent message windows.
// 缓存失效只会回源数据库，绝不影响正确性
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) (*RedisCache, error) {
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) SaveConversation(ctx context.Context, conversation *domain.Conversation) error {
	data, err := json.Marshal(model.ToConversationModel(conversation))
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return r.client.Set(ctx, r.conversationKey(conversation.ID), data, ConversationTTL).Err()
}

func (r *RedisCache) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	data, err := r.client.Get(ctx, r.conversationKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation from cache: %w", err)
	}
	var entity model.ConversationModel
	if err := json.Unmarshal([]byte(data), &entity); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return entity.ToDomain(), nil
}

// SaveRecentWindow caches the message window keyed by its size, so windows
// of different sizes never get conflated.
func (r *RedisCache) SaveRecentWindow(ctx context.Context, conversationID string, limit int, messages []*domain.Message) error {
	entities := make([]*model.MessageModel, len(messages))
	for i, m := range messages {
		entities[i] = model.ToMessageModel(m)
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	return r.client.Set(ctx, r.recentWindowKey(conversationID, limit), data, RecentWindowTTL).Err()
}

func (r *RedisCache) GetRecentWindow(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	data, err := r.client.Get(ctx, r.recentWindowKey(conversationID, limit)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get messages from cache: %w", err)
	}
	var entities []*model.MessageModel
	if err := json.Unmarshal([]byte(data), &entities); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	messages := make([]*domain.Message, len(entities))
	for i, entity := range entities {
		messages[i] = entity.ToDomain()
	}
	return messages, nil
}

// InvalidateConversation drops the conversation and every cached window.
func (r *RedisCache) InvalidateConversation(ctx context.Context, conversationID string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.conversationKey(conversationID))
	pattern := fmt.Sprintf("conversation_window:%s:*", conversationID)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Key generation helpers

func (r *RedisCache) conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}

func (r *RedisCache) recentWindowKey(conversationID string, limit int) string {
	return fmt.Sprintf("conversation_window:%s:%d", conversationID, limit)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
