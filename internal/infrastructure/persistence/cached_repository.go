package persistence

import (
	"context"
	"errors"
	"log"

	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/cache"
)

// ConversationCache is what the cache-aside decorator needs from the cache
// layer. *cache.RedisCache satisfies it.
type ConversationCache interface {
	SaveConversation(ctx context.Context, conversation *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	SaveRecentWindow(ctx context.Context, conversationID string, limit int, messages []*domain.Message) error
	GetRecentWindow(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	InvalidateConversation(ctx context.Context, conversationID string) error
}

// CachedConversationRepository 读多写少的会话数据走 cache-aside
// Cache failures are logged and fall back to the database.
type CachedConversationRepository struct {
	repo  domain.ConversationRepository
	cache ConversationCache
}

func NewCachedConversationRepository(repo domain.ConversationRepository, conversationCache ConversationCache) *CachedConversationRepository {
	return &CachedConversationRepository{repo: repo, cache: conversationCache}
}

func (r *CachedConversationRepository) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	conversation, err := r.repo.Create(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SaveConversation(ctx, conversation); err != nil {
		log.Printf("[WARN] cache conversation %s: %v", conversation.ID, err)
	}
	return conversation, nil
}

func (r *CachedConversationRepository) FindOne(ctx context.Context, id string) (*domain.Conversation, error) {
	conversation, err := r.cache.GetConversation(ctx, id)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[WARN] read conversation %s from cache: %v", id, err)
	}
	conversation, err = r.repo.FindOne(ctx, id)
	if err != nil || conversation == nil {
		return conversation, err
	}
	if err := r.cache.SaveConversation(ctx, conversation); err != nil {
		log.Printf("[WARN] cache conversation %s: %v", id, err)
	}
	return conversation, nil
}

func (r *CachedConversationRepository) FindUserConversations(ctx context.Context, userID string, page, limit int) (*domain.ConversationPage, error) {
	return r.repo.FindUserConversations(ctx, userID, page, limit)
}

func (r *CachedConversationRepository) AddMessage(ctx context.Context, conversationID string, data domain.CreateMessageData) (*domain.Message, error) {
	message, err := r.repo.AddMessage(ctx, conversationID, data)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, conversationID)
	return message, nil
}

func (r *CachedConversationRepository) GetMessages(ctx context.Context, conversationID string, page, limit int) (*domain.MessagePage, error) {
	return r.repo.GetMessages(ctx, conversationID, page, limit)
}

func (r *CachedConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	messages, err := r.cache.GetRecentWindow(ctx, conversationID, limit)
	if err == nil {
		return messages, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[WARN] read recent messages of %s from cache: %v", conversationID, err)
	}
	messages, err = r.repo.GetRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if err := r.cache.SaveRecentWindow(ctx, conversationID, limit, messages); err != nil {
		log.Printf("[WARN] cache recent messages of %s: %v", conversationID, err)
	}
	return messages, nil
}

func (r *CachedConversationRepository) UpdateLastActivity(ctx context.Context, conversationID string) (bool, error) {
	updated, err := r.repo.UpdateLastActivity(ctx, conversationID)
	if updated {
		r.invalidate(ctx, conversationID)
	}
	return updated, err
}

func (r *CachedConversationRepository) Archive(ctx context.Context, conversationID, userID string) (bool, error) {
	archived, err := r.repo.Archive(ctx, conversationID, userID)
	if archived {
		r.invalidate(ctx, conversationID)
	}
	return archived, err
}

func (r *CachedConversationRepository) SoftDelete(ctx context.Context, conversationID, userID string) (bool, error) {
	deleted, err := r.repo.SoftDelete(ctx, conversationID, userID)
	if deleted {
		r.invalidate(ctx, conversationID)
	}
	return deleted, err
}

func (r *CachedConversationRepository) UpdateTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	updated, err := r.repo.UpdateTitle(ctx, conversationID, userID, title)
	if updated {
		r.invalidate(ctx, conversationID)
	}
	return updated, err
}

func (r *CachedConversationRepository) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return r.repo.GetUserStats(ctx, userID)
}

func (r *CachedConversationRepository) invalidate(ctx context.Context, conversationID string) {
	if err := r.cache.InvalidateConversation(ctx, conversationID); err != nil {
		log.Printf("[WARN] invalidate conversation %s cache: %v", conversationID, err)
	}
}
