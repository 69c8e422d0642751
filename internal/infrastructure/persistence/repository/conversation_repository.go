package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	now := time.Now()
	entity := &model.ConversationModel{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          title,
		Status:         string(domain.ConversationActive),
		SessionID:      uuid.NewString(),
		MessageCount:   0,
		LastActivityAt: &now,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *ConversationRepository) FindOne(ctx context.Context, id string) (*domain.Conversation, error) {
	var entity model.ConversationModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, string(domain.ConversationActive)).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *ConversationRepository) FindUserConversations(ctx context.Context, userID string, page, limit int) (*domain.ConversationPage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("user_id = ? AND status = ?", userID, string(domain.ConversationActive))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	var entities []*model.ConversationModel
	if err := query.
		Order("last_activity_at desc").
		Limit(limit).
		Offset(offset).
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversations: %w", err)
	}

	conversations := make([]*domain.Conversation, len(entities))
	for i, entity := range entities {
		conversations[i] = entity.ToDomain()
	}
	return &domain.ConversationPage{
		Conversations: conversations,
		Total:         total,
		TotalPages:    totalPages(total, limit),
	}, nil
}

// AddMessage appends a message and bumps the conversation counters in one
// transaction. The increment is an atomic SQL expression, not read-modify-write.
func (r *ConversationRepository) AddMessage(ctx context.Context, conversationID string, data domain.CreateMessageData) (*domain.Message, error) {
	entity := &model.MessageModel{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           string(data.Role),
		Content:        data.Content,
		TokenCount:     data.TokenCount,
		ModelUsed:      data.ModelUsed,
		Metadata:       datatypes.JSONMap(data.Metadata),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation model.ConversationModel
		err := tx.Where("id = ? AND status = ?", conversationID, string(domain.ConversationActive)).
			First(&conversation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Create(entity).Error; err != nil {
			return err
		}
		return tx.Model(&model.ConversationModel{}).
			Where("id = ?", conversationID).
			Updates(map[string]any{
				"message_count":    gorm.Expr("message_count + 1"),
				"last_activity_at": time.Now(),
			}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID string, page, limit int) (*domain.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).Model(&model.MessageModel{}).
		Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	var entities []*model.MessageModel
	if err := query.
		Order("created_at asc").
		Limit(limit).
		Offset(offset).
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	messages := make([]*domain.Message, len(entities))
	for i, entity := range entities {
		messages[i] = entity.ToDomain()
	}
	return &domain.MessagePage{
		Messages:   messages,
		Total:      total,
		TotalPages: totalPages(total, limit),
	}, nil
}

// GetRecentMessages fetches the newest limit messages then reverses them so
// the caller receives the window oldest first.
func (r *ConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	var entities []*model.MessageModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Limit(limit).
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	messages := make([]*domain.Message, len(entities))
	for i, entity := range entities {
		messages[len(entities)-1-i] = entity.ToDomain()
	}
	return messages, nil
}

func (r *ConversationRepository) UpdateLastActivity(ctx context.Context, conversationID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("id = ?", conversationID).
		Update("last_activity_at", time.Now())
	if result.Error != nil {
		return false, fmt.Errorf("failed to update last activity: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ConversationRepository) Archive(ctx context.Context, conversationID, userID string) (bool, error) {
	return r.transition(ctx, conversationID, userID, domain.ConversationArchived)
}

func (r *ConversationRepository) SoftDelete(ctx context.Context, conversationID, userID string) (bool, error) {
	return r.transition(ctx, conversationID, userID, domain.ConversationDeleted)
}

func (r *ConversationRepository) transition(ctx context.Context, conversationID, userID string, status domain.ConversationStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("id = ? AND user_id = ? AND status <> ?", conversationID, userID, string(domain.ConversationDeleted)).
		Update("status", string(status))
	if result.Error != nil {
		return false, fmt.Errorf("failed to update conversation status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ConversationRepository) UpdateTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("id = ? AND user_id = ? AND status <> ?", conversationID, userID, string(domain.ConversationDeleted)).
		Update("title", title)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update title: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ConversationRepository) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	var stats domain.UserStats

	if err := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("user_id = ? AND status <> ?", userID, string(domain.ConversationDeleted)).
		Count(&stats.TotalConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&model.ConversationModel{}).
		Where("user_id = ? AND status = ?", userID, string(domain.ConversationActive)).
		Count(&stats.ActiveConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count active conversations: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&model.MessageModel{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ?", userID).
		Count(&stats.TotalMessages).Error; err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	return &stats, nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
