package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/model"
)

type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Save(ctx context.Context, key *domain.APIKey) error {
	if err := r.db.WithContext(ctx).Create(model.ToAPIKeyModel(key)).Error; err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) FindByKey(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	var entity model.APIKeyModel
	err := r.db.WithContext(ctx).Where("key = ?", rawKey).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *APIKeyRepository) FindByUser(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	var entities []*model.APIKeyModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get api keys: %w", err)
	}
	keys := make([]*domain.APIKey, len(entities))
	for i, entity := range entities {
		keys[i] = entity.ToDomain()
	}
	return keys, nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.APIKeyModel{}).
		Where("id = ?", id).
		Update("last_used_at", time.Now()).Error
}
