package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rtcface/chat-bot-backend/internal/domain"
	"github.com/rtcface/chat-bot-backend/internal/infrastructure/persistence/model"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) FindAll(ctx context.Context) ([]*domain.Role, error) {
	var entities []*model.RoleModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name asc").
		Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	roles := make([]*domain.Role, len(entities))
	for i, entity := range entities {
		roles[i] = entity.ToDomain()
	}
	return roles, nil
}

func (r *RoleRepository) FindOne(ctx context.Context, id string) (*domain.Role, error) {
	var entity model.RoleModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var entity model.RoleModel
	err := r.db.WithContext(ctx).
		Where("name = ? AND is_active = ?", name, true).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return entity.ToDomain(), nil
}

func (r *RoleRepository) IncrementUsage(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.RoleModel{}).
		Where("id = ?", id).
		Update("usage_count", gorm.Expr("usage_count + 1")).Error
}
