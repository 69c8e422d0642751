package model

import (
	"time"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type UserModel struct {
	ID        string    `gorm:"primaryKey;size:36;column:id"`
	Username  string    `gorm:"uniqueIndex:idx_users_username;size:100;not null;column:username"`
	Email     string    `gorm:"uniqueIndex:idx_users_email;size:255;not null;column:email"`
	Password  string    `gorm:"size:100;not null;column:password"`
	Status    string    `gorm:"size:20;not null;default:active;column:status"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null;column:created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;column:updated_at"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *domain.User {
	return &domain.User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		Password:  m.Password,
		Status:    domain.UserStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToUserModel(u *domain.User) *UserModel {
	return &UserModel{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.Password,
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type APIKeyModel struct {
	ID         string     `gorm:"primaryKey;size:36;column:id"`
	UserID     string     `gorm:"index:idx_api_keys_user_id;size:36;not null;column:user_id"`
	Name       string     `gorm:"size:100;not null;column:name"`
	Key        string     `gorm:"uniqueIndex:idx_api_keys_key;size:64;not null;column:key"`
	Status     string     `gorm:"size:20;not null;default:active;column:status"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;not null;column:created_at"`
}

func (APIKeyModel) TableName() string {
	return "api_keys"
}

func (m *APIKeyModel) ToDomain() *domain.APIKey {
	return &domain.APIKey{
		ID:         m.ID,
		UserID:     m.UserID,
		Name:       m.Name,
		Key:        m.Key,
		Status:     domain.APIKeyStatus(m.Status),
		ExpiresAt:  m.ExpiresAt,
		LastUsedAt: m.LastUsedAt,
		CreatedAt:  m.CreatedAt,
	}
}

func ToAPIKeyModel(k *domain.APIKey) *APIKeyModel {
	return &APIKeyModel{
		ID:         k.ID,
		UserID:     k.UserID,
		Name:       k.Name,
		Key:        k.Key,
		Status:     string(k.Status),
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}
