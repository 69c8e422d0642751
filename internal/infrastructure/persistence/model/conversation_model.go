package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type ConversationModel struct {
	ID             string            `gorm:"primaryKey;size:36;column:id"`
	UserID         string            `gorm:"index:idx_conversations_user_id;size:36;not null;column:user_id"`
	Title          string            `gorm:"type:text;not null;column:title"`
	Status         string            `gorm:"size:20;not null;default:active;index:idx_conversations_status;column:status"`
	SessionID      string            `gorm:"size:36;column:session_id"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata"`
	MessageCount   int               `gorm:"not null;default:0;column:message_count"`
	LastActivityAt *time.Time        `gorm:"column:last_activity_at"`
	CreatedAt      time.Time         `gorm:"autoCreateTime;not null;column:created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime;not null;column:updated_at"`

	Messages []MessageModel `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (ConversationModel) TableName() string {
	return "conversations"
}

func (m *ConversationModel) ToDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:             m.ID,
		UserID:         m.UserID,
		Title:          m.Title,
		Status:         domain.ConversationStatus(m.Status),
		SessionID:      m.SessionID,
		Metadata:       m.Metadata,
		MessageCount:   m.MessageCount,
		LastActivityAt: m.LastActivityAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func ToConversationModel(c *domain.Conversation) *ConversationModel {
	return &ConversationModel{
		ID:             c.ID,
		UserID:         c.UserID,
		Title:          c.Title,
		Status:         string(c.Status),
		SessionID:      c.SessionID,
		Metadata:       datatypes.JSONMap(c.Metadata),
		MessageCount:   c.MessageCount,
		LastActivityAt: c.LastActivityAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
