package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type MessageModel struct {
	ID             string            `gorm:"primaryKey;size:36;column:id"`
	ConversationID string            `gorm:"index:idx_messages_conversation_id;size:36;not null;column:conversation_id"`
	Role           string            `gorm:"size:20;not null;column:role"`
	Content        string            `gorm:"type:text;not null;column:content"`
	TokenCount     int               `gorm:"not null;default:0;column:token_count"`
	ModelUsed      string            `gorm:"size:100;column:model_used"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt      time.Time         `gorm:"autoCreateTime;not null;index:idx_messages_created_at;column:created_at"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.MessageRole(m.Role),
		Content:        m.Content,
		TokenCount:     m.TokenCount,
		ModelUsed:      m.ModelUsed,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt,
	}
}

func ToMessageModel(m *domain.Message) *MessageModel {
	return &MessageModel{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		TokenCount:     m.TokenCount,
		ModelUsed:      m.ModelUsed,
		Metadata:       datatypes.JSONMap(m.Metadata),
		CreatedAt:      m.CreatedAt,
	}
}
