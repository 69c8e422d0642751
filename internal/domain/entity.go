package domain

import (
	"time"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

func (r MessageRole) String() string {
	return string(r)
}

func (r MessageRole) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
	ConversationDeleted  ConversationStatus = "deleted"
)

// Conversation 会话聚合根，独占其全部消息
type Conversation struct {
	ID             string
	UserID         string
	Title          string
	Status         ConversationStatus
	SessionID      string
	Metadata       map[string]any
	MessageCount   int
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SetTitle derives a title from message content, rune-safe, with an
// ellipsis suffix when truncated.
func (c *Conversation) SetTitle(content string, maxLen int) {
	runes := []rune(content)
	if len(runes) > maxLen {
		c.Title = string(runes[:maxLen]) + "..."
		return
	}
	c.Title = content
}

// Message 核心消息实体，append-only
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	TokenCount     int
	ModelUsed      string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// IsUser checks if the message is from a user
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

type RoleType string

const (
	RoleTypeSystem RoleType = "system"
	RoleTypeCustom RoleType = "custom"
)

// Role 预设角色: 系统提示词 + 生成参数
type Role struct {
	ID            string
	Name          string
	Description   string
	Type          RoleType
	SystemPrompt  string
	Configuration RoleConfiguration
	IsActive      bool
	UsageCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RoleConfiguration holds the role's default generation parameters.
// Nil fields mean "no preset, let the request or the provider decide".
type RoleConfiguration struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// CreateMessageData is the payload for appending one message to a conversation.
type CreateMessageData struct {
	Content    string
	Role       MessageRole
	TokenCount int
	ModelUsed  string
	Metadata   map[string]any
}

type MessagePage struct {
	Messages   []*Message
	Total      int64
	TotalPages int
}

type ConversationPage struct {
	Conversations []*Conversation
	Total         int64
	TotalPages    int
}

type UserStats struct {
	TotalConversations  int64
	ActiveConversations int64
	TotalMessages       int64
}
