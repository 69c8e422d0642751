package domain

import "context"

// ConversationRepository 定义会话数据访问接口
// 不关心具体实现是db还是db+cache
type ConversationRepository interface {
	// Create persists a new active conversation for the user.
	Create(ctx context.Context, userID, title string) (*Conversation, error)
	// FindOne returns the conversation when it exists and is active, nil otherwise.
	FindOne(ctx context.Context, id string) (*Conversation, error)
	FindUserConversations(ctx context.Context, userID string, page, limit int) (*ConversationPage, error)
	// AddMessage appends a message and bumps messageCount/lastActivityAt atomically.
	AddMessage(ctx context.Context, conversationID string, data CreateMessageData) (*Message, error)
	// GetMessages returns one page of the conversation's messages, oldest first.
	GetMessages(ctx context.Context, conversationID string, page, limit int) (*MessagePage, error)
	// GetRecentMessages returns the most recent limit messages, oldest first.
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	UpdateLastActivity(ctx context.Context, conversationID string) (bool, error)
	// Archive/SoftDelete/UpdateTitle only touch rows owned by userID and
	// report whether anything changed.
	Archive(ctx context.Context, conversationID, userID string) (bool, error)
	SoftDelete(ctx context.Context, conversationID, userID string) (bool, error)
	UpdateTitle(ctx context.Context, conversationID, userID, title string) (bool, error)
	GetUserStats(ctx context.Context, userID string) (*UserStats, error)
}

type RoleRepository interface {
	FindAll(ctx context.Context) ([]*Role, error)
	// FindOne returns the role when it exists and is active, nil otherwise.
	FindOne(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	IncrementUsage(ctx context.Context, id string) error
}

type UserRepository interface {
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

type APIKeyRepository interface {
	Save(ctx context.Context, key *APIKey) error
	FindByKey(ctx context.Context, rawKey string) (*APIKey, error)
	FindByUser(ctx context.Context, userID string) ([]*APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}
