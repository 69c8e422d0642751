package domain

import (
	"context"
	"time"
)

type TokenService interface {
	GenerateAccessToken(userID, username string) (string, time.Time, error)
	GenerateRefreshToken(userID, username string) (string, time.Time, error)
	ValidateToken(token string) (*TokenClaims, error)
	RefreshToken(refreshToken string) (string, time.Time, error)
}

type PasswordEncoder interface {
	Hash(raw string) (string, error)
	Verify(hash, raw string) bool
}

// TurnCompletedEvent 一轮对话完成后发布，供下游统计消费
type TurnCompletedEvent struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Model          string    `json:"model"`
	TotalTokens    int       `json:"total_tokens"`
	CompletedAt    time.Time `json:"completed_at"`
}

// TurnEventPublisher is optional infrastructure: publish failures are
// logged by the caller, never surfaced to the end user.
type TurnEventPublisher interface {
	PublishTurnCompleted(ctx context.Context, ev *TurnCompletedEvent) error
}
