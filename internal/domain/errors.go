package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("username or email already registered")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrUserDisabled         = errors.New("user is disabled")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidAPIKey        = errors.New("invalid api key")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrPermissionDenied     = errors.New("permission denied")

	// ErrProcessing is the only error surfaced to the end caller when the
	// provider fails mid-turn. The underlying cause is logged, not exposed.
	ErrProcessing = errors.New("error processing message with AI service")
)
