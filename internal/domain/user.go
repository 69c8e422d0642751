package domain

import "time"

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type User struct {
	ID        string
	Username  string
	Email     string
	Password  string // bcrypt hash
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(id, username, email, hashedPassword string) *User {
	return &User{
		ID:       id,
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Status:   UserStatusActive,
	}
}

type APIKeyStatus string

const (
	APIKeyActive  APIKeyStatus = "active"
	APIKeyRevoked APIKeyStatus = "revoked"
	APIKeyExpired APIKeyStatus = "expired"
)

// APIKey 长期凭证，作为JWT之外的Bearer认证方式
type APIKey struct {
	ID         string
	UserID     string
	Name       string
	Key        string
	Status     APIKeyStatus
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the key may authenticate a request right now.
func (k *APIKey) Usable(now time.Time) bool {
	if k.Status != APIKeyActive {
		return false
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
		return false
	}
	return true
}

type TokenClaims struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}
