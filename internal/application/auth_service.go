package application

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rtcface/chat-bot-backend/internal/domain"
)

// APIKeyPrefix marks opaque API keys so the auth middleware can tell them
// apart from JWTs.
const APIKeyPrefix = "cak_"

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type RegisterOutput struct {
	UserID   string
	Username string
	Email    string
}

type LoginOutput struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	UserID       string
}

type AuthService struct {
	users     domain.UserRepository
	apiKeys   domain.APIKeyRepository
	tokens    domain.TokenService
	passwords domain.PasswordEncoder
}

func NewAuthService(
	users domain.UserRepository,
	apiKeys domain.APIKeyRepository,
	tokens domain.TokenService,
	passwords domain.PasswordEncoder,
) *AuthService {
	return &AuthService{
		users:     users,
		apiKeys:   apiKeys,
		tokens:    tokens,
		passwords: passwords,
	}
}

func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (*RegisterOutput, error) {
	if existing, err := s.users.FindByUsername(ctx, in.Username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if existing != nil {
		return nil, domain.ErrUserExists
	}
	if existing, err := s.users.FindByEmail(ctx, in.Email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if existing != nil {
		return nil, domain.ErrUserExists
	}

	hashed, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := domain.NewUser(uuid.NewString(), in.Username, in.Email, hashed)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return &RegisterOutput{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginOutput, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if !s.passwords.Verify(user.Password, password) {
		return nil, domain.ErrInvalidPassword
	}
	if user.Status == domain.UserStatusDisabled {
		return nil, domain.ErrUserDisabled
	}

	access, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, _, err := s.tokens.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &LoginOutput{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt.Unix(),
		UserID:       user.ID,
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginOutput, error) {
	access, expiresAt, err := s.tokens.RefreshToken(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return &LoginOutput{
		AccessToken: access,
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// GenerateAPIKey issues an opaque long-lived credential for the user.
func (s *AuthService) GenerateAPIKey(ctx context.Context, userID, name string, expiresAt *time.Time) (*domain.APIKey, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	key := &domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Key:       APIKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:    domain.APIKeyActive,
		ExpiresAt: expiresAt,
	}
	if err := s.apiKeys.Save(ctx, key); err != nil {
		return nil, fmt.Errorf("save api key: %w", err)
	}
	return key, nil
}

func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	return s.apiKeys.FindByUser(ctx, userID)
}

// ValidateAPIKey resolves a raw key to its owner, rejecting revoked and
// expired keys, and touches lastUsedAt best-effort.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, error) {
	key, err := s.apiKeys.FindByKey(ctx, rawKey)
	if err != nil {
		return nil, fmt.Errorf("find api key: %w", err)
	}
	if key == nil || !key.Usable(time.Now()) {
		return nil, domain.ErrInvalidAPIKey
	}
	user, err := s.users.FindByID(ctx, key.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status == domain.UserStatusDisabled {
		return nil, domain.ErrInvalidAPIKey
	}
	if err := s.apiKeys.TouchLastUsed(ctx, key.ID); err != nil {
		log.Printf("[WARN] touch api key %s: %v", key.ID, err)
	}
	return user, nil
}
