package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rtcface/chat-bot-backend/internal/application"
	"github.com/rtcface/chat-bot-backend/internal/domain"
)

// TokenValidator verifies a JWT access token.
type TokenValidator interface {
	ValidateToken(token string) (*domain.TokenClaims, error)
}

// APIKeyValidator resolves an opaque API key to its owner.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, error)
}

// Auth accepts either a JWT access token or an API key in the
// Authorization header and stores the resolved user id in the context.
func Auth(tokens TokenValidator, apiKeys APIKeyValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少Authorization头"})
			c.Abort()
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization格式错误"})
			c.Abort()
			return
		}
		credential := parts[1]

		// API key走前缀判别，其余按JWT处理
		if strings.HasPrefix(credential, application.APIKeyPrefix) {
			user, err := apiKeys.ValidateAPIKey(c.Request.Context(), credential)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的API key"})
				c.Abort()
				return
			}
			c.Set("user_id", user.ID)
			c.Set("user_name", user.Username)
			c.Next()
			return
		}

		claims, err := tokens.ValidateToken(credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "令牌无效"})
			c.Abort()
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Username)
		c.Next()
	}
}
