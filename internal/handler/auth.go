package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rtcface/chat-bot-backend/internal/application"
	"github.com/rtcface/chat-bot-backend/internal/domain"
)

type AuthHandler struct {
	auth *application.AuthService
}

func NewAuthHandler(auth *application.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes mounts the public endpoints on pub and the
// authenticated ones on priv.
func (h *AuthHandler) RegisterRoutes(pub, priv *gin.RouterGroup) {
	pub.POST("/register", h.Register)
	pub.POST("/login", h.Login)
	pub.POST("/refresh", h.Refresh)
	priv.GET("/profile", h.Profile)
	priv.POST("/api-keys", h.CreateAPIKey)
	priv.GET("/api-keys", h.ListAPIKeys)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		UserName string `json:"user_name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.auth.Register(c.Request.Context(), &application.RegisterInput{
		Username: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":   out.UserID,
		"user_name": out.Username,
		"email":     out.Email,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		UserName string `json:"user_name" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效请求参数：" + err.Error()})
		return
	}

	out, err := h.auth.Login(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		// 不区分用户不存在和密码错误
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		if errors.Is(err, domain.ErrUserDisabled) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  out.AccessToken,
		"refresh_token": out.RefreshToken,
		"expires_at":    out.ExpiresAt,
		"user_id":       out.UserID,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": out.AccessToken,
		"expires_at":   out.ExpiresAt,
	})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	userID := c.GetString("user_id")

	user, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    user.ID,
		"user_name":  user.Username,
		"email":      user.Email,
		"status":     user.Status,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) CreateAPIKey(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Name      string     `json:"name" binding:"required"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := h.auth.GenerateAPIKey(c.Request.Context(), userID, req.Name, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	// 完整 key 只在创建时返回一次
	c.JSON(http.StatusCreated, gin.H{
		"id":         key.ID,
		"name":       key.Name,
		"key":        key.Key,
		"expires_at": key.ExpiresAt,
	})
}

func (h *AuthHandler) ListAPIKeys(c *gin.Context) {
	userID := c.GetString("user_id")

	keys, err := h.auth.ListAPIKeys(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list API keys"})
		return
	}

	out := make([]gin.H, len(keys))
	for i, key := range keys {
		out[i] = gin.H{
			"id":           key.ID,
			"name":         key.Name,
			"key_preview":  maskKey(key.Key),
			"status":       key.Status,
			"last_used_at": key.LastUsedAt,
			"expires_at":   key.ExpiresAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}
