package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rtcface/chat-bot-backend/internal/adapter"
	"github.com/rtcface/chat-bot-backend/internal/application"
	"github.com/rtcface/chat-bot-backend/internal/domain"
)

// ChatUseCase is the slice of the application layer the HTTP surface needs.
type ChatUseCase interface {
	SendMessage(ctx context.Context, userID string, in *application.SendMessageInput) (*application.ChatTurn, error)
	GetConversationHistory(ctx context.Context, conversationID string) (*application.ConversationHistory, error)
	GetConversationMessages(ctx context.Context, conversationID string, page, limit int) (*domain.MessagePage, error)
	CreateConversation(ctx context.Context, userID, title string) (*domain.Conversation, error)
	GetUserConversations(ctx context.Context, userID string, page, limit int) (*domain.ConversationPage, error)
	DeleteConversation(ctx context.Context, conversationID, userID string) (bool, error)
	ArchiveConversation(ctx context.Context, conversationID, userID string) (bool, error)
	UpdateConversationTitle(ctx context.Context, conversationID, userID, title string) (bool, error)
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)
	GetModels(ctx context.Context) []adapter.ModelInfo
	GetRoles(ctx context.Context) ([]*domain.Role, error)
}

type ChatHandler struct {
	chat ChatUseCase
}

func NewChatHandler(chat ChatUseCase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/send", h.SendMessage)
	rg.GET("/conversations", h.ListConversations)
	rg.POST("/conversations", h.CreateConversation)
	rg.GET("/conversations/:id", h.GetConversation)
	rg.GET("/conversations/:id/messages", h.GetMessages)
	rg.DELETE("/conversations/:id", h.DeleteConversation)
	rg.PUT("/conversations/:id/archive", h.ArchiveConversation)
	rg.PUT("/conversations/:id/title", h.UpdateTitle)
	rg.GET("/stats", h.GetStats)
	rg.GET("/models", h.GetModels)
	rg.GET("/roles", h.GetRoles)
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req struct {
		Content        string         `json:"content" binding:"required"`
		ConversationID string         `json:"conversation_id"`
		RoleID         string         `json:"role_id"`
		Model          string         `json:"model"`
		Temperature    *float64       `json:"temperature"`
		MaxTokens      *int           `json:"max_tokens"`
		Metadata       map[string]any `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turn, err := h.chat.SendMessage(c.Request.Context(), userID, &application.SendMessageInput{
		Content:        req.Content,
		ConversationID: req.ConversationID,
		RoleID:         req.RoleID,
		Model:          req.Model,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         messageJSON(turn.Message),
		"conversation_id": turn.ConversationID,
		"session_id":      turn.SessionID,
	})
}

func (h *ChatHandler) CreateConversation(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Title string `json:"title"`
	}
	c.ShouldBindJSON(&req)

	conversation, err := h.chat.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversationJSON(conversation))
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("user_id")
	page, limit := pagination(c)

	result, err := h.chat.GetUserConversations(c.Request.Context(), userID, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	conversations := make([]gin.H, len(result.Conversations))
	for i, conversation := range result.Conversations {
		conversations[i] = conversationJSON(conversation)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"total":         result.Total,
		"total_pages":   result.TotalPages,
		"page":          page,
	})
}

func (h *ChatHandler) GetConversation(c *gin.Context) {
	history, err := h.chat.GetConversationHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	messages := make([]gin.H, len(history.Messages))
	for i, msg := range history.Messages {
		messages[i] = messageJSON(msg)
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conversationJSON(history.Conversation),
		"messages":     messages,
		"total":        history.Total,
		"total_pages":  history.TotalPages,
	})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	page, limit := pagination(c)

	result, err := h.chat.GetConversationMessages(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	messages := make([]gin.H, len(result.Messages))
	for i, msg := range result.Messages {
		messages[i] = messageJSON(msg)
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":    messages,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"page":        page,
	})
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID := c.GetString("user_id")

	deleted, err := h.chat.DeleteConversation(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	userID := c.GetString("user_id")

	archived, err := h.chat.ArchiveConversation(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !archived {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) UpdateTitle(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.chat.UpdateConversationTitle(c.Request.Context(), c.Param("id"), userID, req.Title)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *ChatHandler) GetStats(c *gin.Context) {
	userID := c.GetString("user_id")

	stats, err := h.chat.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_conversations":  stats.TotalConversations,
		"active_conversations": stats.ActiveConversations,
		"total_messages":       stats.TotalMessages,
	})
}

func (h *ChatHandler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.chat.GetModels(c.Request.Context())})
}

func (h *ChatHandler) GetRoles(c *gin.Context) {
	roles, err := h.chat.GetRoles(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]gin.H, len(roles))
	for i, role := range roles {
		out[i] = gin.H{
			"id":            role.ID,
			"name":          role.Name,
			"description":   role.Description,
			"type":          role.Type,
			"configuration": role.Configuration,
			"usage_count":   role.UsageCount,
		}
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// writeError 按错误类型映射状态码，不泄露内部细节
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	var provErr *adapter.Error
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case adapter.KindValidation, adapter.KindConfiguration:
			c.JSON(http.StatusBadRequest, gin.H{"error": provErr.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": provErr.Message})
		}
		return
	}

	switch {
	case errors.Is(err, domain.ErrProcessing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConversationNotFound), errors.Is(err, domain.ErrRoleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func conversationJSON(c *domain.Conversation) gin.H {
	var lastActivity *string
	if c.LastActivityAt != nil {
		formatted := c.LastActivityAt.Format(time.RFC3339)
		lastActivity = &formatted
	}
	return gin.H{
		"id":               c.ID,
		"title":            c.Title,
		"status":           c.Status,
		"session_id":       c.SessionID,
		"message_count":    c.MessageCount,
		"last_activity_at": lastActivity,
		"created_at":       c.CreatedAt.Format(time.RFC3339),
	}
}

func messageJSON(m *domain.Message) gin.H {
	return gin.H{
		"id":          m.ID,
		"role":        m.Role,
		"content":     m.Content,
		"token_count": m.TokenCount,
		"model_used":  m.ModelUsed,
		"metadata":    m.Metadata,
		"created_at":  m.CreatedAt.Format(time.RFC3339),
	}
}
