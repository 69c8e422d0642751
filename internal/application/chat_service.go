package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rtcface/chat-bot-backend/internal/adapter"
	"github.com/rtcface/chat-bot-backend/internal/domain"
)

const (
	// contextWindowSize bounds the prompt history sent to the provider.
	// This is a sliding window over the stored conversation, not the
	// provider's token capacity.
	contextWindowSize = 20

	// titleMaxLen caps conversation titles derived from the first message.
	titleMaxLen = 50

	historyPageLimit = 50
)

// fallbackReply is persisted as an assistant message when the provider
// fails, so the conversation log reflects that a turn was attempted.
const fallbackReply = "Sorry, something went wrong while processing your message. Please try again."

const fallbackReplyTokens = 20

// SendMessageInput carries one user turn.
type SendMessageInput struct {
	Content        string
	ConversationID string
	RoleID         string
	Model          string
	Temperature    *float64
	MaxTokens      *int
	Metadata       map[string]any
}

// ChatTurn is the response envelope for a completed turn.
type ChatTurn struct {
	Message        *domain.Message
	ConversationID string
	SessionID      string
}

// ConversationHistory bundles a conversation with its first message page.
type ConversationHistory struct {
	Conversation *domain.Conversation
	Messages     []*domain.Message
	Total        int64
	TotalPages   int
}

// ChatService orchestrates conversation state, role configuration and
// provider invocation. It holds no state across calls; everything lives in
// the stores.
type ChatService struct {
	conversations domain.ConversationRepository
	roles         domain.RoleRepository
	provider      adapter.AIProvider
	events        domain.TurnEventPublisher

	// backoff is injectable so tests do not sleep for real.
	backoff func(attempt int) time.Duration
}

func NewChatService(
	conversations domain.ConversationRepository,
	roles domain.RoleRepository,
	provider adapter.AIProvider,
	events domain.TurnEventPublisher,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		roles:         roles,
		provider:      provider,
		events:        events,
		backoff:       adapter.BackoffDelay,
	}
}

// SendMessage runs one user turn: resolve conversation and role config,
// persist the user message, assemble the context window, delegate to the
// provider, persist the reply. On provider failure the conversation still
// gets a fallback assistant message so history stays an accurate audit
// trail of attempts.
func (s *ChatService) SendMessage(ctx context.Context, userID string, in *SendMessageInput) (*ChatTurn, error) {
	if !s.provider.IsConfigured() {
		return nil, &adapter.Error{Kind: adapter.KindConfiguration, Message: "AI service not configured"}
	}

	conversation, err := s.resolveConversation(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	roleConfig, err := s.resolveRoleConfig(ctx, in)
	if err != nil {
		return nil, err
	}

	// Persist the user's message before calling the provider.
	_, err = s.conversations.AddMessage(ctx, conversation.ID, domain.CreateMessageData{
		Content:    in.Content,
		Role:       domain.RoleUser,
		TokenCount: adapter.EstimateTokenCount(in.Content),
		Metadata:   in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	// The window includes the message just saved.
	history, err := s.conversations.GetRecentMessages(ctx, conversation.ID, contextWindowSize)
	if err != nil {
		return nil, fmt.Errorf("get context window: %w", err)
	}
	messages := make([]adapter.ChatMessage, len(history))
	for i, m := range history {
		messages[i] = adapter.ChatMessage{Role: m.Role.String(), Content: m.Content}
	}

	aiReq := &adapter.ChatRequest{
		Messages:    messages,
		Model:       in.Model,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
		SessionID:   conversation.SessionID,
		RoleConfig:  roleConfig,
	}

	aiResp, err := s.callProvider(ctx, aiReq)
	if err != nil {
		log.Printf("[ERROR] AI service error for conversation %s: %v", conversation.ID, err)
		s.recordFailure(ctx, conversation.ID, err)
		return nil, domain.ErrProcessing
	}

	saved, err := s.conversations.AddMessage(ctx, conversation.ID, domain.CreateMessageData{
		Content:    aiResp.Message,
		Role:       domain.RoleAssistant,
		TokenCount: aiResp.TokenCount,
		ModelUsed:  aiResp.Model,
		Metadata: map[string]any{
			"provider":     s.provider.GetProviderName(),
			"finishReason": aiResp.FinishReason,
			"usage":        aiResp.Metadata["usage"],
		},
	})
	if err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	if _, err := s.conversations.UpdateLastActivity(ctx, conversation.ID); err != nil {
		log.Printf("[WARN] update last activity for %s: %v", conversation.ID, err)
	}

	if roleConfig != nil && in.RoleID != "" {
		if err := s.roles.IncrementUsage(ctx, in.RoleID); err != nil {
			log.Printf("[WARN] increment role usage %s: %v", in.RoleID, err)
		}
	}

	s.publishTurnCompleted(ctx, conversation, aiResp)

	log.Printf("Processed chat message for conversation %s: %d tokens used", conversation.ID, aiResp.TokenCount)

	return &ChatTurn{
		Message:        saved,
		ConversationID: conversation.ID,
		SessionID:      conversation.SessionID,
	}, nil
}

// resolveConversation finds the active conversation or creates a new one
// titled from the message. A supplied but unknown id also creates a new
// conversation; graceful degradation kept from the product's first cut.
func (s *ChatService) resolveConversation(ctx context.Context, userID string, in *SendMessageInput) (*domain.Conversation, error) {
	if in.ConversationID != "" {
		conversation, err := s.conversations.FindOne(ctx, in.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("find conversation: %w", err)
		}
		if conversation != nil {
			return conversation, nil
		}
		log.Printf("[WARN] conversation %s not found, creating a new one", in.ConversationID)
	}

	var draft domain.Conversation
	draft.SetTitle(in.Content, titleMaxLen)
	conversation, err := s.conversations.Create(ctx, userID, draft.Title)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	log.Printf("Created new conversation %s for user %s", conversation.ID, userID)
	return conversation, nil
}

// resolveRoleConfig overlays request-level temperature/maxTokens over the
// role's stored defaults; request values win. An unknown role id simply
// yields no role config.
func (s *ChatService) resolveRoleConfig(ctx context.Context, in *SendMessageInput) (*adapter.RoleConfig, error) {
	if in.RoleID == "" {
		return nil, nil
	}
	role, err := s.roles.FindOne(ctx, in.RoleID)
	if err != nil {
		return nil, fmt.Errorf("find role: %w", err)
	}
	if role == nil {
		return nil, nil
	}
	cfg := &adapter.RoleConfig{
		Name:         role.Name,
		SystemPrompt: role.SystemPrompt,
		Temperature:  role.Configuration.Temperature,
		MaxTokens:    role.Configuration.MaxTokens,
	}
	if in.Temperature != nil {
		cfg.Temperature = in.Temperature
	}
	if in.MaxTokens != nil {
		cfg.MaxTokens = in.MaxTokens
	}
	return cfg, nil
}

// callProvider owns the retry loop: the adapter classifies a 429 as
// retryable once per invocation, this loop sleeps and re-issues up to
// adapter.MaxRetries times. 5xx and everything else surface immediately.
func (s *ChatService) callProvider(ctx context.Context, req *adapter.ChatRequest) (*adapter.ChatResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := s.provider.SendMessage(ctx, req)
		if err == nil {
			return resp, nil
		}

		var provErr *adapter.Error
		if !errors.As(err, &provErr) || !provErr.Retryable() || attempt >= adapter.MaxRetries {
			return nil, err
		}

		delay := s.backoff(attempt)
		log.Printf("[WARN] rate limited, retrying in %s (attempt %d)", delay, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// recordFailure appends a fallback assistant message so that a failed turn
// remains visible in the conversation. Best-effort: a second failure here
// is only logged.
func (s *ChatService) recordFailure(ctx context.Context, conversationID string, cause error) {
	_, err := s.conversations.AddMessage(ctx, conversationID, domain.CreateMessageData{
		Content:    fallbackReply,
		Role:       domain.RoleAssistant,
		TokenCount: fallbackReplyTokens,
		Metadata:   map[string]any{"error": cause.Error()},
	})
	if err != nil {
		log.Printf("[ERROR] save fallback message for %s: %v", conversationID, err)
	}
}

func (s *ChatService) publishTurnCompleted(ctx context.Context, conversation *domain.Conversation, resp *adapter.ChatResponse) {
	if s.events == nil {
		return
	}
	ev := &domain.TurnCompletedEvent{
		ConversationID: conversation.ID,
		UserID:         conversation.UserID,
		Model:          resp.Model,
		TotalTokens:    resp.TokenCount,
		CompletedAt:    time.Now(),
	}
	if err := s.events.PublishTurnCompleted(ctx, ev); err != nil {
		log.Printf("[WARN] publish turn event for %s: %v", conversation.ID, err)
	}
}

// GetConversationHistory returns the conversation with its first page of
// messages. Deleted and archived conversations are not readable here.
func (s *ChatService) GetConversationHistory(ctx context.Context, conversationID string) (*ConversationHistory, error) {
	conversation, err := s.conversations.FindOne(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, domain.ErrConversationNotFound
	}
	page, err := s.conversations.GetMessages(ctx, conversationID, 1, historyPageLimit)
	if err != nil {
		return nil, err
	}
	return &ConversationHistory{
		Conversation: conversation,
		Messages:     page.Messages,
		Total:        page.Total,
		TotalPages:   page.TotalPages,
	}, nil
}

func (s *ChatService) GetConversationMessages(ctx context.Context, conversationID string, page, limit int) (*domain.MessagePage, error) {
	conversation, err := s.conversations.FindOne(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, domain.ErrConversationNotFound
	}
	return s.conversations.GetMessages(ctx, conversationID, page, limit)
}

func (s *ChatService) CreateConversation(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	if title == "" {
		title = fmt.Sprintf("Conversation %s", time.Now().Format("2006-01-02 15:04:05"))
	}
	return s.conversations.Create(ctx, userID, title)
}

func (s *ChatService) GetUserConversations(ctx context.Context, userID string, page, limit int) (*domain.ConversationPage, error) {
	return s.conversations.FindUserConversations(ctx, userID, page, limit)
}

// DeleteConversation soft-deletes; the row is never physically removed.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.conversations.SoftDelete(ctx, conversationID, userID)
}

func (s *ChatService) ArchiveConversation(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.conversations.Archive(ctx, conversationID, userID)
}

func (s *ChatService) UpdateConversationTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	return s.conversations.UpdateTitle(ctx, conversationID, userID, title)
}

func (s *ChatService) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	return s.conversations.GetUserStats(ctx, userID)
}

func (s *ChatService) GetModels(ctx context.Context) []adapter.ModelInfo {
	return s.provider.GetModels(ctx)
}

func (s *ChatService) GetRoles(ctx context.Context) ([]*domain.Role, error) {
	return s.roles.FindAll(ctx)
}
