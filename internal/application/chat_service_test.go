package application

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtcface/chat-bot-backend/internal/adapter"
	"github.com/rtcface/chat-bot-backend/internal/domain"
)

// In-memory fakes

type fakeConversationRepo struct {
	conversations map[string]*domain.Conversation
	messages      map[string][]*domain.Message
	nextID        int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]*domain.Message),
	}
}

func (f *fakeConversationRepo) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	f.nextID++
	id := fmt.Sprintf("conv-%d", f.nextID)
	c := &domain.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Status:    domain.ConversationActive,
		SessionID: "session-" + id,
		CreatedAt: time.Now(),
	}
	f.conversations[id] = c
	return c, nil
}

func (f *fakeConversationRepo) FindOne(ctx context.Context, id string) (*domain.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok || c.Status != domain.ConversationActive {
		return nil, nil
	}
	return c, nil
}

func (f *fakeConversationRepo) FindUserConversations(ctx context.Context, userID string, page, limit int) (*domain.ConversationPage, error) {
	var out []*domain.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID && c.Status != domain.ConversationDeleted {
			out = append(out, c)
		}
	}
	return &domain.ConversationPage{Conversations: out, Total: int64(len(out)), TotalPages: 1}, nil
}

func (f *fakeConversationRepo) AddMessage(ctx context.Context, conversationID string, data domain.CreateMessageData) (*domain.Message, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.Status != domain.ConversationActive {
		return nil, domain.ErrConversationNotFound
	}
	msg := &domain.Message{
		ID:             fmt.Sprintf("msg-%d", len(f.messages[conversationID])+1),
		ConversationID: conversationID,
		Role:           data.Role,
		Content:        data.Content,
		TokenCount:     data.TokenCount,
		ModelUsed:      data.ModelUsed,
		Metadata:       data.Metadata,
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	c.MessageCount++
	return msg, nil
}

func (f *fakeConversationRepo) GetMessages(ctx context.Context, conversationID string, page, limit int) (*domain.MessagePage, error) {
	msgs := f.messages[conversationID]
	return &domain.MessagePage{Messages: msgs, Total: int64(len(msgs)), TotalPages: 1}, nil
}

func (f *fakeConversationRepo) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeConversationRepo) UpdateLastActivity(ctx context.Context, conversationID string) (bool, error) {
	c, ok := f.conversations[conversationID]
	if !ok {
		return false, nil
	}
	now := time.Now()
	c.LastActivityAt = &now
	return true, nil
}

func (f *fakeConversationRepo) Archive(ctx context.Context, conversationID, userID string) (bool, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.UserID != userID || c.Status == domain.ConversationDeleted {
		return false, nil
	}
	c.Status = domain.ConversationArchived
	return true, nil
}

func (f *fakeConversationRepo) SoftDelete(ctx context.Context, conversationID, userID string) (bool, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.UserID != userID || c.Status == domain.ConversationDeleted {
		return false, nil
	}
	c.Status = domain.ConversationDeleted
	return true, nil
}

func (f *fakeConversationRepo) UpdateTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	c, ok := f.conversations[conversationID]
	if !ok || c.UserID != userID || c.Status == domain.ConversationDeleted {
		return false, nil
	}
	c.Title = title
	return true, nil
}

func (f *fakeConversationRepo) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	stats := &domain.UserStats{}
	for _, c := range f.conversations {
		if c.UserID != userID {
			continue
		}
		stats.TotalConversations++
		if c.Status == domain.ConversationActive {
			stats.ActiveConversations++
		}
		stats.TotalMessages += int64(len(f.messages[c.ID]))
	}
	return stats, nil
}

type fakeRoleRepo struct {
	roles map[string]*domain.Role
	usage map[string]int
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{roles: make(map[string]*domain.Role), usage: make(map[string]int)}
}

func (f *fakeRoleRepo) FindAll(ctx context.Context) ([]*domain.Role, error) {
	var out []*domain.Role
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRoleRepo) FindOne(ctx context.Context, id string) (*domain.Role, error) {
	r, ok := f.roles[id]
	if !ok || !r.IsActive {
		return nil, nil
	}
	return r, nil
}

func (f *fakeRoleRepo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRoleRepo) IncrementUsage(ctx context.Context, id string) error {
	f.usage[id]++
	return nil
}

// stubProvider scripts a sequence of responses/errors per call.
type stubProvider struct {
	configured bool
	responses  []stubCall
	calls      int
	lastReq    *adapter.ChatRequest
}

type stubCall struct {
	resp *adapter.ChatResponse
	err  error
}

func (s *stubProvider) SendMessage(ctx context.Context, req *adapter.ChatRequest) (*adapter.ChatResponse, error) {
	s.lastReq = req
	call := s.responses[s.calls]
	s.calls++
	return call.resp, call.err
}

func (s *stubProvider) GetModels(ctx context.Context) []adapter.ModelInfo { return nil }
func (s *stubProvider) GetProviderName() string                           { return "stub" }
func (s *stubProvider) IsConfigured() bool                                { return s.configured }
func (s *stubProvider) GetRateLimitInfo() adapter.RateLimitInfo           { return adapter.RateLimitInfo{} }

type fakePublisher struct {
	events []*domain.TurnCompletedEvent
}

func (f *fakePublisher) PublishTurnCompleted(ctx context.Context, ev *domain.TurnCompletedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func okResponse(message string) stubCall {
	return stubCall{resp: &adapter.ChatResponse{
		Message:      message,
		Model:        "deepseek-chat",
		TokenCount:   12,
		FinishReason: "stop",
		Metadata:     map[string]any{"provider": "stub"},
	}}
}

func rateLimited() stubCall {
	return stubCall{err: &adapter.Error{Kind: adapter.KindRateLimited, Status: 429, Message: "slow down"}}
}

func newTestService(repo *fakeConversationRepo, roles *fakeRoleRepo, provider *stubProvider, pub domain.TurnEventPublisher) (*ChatService, *[]time.Duration) {
	svc := NewChatService(repo, roles, provider, pub)
	var delays []time.Duration
	svc.backoff = func(attempt int) time.Duration {
		delays = append(delays, adapter.BackoffDelay(attempt))
		return 0
	}
	return svc, &delays
}

// Tests

func TestSendMessage_NewConversation(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("hello!")}}
	pub := &fakePublisher{}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, pub)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi there"})
	require.NoError(t, err)

	assert.Equal(t, "hello!", turn.Message.Content)
	assert.Equal(t, domain.RoleAssistant, turn.Message.Role)
	assert.NotEmpty(t, turn.ConversationID)
	assert.NotEmpty(t, turn.SessionID)

	// conversation titled from the first message
	conversation := repo.conversations[turn.ConversationID]
	assert.Equal(t, "hi there", conversation.Title)

	// user message then assistant message
	msgs := repo.messages[turn.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)

	// turn event published
	require.Len(t, pub.events, 1)
	assert.Equal(t, turn.ConversationID, pub.events[0].ConversationID)
	assert.Equal(t, 12, pub.events[0].TotalTokens)
}

func TestSendMessage_LongContentTruncatesTitle(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	content := strings.Repeat("a", 80)
	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: content})
	require.NoError(t, err)

	title := repo.conversations[turn.ConversationID].Title
	assert.Equal(t, strings.Repeat("a", 50)+"...", title)
}

func TestSendMessage_UnknownConversationIDCreatesNew(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{
		Content:        "hello",
		ConversationID: "no-such-id",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "no-such-id", turn.ConversationID)
	assert.Len(t, repo.conversations, 1)
}

func TestSendMessage_ReusesExistingConversation(t *testing.T) {
	repo := newFakeConversationRepo()
	existing, _ := repo.Create(context.Background(), "user-1", "old chat")
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{
		Content:        "more",
		ConversationID: existing.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, turn.ConversationID)
	assert.Len(t, repo.conversations, 1)
	// title unchanged on reuse
	assert.Equal(t, "old chat", existing.Title)
}

func TestSendMessage_NotConfigured(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: false}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi"})
	require.Error(t, err)
	assert.True(t, adapter.IsKind(err, adapter.KindConfiguration))
	assert.Empty(t, repo.conversations)
}

func TestSendMessage_RetriesRateLimit(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{
		rateLimited(), rateLimited(), okResponse("third time"),
	}}
	svc, delays := newTestService(repo, newFakeRoleRepo(), provider, nil)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "third time", turn.Message.Content)
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *delays)
}

func TestSendMessage_ExhaustsRetries(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{
		rateLimited(), rateLimited(), rateLimited(), rateLimited(),
	}}
	svc, delays := newTestService(repo, newFakeRoleRepo(), provider, nil)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi"})
	require.ErrorIs(t, err, domain.ErrProcessing)
	assert.Nil(t, turn)

	// three backoffs then the fourth attempt fails outright
	assert.Equal(t, 4, provider.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestSendMessage_FallbackMessageOnFailure(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{
		{err: &adapter.Error{Kind: adapter.KindUnavailable, Status: 503, Message: "down"}},
	}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi"})
	require.ErrorIs(t, err, domain.ErrProcessing)

	// user message plus fallback assistant message
	require.Len(t, repo.conversations, 1)
	for id := range repo.conversations {
		msgs := repo.messages[id]
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
		assert.Equal(t, fallbackReply, msgs[1].Content)
		assert.Equal(t, fallbackReplyTokens, msgs[1].TokenCount)
		assert.Contains(t, msgs[1].Metadata["error"], "down")
	}
}

func TestSendMessage_NoRetryOnServerError(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{
		{err: &adapter.Error{Kind: adapter.KindUnavailable, Status: 500, Message: "boom"}},
	}}
	svc, delays := newTestService(repo, newFakeRoleRepo(), provider, nil)

	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "hi"})
	require.ErrorIs(t, err, domain.ErrProcessing)
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, *delays)
}

func TestSendMessage_ContextWindowBounded(t *testing.T) {
	repo := newFakeConversationRepo()
	existing, _ := repo.Create(context.Background(), "user-1", "long chat")
	for i := 0; i < 30; i++ {
		repo.AddMessage(context.Background(), existing.ID, domain.CreateMessageData{
			Content: fmt.Sprintf("old message %d", i),
			Role:    domain.RoleUser,
		})
	}
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{
		Content:        "newest",
		ConversationID: existing.ID,
	})
	require.NoError(t, err)

	require.Len(t, provider.lastReq.Messages, 20)
	// newest message is the last one in the window
	assert.Equal(t, "newest", provider.lastReq.Messages[19].Content)
}

func TestSendMessage_RoleConfigOverlay(t *testing.T) {
	repo := newFakeConversationRepo()
	roles := newFakeRoleRepo()
	roleTemp := 0.3
	roleTokens := 500
	roles.roles["role-1"] = &domain.Role{
		ID:           "role-1",
		Name:         "tutor",
		SystemPrompt: "You are a tutor.",
		IsActive:     true,
		Configuration: domain.RoleConfiguration{
			Temperature: &roleTemp,
			MaxTokens:   &roleTokens,
		},
	}
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, roles, provider, nil)

	reqTemp := 0.9
	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{
		Content:     "teach me",
		RoleID:      "role-1",
		Temperature: &reqTemp,
	})
	require.NoError(t, err)

	cfg := provider.lastReq.RoleConfig
	require.NotNil(t, cfg)
	assert.Equal(t, "You are a tutor.", cfg.SystemPrompt)
	// request temperature wins over the role preset
	assert.Equal(t, 0.9, *cfg.Temperature)
	// role preset survives where the request is silent
	assert.Equal(t, 500, *cfg.MaxTokens)

	assert.Equal(t, 1, roles.usage["role-1"])
}

func TestSendMessage_UnknownRoleIgnored(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	_, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{
		Content: "hi",
		RoleID:  "ghost",
	})
	require.NoError(t, err)
	assert.Nil(t, provider.lastReq.RoleConfig)
}

func TestSendMessage_UserTokenEstimate(t *testing.T) {
	repo := newFakeConversationRepo()
	provider := &stubProvider{configured: true, responses: []stubCall{okResponse("ok")}}
	svc, _ := newTestService(repo, newFakeRoleRepo(), provider, nil)

	turn, err := svc.SendMessage(context.Background(), "user-1", &SendMessageInput{Content: "12345678"})
	require.NoError(t, err)

	msgs := repo.messages[turn.ConversationID]
	assert.Equal(t, 2, msgs[0].TokenCount)
}

func TestCreateConversation_DefaultTitle(t *testing.T) {
	repo := newFakeConversationRepo()
	svc, _ := newTestService(repo, newFakeRoleRepo(), &stubProvider{configured: true}, nil)

	c, err := svc.CreateConversation(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Title, "Conversation "))

	named, err := svc.CreateConversation(context.Background(), "user-1", "my chat")
	require.NoError(t, err)
	assert.Equal(t, "my chat", named.Title)
}

func TestGetConversationHistory_NotFound(t *testing.T) {
	repo := newFakeConversationRepo()
	svc, _ := newTestService(repo, newFakeRoleRepo(), &stubProvider{configured: true}, nil)

	_, err := svc.GetConversationHistory(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestDeleteAndArchiveScopedToOwner(t *testing.T) {
	repo := newFakeConversationRepo()
	c, _ := repo.Create(context.Background(), "user-1", "mine")
	svc, _ := newTestService(repo, newFakeRoleRepo(), &stubProvider{configured: true}, nil)

	deleted, err := svc.DeleteConversation(context.Background(), c.ID, "intruder")
	require.NoError(t, err)
	assert.False(t, deleted)

	archived, err := svc.ArchiveConversation(context.Background(), c.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, archived)
}

func TestGetUserStats(t *testing.T) {
	repo := newFakeConversationRepo()
	c1, _ := repo.Create(context.Background(), "user-1", "a")
	c2, _ := repo.Create(context.Background(), "user-1", "b")
	repo.Create(context.Background(), "user-2", "other")
	repo.AddMessage(context.Background(), c1.ID, domain.CreateMessageData{Content: "x", Role: domain.RoleUser})
	repo.Archive(context.Background(), c2.ID, "user-1")
	svc, _ := newTestService(repo, newFakeRoleRepo(), &stubProvider{configured: true}, nil)

	stats, err := svc.GetUserStats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalConversations)
	assert.Equal(t, int64(1), stats.ActiveConversations)
	assert.Equal(t, int64(1), stats.TotalMessages)
}
