package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(serverURL string) *DeepSeekAdapter {
	return NewDeepSeekAdapter(
		WithBaseURL(serverURL),
		WithCredential(func() string { return "test-key" }),
	)
}

func chatRequest(content string) *ChatRequest {
	return &ChatRequest{Messages: []ChatMessage{{Role: "user", Content: content}}}
}

func TestSendMessage_Success(t *testing.T) {
	var gotAuth string
	var gotBody deepSeekChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"model": "deepseek-chat",
			"choices": []map[string]any{
				{"message": map[string]string{"content": "hello there"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
	defer server.Close()

	resp, err := newTestAdapter(server.URL).SendMessage(context.Background(), chatRequest("hi"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "deepseek-chat", gotBody.Model)
	assert.Equal(t, 0.7, gotBody.Temperature)
	assert.Equal(t, 1000, gotBody.MaxTokens)
	assert.False(t, gotBody.Stream)

	assert.Equal(t, "hello there", resp.Message)
	assert.Equal(t, 8, resp.TokenCount)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "deepseek", resp.Metadata["provider"])
}

func TestSendMessage_RoleConfigPrepended(t *testing.T) {
	var gotBody deepSeekChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer server.Close()

	req := chatRequest("hi")
	req.RoleConfig = &RoleConfig{Name: "pirate", SystemPrompt: "Talk like a pirate."}
	_, err := newTestAdapter(server.URL).SendMessage(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "Talk like a pirate.", gotBody.Messages[0].Content)
}

func TestSendMessage_EstimatesTokensWithoutUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "12345678"}}},
		})
	}))
	defer server.Close()

	resp, err := newTestAdapter(server.URL).SendMessage(context.Background(), chatRequest("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TokenCount)
}

func TestSendMessage_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindAuthentication},
		{http.StatusForbidden, KindPermission},
		{http.StatusInternalServerError, KindUnavailable},
		{http.StatusBadRequest, KindProvider},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "boom"}})
		}))

		_, err := newTestAdapter(server.URL).SendMessage(context.Background(), chatRequest("hi"))
		require.Error(t, err, "status %d", tt.status)
		assert.True(t, IsKind(err, tt.kind), "status %d classified as %v", tt.status, err)
		server.Close()
	}
}

func TestSendMessage_MissingCredentialBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	a := NewDeepSeekAdapter(
		WithBaseURL(server.URL),
		WithCredential(func() string { return "" }),
	)
	_, err := a.SendMessage(context.Background(), chatRequest("hi"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.False(t, called)
}

func TestSendMessage_ValidationBeforeNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).SendMessage(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.False(t, called)
}

func TestSendMessage_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	_, err := newTestAdapter(server.URL).SendMessage(context.Background(), chatRequest("hi"))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProvider))
}

func TestGetModels_FromAPI(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "deepseek-chat", "object": "model"},
				{"id": "deepseek-coder", "object": "model"},
				{"id": "deepseek-reasoner", "object": "model"},
			},
		})
	}))
	defer server.Close()

	models := newTestAdapter(server.URL).GetModels(context.Background())
	assert.Equal(t, "/models", gotPath)
	require.Len(t, models, 3)
	assert.Equal(t, 32768, models[0].ContextWindow)
	assert.Equal(t, 16384, models[1].ContextWindow)
	// unknown model gets the default window
	assert.Equal(t, 4096, models[2].ContextWindow)
}

func TestGetModels_FallbackOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	models := newTestAdapter(server.URL).GetModels(context.Background())
	require.Len(t, models, 2)
	assert.Equal(t, "deepseek-chat", models[0].ID)
	assert.Equal(t, "deepseek-coder", models[1].ID)
}

func TestGetModels_FallbackWithoutCredential(t *testing.T) {
	a := NewDeepSeekAdapter(WithCredential(func() string { return "" }))
	models := a.GetModels(context.Background())
	require.Len(t, models, 2)
}

func TestIsConfigured_ReResolvesCredential(t *testing.T) {
	key := ""
	a := NewDeepSeekAdapter(WithCredential(func() string { return key }))

	assert.False(t, a.IsConfigured())
	key = "fresh-key"
	assert.True(t, a.IsConfigured())
}
