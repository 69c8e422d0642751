// Package adapter normalizes heterogeneous AI provider APIs behind one
// capability interface. The orchestrator depends only on AIProvider, so a
// provider can be swapped without touching orchestration logic.
package adapter

import (
	"context"
)

// ChatMessage is one normalized message in a prompt. Immutable once sent.
type ChatMessage struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatRequest is the normalized request every provider receives.
// Invariant: Messages non-empty, Temperature in [0,2], MaxTokens >= 1.
type ChatRequest struct {
	Messages    []ChatMessage
	Model       string
	Temperature *float64
	MaxTokens   *int
	SessionID   string
	RoleConfig  *RoleConfig
}

// ChatResponse is the normalized completion returned by every provider.
type ChatResponse struct {
	Message      string
	Model        string
	TokenCount   int
	FinishReason string
	Metadata     map[string]any
}

// RoleConfig, when present, is prepended as a synthetic system message.
// It is never persisted as a stored message.
type RoleConfig struct {
	Name         string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    *int
}

type ModelInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	ContextWindow     int    `json:"contextWindow"`
	SupportsStreaming bool   `json:"supportsStreaming"`
}

type RateLimitInfo struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	RequestsPerHour   int `json:"requestsPerHour"`
}

// AIProvider is the capability set every model provider must implement.
type AIProvider interface {
	// SendMessage issues exactly one outbound call and returns a normalized
	// response. It fails with a KindConfiguration error when credentials are
	// absent and a KindValidation error when request invariants are violated,
	// in both cases before any network I/O.
	SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// GetModels is best-effort: on any transport failure it returns a static
	// fallback catalog instead of propagating the error.
	GetModels(ctx context.Context) []ModelInfo

	GetProviderName() string

	// IsConfigured re-resolves the credential on every call; the verdict is
	// never cached, so credential rotation is picked up immediately.
	IsConfigured() bool

	GetRateLimitInfo() RateLimitInfo
}

// CredentialFunc resolves the provider secret fresh on each invocation.
type CredentialFunc func() string

// BuildMessages assembles the outbound message array: system message first
// when a RoleConfig is present, then the conversation messages in order,
// unmodified.
func BuildMessages(req *ChatRequest) []ChatMessage {
	out := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.RoleConfig != nil {
		out = append(out, ChatMessage{
			Role:    "system",
			Content: req.RoleConfig.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// EstimateTokenCount approximates usage when the provider does not report
// it: 1 token ≈ 4 characters.
func EstimateTokenCount(text string) int {
	return (len(text) + 3) / 4
}

// ValidateRequest enforces the ChatRequest invariants. Violations are
// KindValidation errors and must be raised before any network I/O.
func ValidateRequest(req *ChatRequest) error {
	if len(req.Messages) == 0 {
		return &Error{Kind: KindValidation, Message: "messages array cannot be empty"}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &Error{Kind: KindValidation, Message: "temperature must be between 0 and 2"}
	}
	if req.MaxTokens != nil && *req.MaxTokens < 1 {
		return &Error{Kind: KindValidation, Message: "max tokens must be greater than 0"}
	}
	return nil
}
