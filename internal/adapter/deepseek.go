package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

const (
	deepSeekProviderName = "deepseek"
	deepSeekDefaultModel = "deepseek-chat"
	deepSeekBaseURL      = "https://api.deepseek.com/v1"

	// DeepSeekAPIKeyEnv is where the credential lives. It is read fresh on
	// every configuration check so rotation takes effect between calls.
	DeepSeekAPIKeyEnv = "DEEPSEEK_API_KEY"
)

// deepSeekContextWindows maps model id to context-window size.
var deepSeekContextWindows = map[string]int{
	"deepseek-chat":  32768,
	"deepseek-coder": 16384,
}

const deepSeekDefaultContextWindow = 4096

// DeepSeekAdapter translates normalized chat requests into DeepSeek's
// OpenAI-compatible wire format and back.
type DeepSeekAdapter struct {
	baseURL      string
	defaultModel string
	credential   CredentialFunc
	client       *http.Client
}

type DeepSeekOption func(*DeepSeekAdapter)

func WithBaseURL(url string) DeepSeekOption {
	return func(a *DeepSeekAdapter) { a.baseURL = url }
}

func WithDefaultModel(model string) DeepSeekOption {
	return func(a *DeepSeekAdapter) { a.defaultModel = model }
}

// WithCredential overrides the environment credential source. Tests and
// alternative secret stores use this.
func WithCredential(fn CredentialFunc) DeepSeekOption {
	return func(a *DeepSeekAdapter) { a.credential = fn }
}

func WithHTTPClient(c *http.Client) DeepSeekOption {
	return func(a *DeepSeekAdapter) { a.client = c }
}

func NewDeepSeekAdapter(opts ...DeepSeekOption) *DeepSeekAdapter {
	a := &DeepSeekAdapter{
		baseURL:      deepSeekBaseURL,
		defaultModel: deepSeekDefaultModel,
		credential:   func() string { return os.Getenv(DeepSeekAPIKeyEnv) },
		client:       &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DeepSeek wire types (OpenAI-compatible)

type deepSeekChatRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepSeekChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type deepSeekModelsResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	} `json:"data"`
}

type deepSeekErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (a *DeepSeekAdapter) SendMessage(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	apiKey := a.credential()
	if apiKey == "" {
		return nil, &Error{Kind: KindConfiguration, Message: "DeepSeek API key not configured"}
	}

	model := req.Model
	if model == "" {
		model = a.defaultModel
	}
	temperature := 0.7
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := 1000
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := BuildMessages(req)
	wireMsgs := make([]deepSeekMessage, len(messages))
	for i, m := range messages {
		wireMsgs[i] = deepSeekMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(deepSeekChatRequest{
		Model:       model,
		Messages:    wireMsgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return nil, &Error{Kind: KindProvider, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindProvider, Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		classified := &Error{Kind: KindProvider, Message: fmt.Sprintf("request failed: %v", err)}
		log.Printf("[ERROR] deepseek: %v", classified)
		return nil, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		classified := Classify(resp.StatusCode, a.readErrorMessage(resp))
		log.Printf("[ERROR] deepseek: %v", classified)
		return nil, classified
	}

	var data deepSeekChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &Error{Kind: KindProvider, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(data.Choices) == 0 {
		return nil, &Error{Kind: KindProvider, Message: "provider returned no choices"}
	}

	content := data.Choices[0].Message.Content
	tokenCount := EstimateTokenCount(content)
	var usage map[string]any
	if data.Usage != nil {
		tokenCount = data.Usage.TotalTokens
		usage = map[string]any{
			"promptTokens":     data.Usage.PromptTokens,
			"completionTokens": data.Usage.CompletionTokens,
			"totalTokens":      data.Usage.TotalTokens,
		}
	}

	return &ChatResponse{
		Message:      content,
		Model:        data.Model,
		TokenCount:   tokenCount,
		FinishReason: data.Choices[0].FinishReason,
		Metadata: map[string]any{
			"provider": deepSeekProviderName,
			"model":    data.Model,
			"usage":    usage,
		},
	}, nil
}

// readErrorMessage extracts the provider message from an error body,
// falling back to the HTTP status text.
func (a *DeepSeekAdapter) readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var errResp deepSeekErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return errResp.Error.Message
		}
	}
	return http.StatusText(resp.StatusCode)
}

// GetModels lists the provider catalog. Availability is favored over
// freshness: any failure degrades to the static fallback list, so callers
// never receive an empty catalog.
func (a *DeepSeekAdapter) GetModels(ctx context.Context) []ModelInfo {
	apiKey := a.credential()
	if apiKey == "" {
		return a.defaultModels()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return a.defaultModels()
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		log.Printf("[WARN] deepseek: fetch models failed, using fallback catalog: %v", err)
		return a.defaultModels()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[WARN] deepseek: fetch models returned %d, using fallback catalog", resp.StatusCode)
		return a.defaultModels()
	}

	var data deepSeekModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Printf("[WARN] deepseek: decode models failed, using fallback catalog: %v", err)
		return a.defaultModels()
	}
	if len(data.Data) == 0 {
		return a.defaultModels()
	}

	models := make([]ModelInfo, len(data.Data))
	for i, m := range data.Data {
		models[i] = ModelInfo{
			ID:                m.ID,
			Name:              m.ID,
			Provider:          deepSeekProviderName,
			ContextWindow:     a.contextWindow(m.ID),
			SupportsStreaming: true,
		}
	}
	return models
}

func (a *DeepSeekAdapter) GetProviderName() string {
	return deepSeekProviderName
}

func (a *DeepSeekAdapter) IsConfigured() bool {
	return a.credential() != ""
}

func (a *DeepSeekAdapter) GetRateLimitInfo() RateLimitInfo {
	return RateLimitInfo{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
	}
}

func (a *DeepSeekAdapter) contextWindow(modelID string) int {
	if w, ok := deepSeekContextWindows[modelID]; ok {
		return w
	}
	return deepSeekDefaultContextWindow
}

func (a *DeepSeekAdapter) defaultModels() []ModelInfo {
	return []ModelInfo{
		{
			ID:                "deepseek-chat",
			Name:              "DeepSeek Chat",
			Provider:          deepSeekProviderName,
			ContextWindow:     32768,
			SupportsStreaming: true,
		},
		{
			ID:                "deepseek-coder",
			Name:              "DeepSeek Coder",
			Provider:          deepSeekProviderName,
			ContextWindow:     16384,
			SupportsStreaming: true,
		},
	}
}
