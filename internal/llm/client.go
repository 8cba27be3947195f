// Package llm is a small OpenRouter chat-completions client with retry,
// per-call timeouts and usage accounting.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultReferer = "https://diet-bot.local"
	DefaultTitle   = "Diet Bot"

	maxResponseSize = 4 * 1024 * 1024
)

// Request types recorded in the usage ledger.
const (
	TypeVision         = "vision"
	TypeVisionDetailed = "vision_detailed"
	TypeEdit           = "edit"
)

type Message struct {
	Role string
	Text string
	// Image, when set, is sent as an inline data URL after Text.
	Image     []byte
	ImageMIME string
}

type Request struct {
	Type        string
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// Timeout bounds each attempt. Zero leaves only the caller's context.
	Timeout  time.Duration
	UserID   *int64
	FoodName string
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	RequestID    string
	Content      string
	Model        string
	Usage        TokenUsage
	CostUSD      float64
	FinishReason string
}

// Usage is one ledger record. It is emitted for failed calls too.
type Usage struct {
	RequestID    string
	RequestType  string
	Model        string
	UserID       *int64
	FoodName     string
	CostUSD      float64
	TokensInput  int
	TokensOutput int
	Duration     time.Duration
	Err          error
}

// UsageRecorder receives one Usage per Complete call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, u Usage) error
}

type Client struct {
	apiKey      string
	baseURL     string
	referer     string
	title       string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
	recorders   []UsageRecorder
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) { c.retryConfig = cfg }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses
// to attribute traffic.
func WithAttribution(referer, title string) ClientOption {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// WithUsageRecorder adds a ledger sink. Recorder failures are logged and
// never affect the call.
func WithUsageRecorder(r UsageRecorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorders = append(c.recorders, r)
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		referer:     DefaultReferer,
		title:       DefaultTitle,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		retryConfig: DefaultRetryConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one chat completion, retrying transient failures, and
// records the call in every configured usage recorder.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	resp, err := c.completeWithRetry(ctx, req)

	u := Usage{
		RequestID:   requestID,
		RequestType: req.Type,
		Model:       req.Model,
		UserID:      req.UserID,
		FoodName:    req.FoodName,
		Duration:    time.Since(startedAt),
		Err:         err,
	}
	if resp != nil {
		resp.RequestID = requestID
		u.Model = resp.Model
		u.CostUSD = resp.CostUSD
		u.TokensInput = resp.Usage.PromptTokens
		u.TokensOutput = resp.Usage.CompletionTokens
	}
	c.record(ctx, u)

	if err != nil {
		return nil, fmt.Errorf("%s completion with %s: %w", req.Type, req.Model, err)
	}
	return resp, nil
}

func (c *Client) record(ctx context.Context, u Usage) {
	// The ledger write must survive a caller context that already timed out.
	ctx = context.WithoutCancel(ctx)
	for _, r := range c.recorders {
		if err := r.RecordUsage(ctx, u); err != nil {
			c.logger.Warn("Failed to record LLM usage",
				"request_id", u.RequestID,
				"request_type", u.RequestType,
				"error", err)
		}
	}
}

func (c *Client) completeWithRetry(ctx context.Context, req Request) (*Response, error) {
	attempts := c.retryConfig.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.doAttempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < attempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("LLM request failed, retrying",
				"request_type", req.Type,
				"attempt", attempt,
				"backoff", backoff,
				"error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

// calculateBackoff is exponential with +/-25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}
	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

func (c *Client) doAttempt(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("marshal chat request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	c.logger.Debug("Sending LLM request", "request_type", req.Type, "model", req.Model, "messages", len(req.Messages))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}
	return parseChatResponse(respBody, req.Model)
}

// classifyHTTPError marks rate limits and server errors transient and
// everything else fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}
	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func buildChatRequest(req Request) chatRequest {
	out := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		if len(m.Image) == 0 {
			out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: m.Text})
			continue
		}
		mime := m.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts := []contentPart{}
		if m.Text != "" {
			parts = append(parts, contentPart{Type: "text", Text: m.Text})
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(m.Image)},
		})
		out.Messages = append(out.Messages, chatMessage{Role: m.Role, Content: parts})
	}
	return out
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TokenUsage
		Cost *float64 `json:"cost"`
	} `json:"usage"`
	Cost  *float64 `json:"cost"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func parseChatResponse(body []byte, requestedModel string) (*Response, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, NewTransientError(fmt.Errorf("decode chat response: %w", err))
	}
	if parsed.Error != nil {
		return nil, NewFatalError(fmt.Errorf("LLM API error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, NewTransientError(fmt.Errorf("chat response has no choices"))
	}

	resp := &Response{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
	}
	if resp.Model == "" {
		resp.Model = requestedModel
	}

	var reported *float64
	if parsed.Usage != nil {
		resp.Usage = parsed.Usage.TokenUsage
		reported = parsed.Usage.Cost
	}
	if reported == nil {
		reported = parsed.Cost
	}
	if reported != nil {
		resp.CostUSD = *reported
	} else {
		resp.CostUSD = EstimateCost(requestedModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, nil
}
