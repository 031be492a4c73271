package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultGeminiBaseURL is the Generative Language API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGeminiBaseURL overrides the API root.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(c *GeminiClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithGeminiHTTPClient sets the HTTP client (and with it the request timeout).
func WithGeminiHTTPClient(h *http.Client) GeminiOption {
	return func(c *GeminiClient) { c.client = h }
}

// WithGeminiLimiter throttles requests; nil disables throttling.
func WithGeminiLimiter(l *rate.Limiter) GeminiOption {
	return func(c *GeminiClient) { c.limiter = l }
}

// WithGeminiRetries sets the attempt count and the delay between attempts.
func WithGeminiRetries(n int, delay time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *zap.Logger) GeminiOption {
	return func(c *GeminiClient) { c.logger = l }
}

// NewGeminiClient returns a client for model. It fails with ErrNotConfigured without an API key.
func NewGeminiClient(apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNotConfigured)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c := &GeminiClient{
		baseURL:    DefaultGeminiBaseURL,
		apiKey:     apiKey,
		model:      model,
		client:     &http.Client{Timeout: 120 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxRetries: 3,
		retryDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	return c, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt as a single user turn and returns the concatenated text parts.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(opts...)
	model := c.model
	if o.Model != "" {
		model = o.Model
	}
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if o.SystemInstruction != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: o.SystemInstruction}}}
	}
	if o.Temperature != nil || o.TopP != nil || o.MaxTokens > 0 {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     o.Temperature,
			TopP:            o.TopP,
			MaxOutputTokens: o.MaxTokens,
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		text, retry, err := c.do(ctx, endpoint, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retry {
			break
		}
		if c.logger != nil {
			c.logger.Warn("gemini request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	return "", lastErr
}

func (c *GeminiClient) do(ctx context.Context, endpoint string, body []byte) (text string, retry bool, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", false, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("gemini: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, fmt.Errorf("gemini: decode response: %w", err)
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", false, fmt.Errorf("gemini: prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", false, fmt.Errorf("gemini: no candidates")
	}
	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return StripThinking(b.String()), false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
