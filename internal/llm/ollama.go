package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaBaseURL is the local Ollama server.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient calls a local Ollama server through /api/chat.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient returns a client for model served at baseURL.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

// Generate sends the system instruction and prompt as chat messages.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	o := Apply(opts...)
	model := c.model
	if o.Model != "" && !strings.HasPrefix(o.Model, "gemini") {
		model = o.Model
	}
	var msgs []ollamaMessage
	if o.SystemInstruction != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: o.SystemInstruction})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: prompt})

	options := map[string]any{}
	if o.Temperature != nil {
		options["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		options["top_p"] = *o.TopP
	}
	if o.MaxTokens > 0 {
		options["num_predict"] = o.MaxTokens
	}
	body, err := json.Marshal(ollamaRequest{Model: model, Messages: msgs, Stream: false, Options: options})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request: %w", err)
	}
	defer resp.Body.Close()

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, out.Error)
	}
	return StripThinking(out.Message.Content), nil
}
