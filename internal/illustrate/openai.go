// Package illustrate generates one illustration per paragraph.
package illustrate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no image API key is available.
var ErrNotConfigured = errors.New("image generation not configured")

// ImageGenerator turns a prompt into encoded image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// OpenAIImages calls the /v1/images/generations endpoint.
type OpenAIImages struct {
	baseURL string
	apiKey  string
	model   string
	size    string
	client  *http.Client
}

// NewOpenAIImages returns a client. baseURL defaults to https://api.openai.com.
func NewOpenAIImages(baseURL, apiKey, model, size string, timeout time.Duration) (*OpenAIImages, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai images: %w", ErrNotConfigured)
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "dall-e-3"
	}
	if size == "" {
		size = "1024x1024"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIImages{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		size:    size,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type imagesRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate requests a single image and decodes its base64 payload.
func (c *OpenAIImages) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(imagesRequest{
		Model:          c.model,
		Prompt:         prompt,
		N:              1,
		Size:           c.size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai images: request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai images: read response: %w", err)
	}

	var out imagesResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("openai images: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("openai images: status %d", resp.StatusCode)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, errors.New("openai images: empty response")
	}
	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai images: decode image: %w", err)
	}
	return img, nil
}
