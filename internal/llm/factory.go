package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// New builds the Generator selected by cfg.Provider.
// Gemini without an API key yields ErrNotConfigured.
func New(cfg *config.LLMConfig, logger *zap.Logger) (Generator, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "", "gemini":
		opts := []GeminiOption{
			WithGeminiHTTPClient(&http.Client{Timeout: timeout}),
			WithGeminiRetries(cfg.MaxRetries, 5*time.Second),
			WithGeminiLogger(logger),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithGeminiBaseURL(cfg.BaseURL))
		}
		if cfg.RequestsPerMinute > 0 {
			opts = append(opts, WithGeminiLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)))
		}
		c, err := NewGeminiClient(cfg.APIKey, cfg.Model, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: gemini, ollama)", cfg.Provider)
	}
}
