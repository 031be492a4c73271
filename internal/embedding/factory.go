package embedding

import (
	"fmt"
	"time"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider wrapped in an LRU cache.
// A gemini provider without an API key falls back to hashing.
func New(cfg *config.EmbeddingConfig, geminiAPIKey string, logger *zap.Logger) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "", "hash":
		inner = NewHashEmbedder(cfg.Dimensions)
	case "gemini":
		g, err := NewGeminiEmbedder(geminiAPIKey, cfg.Model, cfg.Dimensions, "", 60*time.Second)
		if err != nil {
			if logger != nil {
				logger.Warn("gemini embeddings unavailable, using hash embedder", zap.Error(err))
			}
			inner = NewHashEmbedder(cfg.Dimensions)
			break
		}
		inner = g
	case "onnx":
		o, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("onnx embedder: %w", err)
		}
		inner = o
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, gemini, onnx)", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
