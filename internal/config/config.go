// Package config provides configuration loading and structs for the Loomi server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	LLM          LLMConfig          `yaml:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Extraction   ExtractionConfig   `yaml:"extraction"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Illustration IllustrationConfig `yaml:"illustration"`
	Progress     ProgressConfig     `yaml:"progress"`
	Library      LibraryConfig      `yaml:"library"`
	Auth         AuthConfig         `yaml:"auth"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxUploadMB    int    `yaml:"max_upload_mb"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig holds paths for the database, blobs and spilled vectors.
// DatabaseURL selects Postgres instead of the SQLite file when set.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	DatabaseURL  string `yaml:"database_url"`
	BlobDir      string `yaml:"blob_dir"`
	SpillDir     string `yaml:"spill_dir"`
}

// LLMConfig selects and tunes the generative text provider.
type LLMConfig struct {
	Provider          string `yaml:"provider"` // gemini or ollama
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash, gemini or onnx
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// ExtractionConfig holds text extraction thresholds and OCR settings.
type ExtractionConfig struct {
	Language       string `yaml:"language"`
	PDFMinLength   int    `yaml:"pdf_min_length"`
	RejectBelow    int    `yaml:"reject_below"`
	OCRMaxPages    int    `yaml:"ocr_max_pages"`
	GMPath         string `yaml:"gm_path"`
	OCRSpaceURL    string `yaml:"ocr_space_url"`
	OCRSpaceAPIKey string `yaml:"ocr_space_api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SegmentationConfig holds paragraph segmentation settings.
type SegmentationConfig struct {
	Model  string `yaml:"model"`
	Verify *bool  `yaml:"verify"`
}

// VerifyOrDefault returns whether segmented output is checked against the source; defaults to true.
func (s *SegmentationConfig) VerifyOrDefault() bool {
	if s.Verify != nil {
		return *s.Verify
	}
	return true
}

// RetrievalConfig holds chunking and ranking settings for the story index.
type RetrievalConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// IllustrationConfig holds image generation settings.
type IllustrationConfig struct {
	Enabled           bool   `yaml:"enabled"`
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	Size              string `yaml:"size"`
	Concurrency       int    `yaml:"concurrency"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

// ProgressConfig holds upload progress retention settings.
type ProgressConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	LogCap     int `yaml:"log_cap"`
}

// LibraryConfig holds directories whose documents are imported as shared texts.
type LibraryConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (l *LibraryConfig) RecursiveOrDefault() bool {
	if l.Recursive != nil {
		return *l.Recursive
	}
	return true
}

// AuthConfig holds bearer token verification settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// LogConfig holds optional log file rotation settings.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BlobDir = expandPath(cfg.Storage.BlobDir, configDir)
	cfg.Storage.SpillDir = expandPath(cfg.Storage.SpillDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File, configDir)
	}
	for i := range cfg.Library.Directories {
		cfg.Library.Directories[i] = expandPath(cfg.Library.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting library directory add/remove.
// Secrets that came from the environment are not written back.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.LLM.APIKey = ""
	out.Extraction.OCRSpaceAPIKey = ""
	out.Illustration.APIKey = ""
	out.Auth.JWTSecret = ""
	out.Storage.DatabaseURL = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
