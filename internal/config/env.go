package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set.
// Files that do not exist are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func ApplyEnv(cfg *Config) {
	cfg.LLM.APIKey = getEnv("GEMINI_API_KEY", cfg.LLM.APIKey)
	cfg.Extraction.OCRSpaceAPIKey = getEnv("OCR_SPACE_API_KEY", cfg.Extraction.OCRSpaceAPIKey)
	cfg.Illustration.APIKey = getEnv("OPENAI_API_KEY", cfg.Illustration.APIKey)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Extraction.OCRMaxPages = getEnvAsInt("OCR_TESSERACT_MAX_PAGES", cfg.Extraction.OCRMaxPages)
	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
