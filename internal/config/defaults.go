package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 25
	}
	if cfg.Server.TimeoutSeconds == 0 {
		cfg.Server.TimeoutSeconds = 300
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/loomi/data/db/loomi.db"
	}
	if cfg.Storage.BlobDir == "" {
		cfg.Storage.BlobDir = "/usr/local/var/loomi/data/images"
	}
	if cfg.Storage.SpillDir == "" {
		cfg.Storage.SpillDir = "/usr/local/var/loomi/data/spill"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		if cfg.LLM.Provider == "ollama" {
			cfg.LLM.Model = "llama3.1"
		} else {
			cfg.LLM.Model = "gemini-2.5-flash"
		}
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RequestsPerMinute == 0 {
		cfg.LLM.RequestsPerMinute = 60
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.Dimensions = 768
		default:
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Extraction.Language == "" {
		cfg.Extraction.Language = "spa"
	}
	if cfg.Extraction.PDFMinLength == 0 {
		cfg.Extraction.PDFMinLength = 200
	}
	if cfg.Extraction.RejectBelow == 0 {
		cfg.Extraction.RejectBelow = 30
	}
	if cfg.Extraction.GMPath == "" {
		cfg.Extraction.GMPath = "gm"
	}
	if cfg.Extraction.OCRSpaceURL == "" {
		cfg.Extraction.OCRSpaceURL = "https://api.ocr.space/parse/image"
	}
	if cfg.Extraction.TimeoutSeconds == 0 {
		cfg.Extraction.TimeoutSeconds = 90
	}
	if cfg.Segmentation.Model == "" {
		cfg.Segmentation.Model = cfg.LLM.Model
	}
	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 80
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 15
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Illustration.BaseURL == "" {
		cfg.Illustration.BaseURL = "https://api.openai.com"
	}
	if cfg.Illustration.Model == "" {
		cfg.Illustration.Model = "dall-e-3"
	}
	if cfg.Illustration.Size == "" {
		cfg.Illustration.Size = "1024x1024"
	}
	if cfg.Illustration.Concurrency == 0 {
		cfg.Illustration.Concurrency = 1
	}
	if cfg.Illustration.RequestsPerMinute == 0 {
		cfg.Illustration.RequestsPerMinute = 5
	}
	if cfg.Illustration.TimeoutSeconds == 0 {
		cfg.Illustration.TimeoutSeconds = 120
	}
	if cfg.Progress.TTLMinutes == 0 {
		cfg.Progress.TTLMinutes = 30
	}
	if cfg.Progress.LogCap == 0 {
		cfg.Progress.LogCap = 300
	}
	if cfg.Library.Extensions == nil {
		cfg.Library.Extensions = []string{".pdf", ".docx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Library.Directories) > 0 && cfg.Library.Recursive == nil {
		t := true
		cfg.Library.Recursive = &t
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 30
	}
}
