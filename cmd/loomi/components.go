package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/internal/embedding"
	"github.com/DekelUsach/Loomi-backend/internal/extract"
	"github.com/DekelUsach/Loomi-backend/internal/illustrate"
	"github.com/DekelUsach/Loomi-backend/internal/ingest"
	"github.com/DekelUsach/Loomi-backend/internal/llm"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/qa"
	"github.com/DekelUsach/Loomi-backend/internal/segment"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
	"github.com/DekelUsach/Loomi-backend/internal/vector"
)

// Components holds the wired services shared by the server and local commands.
type Components struct {
	Store    storage.Store
	Blobs    *storage.BlobStore
	Embedder embedding.Embedder
	Index    *vector.HybridIndex
	Tracker  *progress.Tracker
	Ingest   *ingest.Service
	QA       *qa.Service

	closers []func()
}

// Close releases every component in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if cfg.Storage.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		c.Store = pg
		logger.Info("using postgres store")
	} else {
		sq, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		c.Store = sq
		logger.Info("using sqlite store", zap.String("path", cfg.Storage.DatabasePath))
	}
	c.closers = append(c.closers, func() { _ = c.Store.Close() })

	blobs, err := storage.NewBlobStore(cfg.Storage.BlobDir, "")
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	c.Blobs = blobs

	emb, err := embedding.New(&cfg.Embedding, cfg.LLM.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	c.Embedder = emb
	c.closers = append(c.closers, func() { _ = emb.Close() })

	var spill vector.Spill
	if cfg.Storage.DatabaseURL != "" {
		pgSpill, err := vector.NewPostgresSpill(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres spill: %w", err)
		}
		spill = pgSpill
		c.closers = append(c.closers, pgSpill.Close)
	} else {
		diskSpill, err := vector.NewDiskSpill(cfg.Storage.SpillDir)
		if err != nil {
			return nil, fmt.Errorf("disk spill: %w", err)
		}
		spill = diskSpill
	}
	c.Index = vector.NewHybridIndex(emb,
		vector.WithChunking(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		vector.WithWeights(cfg.Retrieval.KeywordWeight, cfg.Retrieval.SemanticWeight),
		vector.WithSpill(spill),
		vector.WithLogger(logger),
	)
	c.closers = append(c.closers, func() { _ = c.Index.Close() })

	var gen llm.Generator
	if g, err := llm.New(&cfg.LLM, logger); err != nil {
		logger.Warn("text generation unavailable; segmentation and answers degrade", zap.Error(err))
	} else {
		gen = g
	}

	c.Tracker = progress.NewTracker(
		progress.WithTTL(time.Duration(cfg.Progress.TTLMinutes)*time.Minute),
		progress.WithLogCap(cfg.Progress.LogCap),
	)

	ingestOpts := []ingest.Option{
		ingest.WithTracker(c.Tracker),
		ingest.WithLanguage(cfg.Extraction.Language),
		ingest.WithThresholds(cfg.Extraction.PDFMinLength, cfg.Extraction.RejectBelow),
		ingest.WithLogger(logger),
	}
	if il := illustrate.New(&cfg.Illustration, blobs, logger); il.Enabled() {
		ingestOpts = append(ingestOpts, ingest.WithIllustrator(il))
		logger.Info("illustrations enabled", zap.String("model", cfg.Illustration.Model))
	}
	c.Ingest = ingest.NewService(
		newExtractor(cfg, logger),
		segment.New(gen,
			segment.WithModel(cfg.Segmentation.Model),
			segment.WithVerify(cfg.Segmentation.VerifyOrDefault()),
			segment.WithLogger(logger),
		),
		c.Store,
		c.Index,
		ingestOpts...,
	)
	c.QA = qa.NewService(c.Index, c.Store, gen,
		qa.WithTopK(cfg.Retrieval.TopK),
		qa.WithLogger(logger),
	)

	ok = true
	return c, nil
}

// newExtractor enables whichever OCR tiers this host supports.
func newExtractor(cfg *config.Config, logger *zap.Logger) *extract.Extractor {
	opts := []extract.Option{
		extract.WithMaxOCRPages(cfg.Extraction.OCRMaxPages),
		extract.WithStepTimeout(time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second),
		extract.WithLogger(logger),
	}
	if rec, err := extract.NewTesseractRecognizer(); err != nil {
		logger.Info("local OCR disabled", zap.Error(err))
	} else {
		opts = append(opts, extract.WithLocalOCR(extract.NewGraphicsMagick(cfg.Extraction.GMPath, nil), rec))
	}
	if cfg.Extraction.OCRSpaceAPIKey != "" {
		opts = append(opts, extract.WithRemoteOCR(extract.NewOCRSpace(cfg.Extraction.OCRSpaceAPIKey,
			extract.WithOCRSpaceEndpoint(cfg.Extraction.OCRSpaceURL),
			extract.WithOCRSpaceLimiter(rate.NewLimiter(rate.Every(time.Second), 1)),
			extract.WithOCRSpaceLogger(logger),
		)))
	} else {
		logger.Info("remote OCR disabled: no OCR_SPACE_API_KEY")
	}
	return extract.NewExtractor(opts...)
}
