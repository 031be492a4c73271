package illustrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

// Blobs stores image bytes and returns a reference to them.
type Blobs interface {
	Put(data []byte) (string, error)
}

// Illustrator generates images for paragraphs with bounded concurrency.
// A nil generator disables illustration.
type Illustrator struct {
	gen         ImageGenerator
	blobs       Blobs
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option configures an Illustrator.
type Option func(*Illustrator)

// WithConcurrency sets how many paragraphs are illustrated at once (default 1).
func WithConcurrency(n int) Option {
	return func(il *Illustrator) {
		if n > 0 {
			il.concurrency = n
		}
	}
}

// WithLimiter throttles generation requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(il *Illustrator) { il.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(il *Illustrator) { il.logger = l }
}

// NewIllustrator returns an Illustrator writing images to blobs.
func NewIllustrator(gen ImageGenerator, blobs Blobs, opts ...Option) *Illustrator {
	il := &Illustrator{gen: gen, blobs: blobs, concurrency: 1}
	for _, opt := range opts {
		opt(il)
	}
	return il
}

// New builds an Illustrator from cfg. It is disabled unless cfg.Enabled is set
// and an API key is present.
func New(cfg *config.IllustrationConfig, blobs Blobs, logger *zap.Logger) *Illustrator {
	opts := []Option{WithConcurrency(cfg.Concurrency), WithLogger(logger)}
	if cfg.RequestsPerMinute > 0 {
		opts = append(opts, WithLimiter(rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)))
	}
	if !cfg.Enabled {
		return NewIllustrator(nil, blobs, opts...)
	}
	gen, err := NewOpenAIImages(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Size, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		if logger != nil {
			logger.Warn("illustration disabled", zap.Error(err))
		}
		return NewIllustrator(nil, blobs, opts...)
	}
	return NewIllustrator(gen, blobs, opts...)
}

// Enabled reports whether images will be generated.
func (il *Illustrator) Enabled() bool {
	return il != nil && il.gen != nil && il.blobs != nil
}

// Prompt builds the image prompt for a paragraph.
func Prompt(paragraph string) string {
	return fmt.Sprintf("Ilustración para un cuento infantil, estilo acuarela, sin texto ni letras. Escena: %s",
		utils.Truncate(paragraph, 900))
}

// Illustrate returns one image reference per paragraph, in order. Failed
// paragraphs get an empty reference. onDone, if set, is called after each
// paragraph with the number finished so far.
func (il *Illustrator) Illustrate(ctx context.Context, paragraphs []string, onDone func(done, total int)) []string {
	refs := make([]string, len(paragraphs))
	if !il.Enabled() || len(paragraphs) == 0 {
		return refs
	}

	done := make(chan struct{}, len(paragraphs))
	var g errgroup.Group
	g.SetLimit(il.concurrency)

	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		n := 0
		for range done {
			n++
			if onDone != nil {
				onDone(n, len(paragraphs))
			}
		}
	}()

	for i, p := range paragraphs {
		i, p := i, p
		g.Go(func() error {
			defer func() { done <- struct{}{} }()
			ref, err := il.one(ctx, p)
			if err != nil {
				if il.logger != nil {
					il.logger.Warn("illustration failed", zap.Int("position", i+1), zap.Error(err))
				}
				return nil
			}
			refs[i] = ref
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	<-progressDone
	return refs
}

func (il *Illustrator) one(ctx context.Context, paragraph string) (string, error) {
	if il.limiter != nil {
		if err := il.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := il.gen.Generate(ctx, Prompt(paragraph))
	if err != nil {
		return "", err
	}
	return il.blobs.Put(img)
}
