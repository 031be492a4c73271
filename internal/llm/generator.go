// Package llm provides the generative text capability used for segmentation,
// grounded answers and quizzes.
package llm

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrNotConfigured is returned when a provider lacks its credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Options are per-call generation settings. Zero values mean provider defaults.
type Options struct {
	Model             string
	Temperature       *float64
	TopP              *float64
	MaxTokens         int
	SystemInstruction string
}

// Option sets a generation option.
type Option func(*Options)

// WithModel overrides the provider's default model.
func WithModel(m string) Option {
	return func(o *Options) { o.Model = m }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithTopP sets the nucleus sampling threshold.
func WithTopP(p float64) Option {
	return func(o *Options) { o.TopP = &p }
}

// WithMaxTokens caps the output size.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithSystemInstruction sets the system prompt.
func WithSystemInstruction(s string) Option {
	return func(o *Options) { o.SystemInstruction = s }
}

// Apply folds opts into an Options value.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks some models emit before the answer.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
