// Package segment splits extracted text into short, ordered paragraphs by
// asking a language model to mark section boundaries without touching the text.
package segment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/DekelUsach/Loomi-backend/internal/llm"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"go.uber.org/zap"
)

// Marker delimits sections in the model output.
const Marker = "⇼"

const noTextReply = "no text sent"

const instructions = `You prepare narrative text for illustration. You will receive a long excerpt and must return it divided into visual sections.

Rules:
1. Never change, reword, reorder or omit any character of the original text. The only allowed edits are the ones listed here.
2. Insert the character ⇼ immediately before each new section that is visually or narratively distinct (setting, characters, actions, key objects, emotional turns).
3. Each section should hold roughly 20 to 35 words and never more than 35. Descriptive or static passages can be grouped; busy scenes should be separated.
4. Never place ⇼ in the middle of a sentence. Every section ends where a sentence ends.
5. Print one final ⇼ at the very end of the output.
6. In each section, wrap the single most important word or short phrase in <b></b>, for example: The marvelous minion got <b>excited</b> when he saw a banana.
7. Output only the divided text. No commentary, no explanations, no <think> or reasoning tags.

If no text is provided, reply exactly with "no text sent".`

const promptSuffix = "\n\nBelow, I'll leave you the text to which you must apply these instructions:\n\n"

const systemInstruction = "You split text by inserting the character ⇼ before each visually coherent section. Respond ONLY with the transformed text and a final ⇼."

// Segmenter marks and splits text into paragraphs.
type Segmenter struct {
	gen     llm.Generator
	model   string
	verify  bool
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithModel sets the model used for marking.
func WithModel(m string) Option {
	return func(s *Segmenter) { s.model = m }
}

// WithVerify toggles the check that paragraphs reproduce the source text.
func WithVerify(v bool) Option {
	return func(s *Segmenter) { s.verify = v }
}

// WithTimeout bounds the marking call.
func WithTimeout(d time.Duration) Option {
	return func(s *Segmenter) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// New returns a Segmenter. A nil generator leaves it permanently in degraded
// mode, where every text becomes a single paragraph.
func New(gen llm.Generator, opts ...Option) *Segmenter {
	s := &Segmenter{gen: gen, verify: true, timeout: 3 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkSections returns text with ⇼ inserted at section boundaries, or "" when
// the model is unavailable or fails.
func (s *Segmenter) MarkSections(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" || s.gen == nil {
		return ""
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	opts := []llm.Option{
		llm.WithTemperature(0.2),
		llm.WithTopP(0.8),
		llm.WithMaxTokens(1048576),
		llm.WithSystemInstruction(systemInstruction),
	}
	if s.model != "" {
		opts = append(opts, llm.WithModel(s.model))
	}
	out, err := s.gen.Generate(ctx, instructions+promptSuffix+text, opts...)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("section marking failed", zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(out)
}

var (
	decoratedMarker = regexp.MustCompile(`\*?` + Marker + `\*?`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// SplitIntoParagraphs splits marked text on ⇼ and returns the non-empty,
// whitespace-collapsed fragments in order.
func SplitIntoParagraphs(marked string) []string {
	if marked == "" {
		return nil
	}
	marked = decoratedMarker.ReplaceAllString(marked, Marker)
	var out []string
	for _, part := range strings.Split(marked, Marker) {
		part = strings.TrimSpace(whitespaceRun.ReplaceAllString(part, " "))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Segment returns the ordered paragraphs of text. Whenever marking fails,
// yields nothing or does not reproduce the source, the whole trimmed text
// is returned as one paragraph.
func (s *Segmenter) Segment(ctx context.Context, text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	single := []string{trimmed}

	marked := s.MarkSections(ctx, trimmed)
	if marked == "" || strings.EqualFold(strings.Trim(marked, " .\"'"), noTextReply) {
		return single
	}
	paragraphs := SplitIntoParagraphs(marked)
	if len(paragraphs) == 0 {
		return single
	}
	if s.verify && !Reproduces(paragraphs, trimmed) {
		if s.logger != nil {
			s.logger.Warn("segmentation altered the source text, keeping a single paragraph",
				zap.Int("paragraphs", len(paragraphs)))
		}
		return single
	}
	return paragraphs
}

// Reproduces reports whether the paragraphs, once emphasis markup is
// removed, concatenate to the source text. Whitespace and asterisks are
// ignored since splitting may move them around the marker.
func Reproduces(paragraphs []string, source string) bool {
	return normalize(strings.Join(paragraphs, " ")) == normalize(source)
}

func normalize(s string) string {
	s = models.PlainText(s)
	s = strings.ReplaceAll(s, "*", "")
	return whitespaceRun.ReplaceAllString(s, "")
}
