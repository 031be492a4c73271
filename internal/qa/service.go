// Package qa answers questions about ingested texts and builds quizzes from them.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DekelUsach/Loomi-backend/internal/llm"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/vector"
)

// Fallback answers returned instead of errors.
const (
	FallbackAnswer  = "Lo siento, no pude generar una respuesta en este momento. Intenta de nuevo más tarde."
	NoContextAnswer = "No encontré información en el texto para responder esa pregunta."
)

// Degradation reasons carried by Answer.Reason.
const (
	ReasonEmptyQuestion  = "empty_question"
	ReasonNoContext      = "no_context"
	ReasonQueryFailed    = "query_failed"
	ReasonLLMUnavailable = "llm_unavailable"
	ReasonLLMFailed      = "llm_failed"
)

// Answer is the result of Ask. Degraded answers carry a user-safe Text and
// the Reason the grounded path was not taken.
type Answer struct {
	Text     string           `json:"answer"`
	Degraded bool             `json:"degraded"`
	Reason   string           `json:"reason,omitempty"`
	Passages []vector.Passage `json:"passages,omitempty"`
}

// ParagraphSource is the read side of the text store used to rebuild evicted stories.
type ParagraphSource interface {
	ListUserParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error)
	ListLibraryParagraphs(ctx context.Context, textID int64) ([]models.Paragraph, error)
	GetUserText(ctx context.Context, id int64) (*models.UserText, error)
	GetLibraryText(ctx context.Context, id int64) (*models.LibraryText, error)
}

// Service implements Ask and GenerateQuiz.
type Service struct {
	index      vector.StoryIndex
	source     ParagraphSource
	gen        llm.Generator
	topK       int
	evictAfter bool
	logger     *zap.Logger
	rebuilds   singleflight.Group

	mu     sync.Mutex
	active map[string]*activeStory
}

// activeStory counts the Ask calls using a story and whether one of them
// rebuilt it, so the last one out can evict it.
type activeStory struct {
	n       int
	rebuilt bool
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets how many passages ground an answer (default 5).
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithEvictAfter controls whether stories rebuilt for a question are evicted
// again once it is answered (default true).
func WithEvictAfter(v bool) Option {
	return func(s *Service) { s.evictAfter = v }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service. gen may be nil, in which case every answer is degraded.
func NewService(index vector.StoryIndex, source ParagraphSource, gen llm.Generator, opts ...Option) *Service {
	s := &Service{
		index:      index,
		source:     source,
		gen:        gen,
		topK:       5,
		evictAfter: true,
		active:     make(map[string]*activeStory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) warn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

// Ask answers question using passages of story id. It never fails: problems
// anywhere in the chain produce a degraded Answer.
func (s *Service) Ask(ctx context.Context, id, question string) Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{Text: FallbackAnswer, Degraded: true, Reason: ReasonEmptyQuestion}
	}

	s.acquire(id)
	rebuilt := false
	if !s.index.Exists(id) {
		rebuilt = s.rebuild(ctx, id)
	}
	defer s.release(context.WithoutCancel(ctx), id, rebuilt)

	passages, err := s.index.Query(ctx, id, question, s.topK)
	if err != nil {
		s.warn("story query failed", zap.String("story_id", id), zap.Error(err))
		return Answer{Text: FallbackAnswer, Degraded: true, Reason: ReasonQueryFailed}
	}
	if len(passages) == 0 {
		return Answer{Text: NoContextAnswer, Degraded: true, Reason: ReasonNoContext}
	}
	if s.gen == nil {
		return Answer{Text: FallbackAnswer, Degraded: true, Reason: ReasonLLMUnavailable, Passages: passages}
	}

	text, err := s.gen.Generate(ctx, answerPrompt(question, passages),
		llm.WithTemperature(0.3),
		llm.WithSystemInstruction(answerSystemInstruction),
	)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		s.warn("answer generation failed", zap.String("story_id", id), zap.Error(err))
		return Answer{Text: FallbackAnswer, Degraded: true, Reason: ReasonLLMFailed, Passages: passages}
	}
	return Answer{Text: text, Passages: passages}
}

func (s *Service) acquire(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.active[id]
	if a == nil {
		a = &activeStory{}
		s.active[id] = a
	}
	a.n++
}

func (s *Service) release(ctx context.Context, id string, rebuilt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.active[id]
	a.n--
	a.rebuilt = a.rebuilt || rebuilt
	if a.n > 0 {
		return
	}
	delete(s.active, id)
	// Evicting under mu keeps a new Ask from seeing the story as resident
	// while it is being dropped.
	if a.rebuilt && s.evictAfter {
		if err := s.index.Evict(ctx, id); err != nil {
			s.warn("evict after answer failed", zap.String("story_id", id), zap.Error(err))
		}
	}
}

type storyText struct {
	text  string
	title string
}

// rebuild indexes id from its persisted paragraphs and reports whether it did.
// Concurrent rebuilds of one id share a single load.
func (s *Service) rebuild(ctx context.Context, id string) bool {
	v, err, _ := s.rebuilds.Do(id, func() (any, error) {
		st, err := s.loadText(ctx, id)
		if err != nil {
			return false, err
		}
		if st.text == "" || s.index.Exists(id) {
			return false, nil
		}
		if err := s.index.Index(ctx, id, st.text, st.title); err != nil {
			return false, fmt.Errorf("index: %w", err)
		}
		return true, nil
	})
	if err != nil {
		s.warn("story rebuild failed", zap.String("story_id", id), zap.Error(err))
		return false
	}
	return v.(bool)
}

// loadText rebuilds the full text of story id from its paragraphs. Ids with
// the library prefix read only the library table. Bare ids prefer the user
// text and fall back to the library text with that number.
func (s *Service) loadText(ctx context.Context, id string) (storyText, error) {
	if s.source == nil {
		return storyText{}, nil
	}
	n, library, err := models.ParseStoryID(id)
	if err != nil {
		return storyText{}, err
	}

	var userErr error
	if !library {
		ps, err := s.source.ListUserParagraphs(ctx, n)
		if len(ps) > 0 {
			st := storyText{text: models.StoryText(ps)}
			if t, err := s.source.GetUserText(ctx, n); err == nil {
				st.title = t.Title
			}
			return st, nil
		}
		userErr = err
	}
	ps, libErr := s.source.ListLibraryParagraphs(ctx, n)
	if len(ps) > 0 {
		st := storyText{text: models.StoryText(ps)}
		if t, err := s.source.GetLibraryText(ctx, n); err == nil {
			st.title = t.Title
		}
		return st, nil
	}
	if err := errors.Join(userErr, libErr); err != nil {
		return storyText{}, err
	}
	return storyText{}, fmt.Errorf("story %s has no paragraphs", id)
}

const answerSystemInstruction = "Eres un asistente de lectura. Respondes preguntas sobre un texto usando solo los fragmentos que se te entregan."

func answerPrompt(question string, passages []vector.Passage) string {
	var b strings.Builder
	b.WriteString("<fragmentos>\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(p.Text))
	}
	b.WriteString("</fragmentos>\n\n")
	b.WriteString("Reglas:\n")
	b.WriteString("1. Responde en el mismo idioma de la pregunta.\n")
	b.WriteString("2. Usa solo la información de los fragmentos. No agregues conocimiento externo.\n")
	b.WriteString("3. Si los fragmentos no contienen la respuesta, dilo claramente.\n")
	b.WriteString("4. Sé breve y no menciones los números de los fragmentos.\n\n")
	b.WriteString("Pregunta: ")
	b.WriteString(question)
	return b.String()
}
