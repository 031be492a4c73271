// Package ingest turns uploaded documents into stored, segmented and indexed texts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/extract"
	"github.com/DekelUsach/Loomi-backend/internal/fileid"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
	"github.com/DekelUsach/Loomi-backend/internal/vector"
)

// Input errors, rejected without retry.
var (
	ErrMissingFile       = errors.New("missing file")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInsufficientText  = errors.New("insufficient extracted text")
)

// Defaults for extraction thresholds.
const (
	DefaultPDFMinLength = 200
	DefaultRejectBelow  = 30
	DefaultLanguage     = "spa"
)

// TextExtractor returns the cleaned text of a document, or "" when it has none.
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, kind extract.Kind, language string, minLength int) string
}

// Segmenter splits text into ordered paragraphs.
type Segmenter interface {
	Segment(ctx context.Context, text string) []string
}

// Illustrator returns one image reference per paragraph ("" when none).
type Illustrator interface {
	Illustrate(ctx context.Context, paragraphs []string, onDone func(done, total int)) []string
}

// Upload is one document to ingest.
type Upload struct {
	Content       []byte
	FileName      string
	Title         string
	OwnerID       string
	ProgressToken string
	SourcePath    string
}

// Result describes a stored text. DocumentID is the id questions are asked
// against: the user text when one was created, else the library text.
type Result struct {
	DocumentID     int64  `json:"document_id"`
	LibraryTextID  int64  `json:"library_text_id"`
	UserTextID     int64  `json:"user_text_id,omitempty"`
	StoryID        string `json:"story_id"`
	Title          string `json:"title"`
	ParagraphCount int    `json:"paragraph_count"`
	Indexed        bool   `json:"indexed"`
	Skipped        bool   `json:"skipped,omitempty"`
}

// Service runs the upload pipeline.
type Service struct {
	extractor    TextExtractor
	segmenter    Segmenter
	illustrator  Illustrator
	store        storage.Store
	index        vector.StoryIndex
	tracker      *progress.Tracker
	language     string
	pdfMinLength int
	rejectBelow  int
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIllustrator enables per-paragraph illustrations.
func WithIllustrator(il Illustrator) Option {
	return func(s *Service) { s.illustrator = il }
}

// WithTracker reports progress for uploads that carry a token.
func WithTracker(t *progress.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithLanguage sets the OCR language hint.
func WithLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithThresholds sets the PDF text layer minimum and the rejection length.
func WithThresholds(pdfMinLength, rejectBelow int) Option {
	return func(s *Service) {
		if pdfMinLength > 0 {
			s.pdfMinLength = pdfMinLength
		}
		if rejectBelow > 0 {
			s.rejectBelow = rejectBelow
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service.
func NewService(extractor TextExtractor, segmenter Segmenter, store storage.Store, index vector.StoryIndex, opts ...Option) *Service {
	s := &Service{
		extractor:    extractor,
		segmenter:    segmenter,
		store:        store,
		index:        index,
		language:     DefaultLanguage,
		pdfMinLength: DefaultPDFMinLength,
		rejectBelow:  DefaultRejectBelow,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// job reports progress for one upload.
type job struct {
	tracker *progress.Tracker
	token   string
}

func (j job) step(percent int, message string) {
	if j.tracker == nil || j.token == "" {
		return
	}
	j.tracker.Log(j.token, message)
	j.tracker.SetPercent(j.token, percent)
}

func (j job) fail(err error) {
	if j.tracker != nil && j.token != "" {
		j.tracker.SetError(j.token, err)
	}
}

// Upload extracts, segments, illustrates, stores and indexes one document.
// Input problems return ErrMissingFile, ErrUnsupportedFormat or
// ErrInsufficientText; failing to store the library text is fatal; every
// other failure only lowers the quality of the result.
func (s *Service) Upload(ctx context.Context, up Upload) (*Result, error) {
	j := job{tracker: s.tracker, token: up.ProgressToken}
	if j.tracker != nil && j.token != "" {
		j.tracker.Init(j.token)
	}
	res, err := s.upload(ctx, up, j)
	if err != nil {
		j.fail(err)
		return nil, err
	}
	j.step(100, "Listo")
	if j.tracker != nil && j.token != "" {
		j.tracker.SetDone(j.token, progress.DoneInfo{ID: res.DocumentID, Title: res.Title, Library: res.UserTextID == 0})
	}
	return res, nil
}

func (s *Service) upload(ctx context.Context, up Upload, j job) (*Result, error) {
	if len(up.Content) == 0 {
		return nil, ErrMissingFile
	}
	kind := extract.DetectKind(up.FileName, up.Content)
	if kind == extract.KindUnknown {
		return nil, ErrUnsupportedFormat
	}
	log := s.logger.With(zap.String("file", up.FileName), zap.Int("size", len(up.Content)))
	log.Info("upload started", zap.String("kind", string(kind)))
	j.step(5, "Archivo recibido")

	if kind == extract.KindPDF {
		j.step(15, "Extrayendo texto de PDF...")
	} else {
		j.step(15, "Extrayendo texto de DOCX...")
	}
	minLength := 0
	if kind == extract.KindPDF {
		minLength = s.pdfMinLength
	}
	text := strings.TrimSpace(s.extractor.Extract(ctx, up.Content, kind, s.language, minLength))
	log.Info("text extracted", zap.Int("length", utf8.RuneCountInString(text)))
	if utf8.RuneCountInString(text) < s.rejectBelow {
		return nil, ErrInsufficientText
	}

	j.step(40, "Dividiendo el texto en párrafos...")
	contents := s.segmenter.Segment(ctx, text)
	if len(contents) == 0 {
		contents = []string{text}
	}
	log.Info("text segmented", zap.Int("paragraphs", len(contents)))
	title := DeriveTitle(up.Title, text)

	var images []string
	if s.illustrator != nil {
		j.step(55, "Generando ilustraciones...")
		images = s.illustrator.Illustrate(ctx, contents, func(done, total int) {
			j.step(55+30*done/total, fmt.Sprintf("Ilustración %d de %d", done, total))
		})
	}

	j.step(88, "Guardando texto...")
	paragraphs := models.NewParagraphs(contents, images)
	lib := &models.LibraryText{
		Title:      title,
		OwnerID:    up.OwnerID,
		SourcePath: up.SourcePath,
	}
	if up.OwnerID == "" {
		// Only shared texts take part in library dedup.
		lib.SourceHash = fileid.ContentID(up.Content)
	}
	if err := s.store.CreateLibraryText(ctx, lib); err != nil {
		log.Error("storing library text failed", zap.Error(err))
		return nil, fmt.Errorf("store library text: %w", err)
	}
	if err := s.store.InsertLibraryParagraphs(ctx, lib.ID, paragraphs); err != nil {
		log.Error("storing library paragraphs failed", zap.Int64("text_id", lib.ID), zap.Error(err))
		return nil, fmt.Errorf("store library paragraphs: %w", err)
	}
	res := &Result{
		DocumentID:     lib.ID,
		LibraryTextID:  lib.ID,
		StoryID:        models.LibraryStoryID(lib.ID),
		Title:          title,
		ParagraphCount: len(paragraphs),
	}
	if up.OwnerID != "" {
		if id, ok := s.storeUserCopy(ctx, up.OwnerID, lib, paragraphs); ok {
			res.UserTextID = id
			res.DocumentID = id
			res.StoryID = models.UserStoryID(id)
		}
	}

	j.step(95, "Indexando...")
	storyID := res.StoryID
	if err := s.index.Index(ctx, storyID, models.StoryText(paragraphs), title); err != nil {
		log.Warn("indexing failed, continuing without index", zap.String("story_id", storyID), zap.Error(err))
	} else {
		res.Indexed = true
		if err := s.index.Evict(ctx, storyID); err != nil {
			log.Warn("evict after indexing failed", zap.String("story_id", storyID), zap.Error(err))
		}
	}
	log.Info("upload finished",
		zap.Int64("document_id", res.DocumentID),
		zap.Int("paragraphs", res.ParagraphCount),
		zap.Bool("indexed", res.Indexed))
	return res, nil
}

// storeUserCopy creates the owner's copy of lib. Failures are logged and
// reported through ok; a copy without paragraphs is not used.
func (s *Service) storeUserCopy(ctx context.Context, owner string, lib *models.LibraryText, paragraphs []models.Paragraph) (int64, bool) {
	ut := &models.UserText{OwnerID: owner, Title: lib.Title, LibraryTextID: lib.ID}
	if err := s.store.CreateUserText(ctx, ut); err != nil {
		s.logger.Warn("storing user text failed", zap.String("owner", owner), zap.Error(err))
		return 0, false
	}
	copied := make([]models.Paragraph, len(paragraphs))
	for i, p := range paragraphs {
		copied[i] = models.Paragraph{Position: p.Position, Content: p.Content, ImageURL: p.ImageURL}
	}
	if err := s.store.InsertUserParagraphs(ctx, ut.ID, copied); err != nil {
		s.logger.Warn("storing user paragraphs failed", zap.Int64("user_text_id", ut.ID), zap.Error(err))
		if err := s.store.DeleteUserText(context.WithoutCancel(ctx), ut.ID); err != nil {
			s.logger.Error("removing empty user text failed", zap.Int64("user_text_id", ut.ID), zap.Error(err))
		}
		return 0, false
	}
	return ut.ID, true
}
