// Package extract turns uploaded PDF and DOCX files into cleaned plain text,
// degrading from the native text layer to local OCR and then remote OCR.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Kind is a supported input format.
type Kind string

const (
	KindUnknown Kind = ""
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DetectKind classifies a file by its extension. When the name has no extension
// the content is sniffed; a known but different extension is never overridden.
func DetectKind(fileName string, content []byte) Kind {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case "":
		if len(content) == 0 {
			return KindUnknown
		}
		m := mimetype.Detect(content)
		switch {
		case m.Is(mimePDF):
			return KindPDF
		case m.Is(mimeDOCX):
			return KindDOCX
		}
	}
	return KindUnknown
}

// Extractor extracts text from documents. The zero configuration only reads the
// PDF text layer and DOCX bodies; OCR stages are enabled through options.
type Extractor struct {
	pdf         PDFReader
	rasterizer  Rasterizer
	recognizer  Recognizer
	remote      RemoteOCR
	maxPages    int
	stepTimeout time.Duration
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPDFReader replaces the PDF text layer reader.
func WithPDFReader(r PDFReader) Option {
	return func(e *Extractor) { e.pdf = r }
}

// WithLocalOCR enables page rasterization plus local recognition.
func WithLocalOCR(r Rasterizer, rec Recognizer) Option {
	return func(e *Extractor) {
		e.rasterizer = r
		e.recognizer = rec
	}
}

// WithRemoteOCR enables the remote OCR fallback.
func WithRemoteOCR(r RemoteOCR) Option {
	return func(e *Extractor) { e.remote = r }
}

// WithMaxOCRPages caps the pages sent to local OCR. Zero means no cap.
func WithMaxOCRPages(n int) Option {
	return func(e *Extractor) { e.maxPages = n }
}

// WithStepTimeout bounds each external OCR step.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.stepTimeout = d }
}

// WithLogger sets the logger for degradation messages.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns an Extractor configured by opts.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		pdf:         LedongthucReader{},
		stepTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the cleaned text of content. It never fails: unsupported or
// corrupt input yields "" or a string shorter than minLength, and the caller
// decides whether that is acceptable.
func (e *Extractor) Extract(ctx context.Context, content []byte, kind Kind, language string, minLength int) string {
	switch kind {
	case KindPDF:
		return e.extractPDF(ctx, content, language, minLength)
	case KindDOCX:
		return Clean(e.extractDOCX(content))
	default:
		return ""
	}
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte, language string, minLength int) string {
	direct := Clean(e.pdf.Text(content))
	if direct != "" && textLen(direct) >= minLength {
		return direct
	}
	e.debug("pdf text layer insufficient", zap.Int("length", textLen(direct)), zap.Int("min_length", minLength))

	local := e.localOCR(ctx, content, language)
	if local != "" && textLen(local) >= minLength {
		return local
	}

	var remote string
	if e.remote != nil {
		stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		remote = Clean(e.remote.Recognize(stepCtx, content, mimePDF, language))
		cancel()
		e.debug("remote ocr finished", zap.Int("length", textLen(remote)))
	}

	switch {
	case remote != "":
		return remote
	case local != "":
		return local
	default:
		return direct
	}
}

func (e *Extractor) debug(msg string, fields ...zap.Field) {
	if e.logger != nil {
		e.logger.Debug(msg, fields...)
	}
}

func (e *Extractor) warn(msg string, fields ...zap.Field) {
	if e.logger != nil {
		e.logger.Warn(msg, fields...)
	}
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}
