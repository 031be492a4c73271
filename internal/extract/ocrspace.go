package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RemoteOCR recognizes a whole document through a hosted service.
// It returns "" on any failure.
type RemoteOCR interface {
	Recognize(ctx context.Context, content []byte, contentType, language string) string
}

// DefaultOCRSpaceURL is the OCR.space parse endpoint.
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// OCRSpace is a RemoteOCR client for the OCR.space API.
type OCRSpace struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// OCRSpaceOption configures an OCRSpace client.
type OCRSpaceOption func(*OCRSpace)

// WithOCRSpaceEndpoint overrides the API endpoint (used by tests).
func WithOCRSpaceEndpoint(u string) OCRSpaceOption {
	return func(o *OCRSpace) { o.endpoint = u }
}

// WithOCRSpaceHTTPClient sets the HTTP client.
func WithOCRSpaceHTTPClient(c *http.Client) OCRSpaceOption {
	return func(o *OCRSpace) { o.client = c }
}

// WithOCRSpaceLimiter throttles outgoing requests.
func WithOCRSpaceLimiter(l *rate.Limiter) OCRSpaceOption {
	return func(o *OCRSpace) { o.limiter = l }
}

// WithOCRSpaceLogger sets the logger.
func WithOCRSpaceLogger(l *zap.Logger) OCRSpaceOption {
	return func(o *OCRSpace) { o.logger = l }
}

// NewOCRSpace returns a client for apiKey. An empty key makes every call return "".
func NewOCRSpace(apiKey string, opts ...OCRSpaceOption) *OCRSpace {
	o := &OCRSpace{
		endpoint: DefaultOCRSpaceURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 90 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ocrSpaceResponse struct {
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ParsedResults         []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	ErrorMessage any `json:"ErrorMessage"`
}

// Recognize posts the document as a base64 data URI and returns the joined parsed text.
func (o *OCRSpace) Recognize(ctx context.Context, content []byte, contentType, language string) string {
	if o.apiKey == "" || len(content) == 0 {
		return ""
	}
	if contentType == "" {
		contentType = mimePDF
	}
	if language == "" {
		language = "spa"
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return ""
		}
	}

	form := url.Values{}
	form.Set("apikey", o.apiKey)
	form.Set("language", language)
	form.Set("isOverlayRequired", "false")
	form.Set("scale", "true")
	form.Set("OCREngine", "2")
	form.Set("base64Image", "data:"+contentType+";base64,"+base64.StdEncoding.EncodeToString(content))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := o.client.Do(req)
	if err != nil {
		o.warn("ocr.space request failed", zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	var out ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		o.warn("ocr.space response not decodable", zap.Int("status", resp.StatusCode), zap.Error(err))
		return ""
	}
	if out.IsErroredOnProcessing {
		o.warn("ocr.space reported a processing error", zap.Any("message", out.ErrorMessage))
		return ""
	}
	parts := make([]string, 0, len(out.ParsedResults))
	for _, r := range out.ParsedResults {
		parts = append(parts, r.ParsedText)
	}
	return Clean(strings.Join(parts, "\n"))
}

func (o *OCRSpace) warn(msg string, fields ...zap.Field) {
	if o.logger != nil {
		o.logger.Warn(msg, fields...)
	}
}
