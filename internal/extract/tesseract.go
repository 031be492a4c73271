//go:build ocr && cgo

package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer recognizes images with the Tesseract C API through gosseract.
type TesseractRecognizer struct{}

// NewTesseractRecognizer returns a recognizer backed by libtesseract.
func NewTesseractRecognizer() (*TesseractRecognizer, error) {
	return &TesseractRecognizer{}, nil
}

// Recognize returns the text found in imagePath. A client is created per call
// because gosseract clients are not safe for concurrent use.
func (t *TesseractRecognizer) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			return "", fmt.Errorf("tesseract language %q: %w", language, err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("tesseract image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return text, nil
}
