//go:build !ocr || !cgo

package extract

import (
	"context"
	"errors"
)

var errNoTesseract = errors.New("local OCR requires CGO and libtesseract; build with -tags=ocr")

// TesseractRecognizer stub type when built without the ocr tag (see tesseract.go).
type TesseractRecognizer struct{}

// NewTesseractRecognizer returns an error when built without the ocr tag and CGO.
func NewTesseractRecognizer() (*TesseractRecognizer, error) {
	return nil, errNoTesseract
}

// Recognize always fails without libtesseract.
func (t *TesseractRecognizer) Recognize(_ context.Context, _, _ string) (string, error) {
	return "", errNoTesseract
}
