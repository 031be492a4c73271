package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFReader reads the text layer and page count of a PDF.
// Implementations return "" and 0 for unreadable input instead of failing.
type PDFReader interface {
	Text(content []byte) string
	PageCount(content []byte) int
}

// LedongthucReader reads PDFs with github.com/ledongthuc/pdf.
type LedongthucReader struct{}

// Text returns the plain text of every readable page joined by newlines.
// Pages that fail to decode are skipped.
func (LedongthucReader) Text(content []byte) (text string) {
	defer func() {
		// the parser panics on some malformed xref tables
		if recover() != nil {
			text = ""
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ""
	}
	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(pageText)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// PageCount returns the number of pages, or 0 when the file cannot be opened.
func (LedongthucReader) PageCount(content []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}
