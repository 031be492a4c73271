package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"code.sajari.com/docconv/v2"
	"go.uber.org/zap"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// paragraph elements, with or without attributes
	wpTag = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t>
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

// extractDOCX returns the raw body text of a .docx, or "" on any failure.
// docconv is tried first; packages it rejects are read directly from the zip.
func (e *Extractor) extractDOCX(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	text, err := convertDocx(content)
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}
	if err != nil {
		e.debug("docconv failed, reading package directly", zap.Error(err))
	}
	text, err = readDocxBody(content)
	if err != nil {
		e.warn("docx extraction failed", zap.Error(err))
		return ""
	}
	return text
}

// convertDocx runs docconv, turning its panics on packages without
// [Content_Types].xml into errors.
func convertDocx(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("docconv: %v", r)
		}
	}()
	text, _, err = docconv.ConvertDocx(bytes.NewReader(content))
	return text, err
}

// readDocxBody reads the main document part and returns one line per paragraph.
func readDocxBody(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		docXML, err = readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	paragraphs := wpTag.FindAll(docXML, -1)
	if len(paragraphs) == 0 {
		paragraphs = [][]byte{docXML}
	}
	var b strings.Builder
	for _, p := range paragraphs {
		runs := wtTag.FindAllSubmatch(p, -1)
		if len(runs) == 0 {
			continue
		}
		for _, r := range runs {
			b.WriteString(xmlEntities.Replace(string(r[1])))
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return ""
		}
		content := string(data)
		if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		return ""
	}
	return ""
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
