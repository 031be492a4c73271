// Package models defines the texts, paragraphs and API payloads shared across packages.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// LibraryStoryPrefix marks story ids that name a library text. User texts
// and library texts have separate id sequences, so a bare number always
// means a user text.
const LibraryStoryPrefix = "lib:"

// UserStoryID is the index story id of user text id.
func UserStoryID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// LibraryStoryID is the index story id of library text id.
func LibraryStoryID(id int64) string {
	return LibraryStoryPrefix + strconv.FormatInt(id, 10)
}

// ParseStoryID splits a story id into its text id and whether it names a
// library text.
func ParseStoryID(story string) (id int64, library bool, err error) {
	story = strings.TrimSpace(story)
	if rest, ok := strings.CutPrefix(story, LibraryStoryPrefix); ok {
		story, library = rest, true
	}
	id, err = strconv.ParseInt(story, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, fmt.Errorf("invalid story id %q", story)
	}
	return id, library, nil
}

// LibraryText is a shared (preloaded or uploaded) text.
type LibraryText struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	OwnerID    string    `json:"owner_id,omitempty"`
	SourcePath string    `json:"source_path,omitempty"`
	SourceHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserText is a user's own copy of a library text.
type UserText struct {
	ID            int64     `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	LibraryTextID int64     `json:"library_text_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Paragraph is one ordered section of a text. Positions start at 1.
type Paragraph struct {
	ID       int64  `json:"id"`
	TextID   int64  `json:"text_id"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// NewParagraphs numbers contents from 1 with their matching image references.
// images may be shorter than contents.
func NewParagraphs(contents, images []string) []Paragraph {
	out := make([]Paragraph, len(contents))
	for i, c := range contents {
		out[i] = Paragraph{Position: i + 1, Content: c}
		if i < len(images) {
			out[i].ImageURL = images[i]
		}
	}
	return out
}

// FullText joins the non-blank paragraph contents in order with a blank line
// between them.
func FullText(ps []Paragraph) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		if c := strings.TrimSpace(p.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// StoryText is the text indexed for a story: FullText with the inline
// emphasis markup of segmented paragraphs removed. Indexing and rebuilding a
// story both use it so the two produce identical text.
func StoryText(ps []Paragraph) string {
	return PlainText(FullText(ps))
}

// PlainText drops inline HTML tags such as <b> used for emphasis.
func PlainText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// Counts are row totals per table.
type Counts struct {
	LibraryTexts      int64 `json:"library_texts"`
	LibraryParagraphs int64 `json:"library_paragraphs"`
	UserTexts         int64 `json:"user_texts"`
	UserParagraphs    int64 `json:"user_paragraphs"`
}
