// Package keyword provides the lexical side of story retrieval: a small
// in-memory Bleve index holding the chunks of a single story.
package keyword

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Terms of at least this many runes also match at edit distance 1.
const fuzzyMinRunes = 5

// Chunk is one retrievable piece of a story.
type Chunk struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Result is a single keyword hit.
type Result struct {
	ID    string
	Score float64
}

// StoryIndex is a memory-only Bleve index over the chunks of one story.
type StoryIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// standard: lowercase + tokenize, no stemming; stories are mostly Spanish
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("id", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", doc)
	im.DefaultType = "chunk"
	im.DefaultMapping = doc
	return im
}

// NewStoryIndex creates an empty in-memory index.
func NewStoryIndex() (*StoryIndex, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &StoryIndex{index: idx}, nil
}

// Index adds chunks in one batch.
func (s *StoryIndex) Index(chunks []Chunk) error {
	batch := s.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, c); err != nil {
			return fmt.Errorf("batch chunk %s: %w", c.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}

// Search returns up to limit chunk ids ranked by tf-idf over the chunk content.
// Any query term may match; chunks matching more terms score higher.
func (s *StoryIndex) Search(query string, limit int) ([]Result, error) {
	q := buildQuery(query)
	if q == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed chunks.
func (s *StoryIndex) DocCount() (uint64, error) {
	return s.index.DocCount()
}

// Close releases the index.
func (s *StoryIndex) Close() error {
	return s.index.Close()
}

func buildQuery(query string) blevequery.Query {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if utf8.RuneCountInString(term) >= fuzzyMinRunes {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(1)
			fq.SetField("content")
			queries = append(queries, fq)
			continue
		}
		mq := bleve.NewMatchQuery(term)
		mq.SetField("content")
		queries = append(queries, mq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Terms lower-cases query and splits it on anything that is not a letter or digit.
func Terms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
