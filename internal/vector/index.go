// Package vector holds the per-story retrieval index: chunk embeddings plus
// a keyword index, fused at query time, with explicit eviction to bound memory.
package vector

import "context"

// StoryIndex indexes, queries and evicts stories by id.
type StoryIndex interface {
	// Index (re)builds the retrievable state of id from text. The same id
	// and text is a no-op; different text replaces the prior entry.
	Index(ctx context.Context, id, text, title string) error
	// Exists reports whether id is currently resident.
	Exists(id string) bool
	// Query returns up to topK passages of id relevant to question. An id
	// that is not resident yields no passages and no error.
	Query(ctx context.Context, id, question string, topK int) ([]Passage, error)
	// Evict drops id from memory. It is a no-op for unknown ids.
	Evict(ctx context.Context, id string) error
	Stats() Stats
}

// Passage is a retrieved chunk of a story.
type Passage struct {
	StoryID       string  `json:"story_id"`
	ChunkID       string  `json:"chunk_id"`
	Position      int     `json:"position"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`
}

// Stats describes the resident working set.
type Stats struct {
	Stories   int   `json:"stories"`
	Chunks    int   `json:"chunks"`
	Indexed   int64 `json:"indexed_total"`
	Reloaded  int64 `json:"reloaded_total"`
	Evictions int64 `json:"evictions_total"`
}
