package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/DekelUsach/Loomi-backend/internal/embedding"
	"github.com/DekelUsach/Loomi-backend/internal/keyword"
	"go.uber.org/zap"
)

const lockStripes = 64

// HybridIndex is the default StoryIndex. Each resident story owns a
// MemoryIndex of chunk embeddings and a keyword index over the same chunks;
// queries fuse both rankings.
type HybridIndex struct {
	embedder       embedding.Embedder
	chunker        *Chunker
	spill          Spill
	keywordWeight  float64
	semanticWeight float64
	logger         *zap.Logger

	mu      sync.RWMutex
	stories map[string]*story
	locks   [lockStripes]sync.Mutex

	indexed   atomic.Int64
	reloaded  atomic.Int64
	evictions atomic.Int64
}

type story struct {
	hash     string
	spillKey string
	title    string
	vectors  *MemoryIndex
	keywords *keyword.StoryIndex
}

// Option configures a HybridIndex.
type Option func(*HybridIndex)

// WithChunking sets the chunk window and overlap in words.
func WithChunking(size, overlap int) Option {
	return func(h *HybridIndex) { h.chunker = NewChunker(size, overlap) }
}

// WithWeights sets the keyword and semantic fusion weights.
func WithWeights(keywordWeight, semanticWeight float64) Option {
	return func(h *HybridIndex) {
		h.keywordWeight = keywordWeight
		h.semanticWeight = semanticWeight
	}
}

// WithSpill keeps evicted vectors in s.
func WithSpill(s Spill) Option {
	return func(h *HybridIndex) { h.spill = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *HybridIndex) { h.logger = l }
}

// NewHybridIndex returns an empty index embedding chunks with embedder.
func NewHybridIndex(embedder embedding.Embedder, opts ...Option) *HybridIndex {
	h := &HybridIndex{
		embedder:       embedder,
		chunker:        NewChunker(80, 15),
		keywordWeight:  0.3,
		semanticWeight: 0.7,
		stories:        make(map[string]*story),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HybridIndex) lockFor(id string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(id))
	return &h.locks[f.Sum32()%lockStripes]
}

func (h *HybridIndex) get(id string) *story {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stories[id]
}

// ContentHash returns the hex sha256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (h *HybridIndex) spillKey(hash string) string {
	return fmt.Sprintf("%s-%d-%d-%d", hash, h.embedder.Dimensions(), h.chunker.chunkSize, h.chunker.chunkOverlap)
}

// Index builds id from text, reusing spilled vectors of identical text.
func (h *HybridIndex) Index(ctx context.Context, id, text, title string) error {
	if id == "" {
		return errors.New("story id is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("story %s: empty text", id)
	}
	lock := h.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	hash := ContentHash(text)
	if cur := h.get(id); cur != nil && cur.hash == hash {
		return nil
	}

	key := h.spillKey(hash)
	vectors := h.fromSpill(ctx, id, key)
	reloaded := vectors != nil
	if vectors == nil {
		var err error
		if vectors, err = h.embedChunks(ctx, text); err != nil {
			return fmt.Errorf("story %s: %w", id, err)
		}
	}

	kw, err := keyword.NewStoryIndex()
	if err != nil {
		return fmt.Errorf("story %s: %w", id, err)
	}
	entries := vectors.Entries()
	chunks := make([]keyword.Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = keyword.Chunk{ID: e.ID, Title: title, Content: e.Text}
	}
	if err := kw.Index(chunks); err != nil {
		_ = kw.Close()
		return fmt.Errorf("story %s: %w", id, err)
	}

	h.mu.Lock()
	old := h.stories[id]
	h.stories[id] = &story{hash: hash, spillKey: key, title: title, vectors: vectors, keywords: kw}
	h.mu.Unlock()
	if old != nil {
		_ = old.keywords.Close()
	}

	if reloaded {
		h.reloaded.Add(1)
	} else {
		h.indexed.Add(1)
	}
	if h.logger != nil {
		h.logger.Debug("story indexed",
			zap.String("story_id", id),
			zap.Int("chunks", len(entries)),
			zap.Bool("from_spill", reloaded))
	}
	return nil
}

func (h *HybridIndex) fromSpill(ctx context.Context, id, key string) *MemoryIndex {
	if h.spill == nil {
		return nil
	}
	idx, err := h.spill.Get(ctx, key, h.embedder.Dimensions())
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("spill read failed, re-embedding", zap.String("story_id", id), zap.Error(err))
		}
		return nil
	}
	if idx == nil || idx.Size() == 0 {
		return nil
	}
	return idx
}

func (h *HybridIndex) embedChunks(ctx context.Context, text string) (*MemoryIndex, error) {
	chunks := h.chunker.Chunk(text)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := h.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}
	idx, err := NewMemoryIndex(h.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Vector = vecs[i]
	}
	if err := idx.Add(chunks...); err != nil {
		return nil, err
	}
	return idx, nil
}

// Exists reports whether id is resident.
func (h *HybridIndex) Exists(id string) bool {
	return h.get(id) != nil
}

// Query fuses semantic and keyword rankings of id's chunks. A failed
// question embedding degrades to keyword-only ranking.
func (h *HybridIndex) Query(ctx context.Context, id, question string, topK int) ([]Passage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil
	}
	lock := h.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s := h.get(id)
	if s == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	candidates := topK * 3
	if candidates < 10 {
		candidates = 10
	}

	semantic := map[string]float64{}
	qv, err := h.embedder.Embed(ctx, question)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("question embedding failed", zap.String("story_id", id), zap.Error(err))
		}
	} else {
		hits, err := s.vectors.Search(ctx, qv, candidates)
		if err != nil {
			return nil, fmt.Errorf("semantic search %s: %w", id, err)
		}
		semantic = NormalizeSemanticScores(hits)
	}

	lexical := map[string]float64{}
	if hits, err := s.keywords.Search(question, candidates); err != nil {
		if h.logger != nil {
			h.logger.Warn("keyword search failed", zap.String("story_id", id), zap.Error(err))
		}
	} else {
		lexical = NormalizeKeywordScores(hits)
	}

	var out []Passage
	for _, r := range Fuse(lexical, semantic, h.keywordWeight, h.semanticWeight) {
		if len(out) == topK {
			break
		}
		if r.Score <= 0 {
			continue
		}
		e, ok := s.vectors.Get(r.ID)
		if !ok {
			continue
		}
		out = append(out, Passage{
			StoryID:       id,
			ChunkID:       e.ID,
			Position:      e.Position,
			Text:          e.Text,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
		})
	}
	return out, nil
}

// Evict spills id's vectors when a spill is configured and drops it from
// memory. Spill failures are logged, never returned.
func (h *HybridIndex) Evict(ctx context.Context, id string) error {
	lock := h.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	h.mu.Lock()
	s := h.stories[id]
	delete(h.stories, id)
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	if h.spill != nil {
		if err := h.spill.Put(ctx, s.spillKey, s.vectors); err != nil && h.logger != nil {
			h.logger.Warn("spill write failed", zap.String("story_id", id), zap.Error(err))
		}
	}
	h.evictions.Add(1)
	return s.keywords.Close()
}

// Stats reports the resident working set and lifetime counters.
func (h *HybridIndex) Stats() Stats {
	h.mu.RLock()
	st := Stats{Stories: len(h.stories)}
	for _, s := range h.stories {
		st.Chunks += s.vectors.Size()
	}
	h.mu.RUnlock()
	st.Indexed = h.indexed.Load()
	st.Reloaded = h.reloaded.Load()
	st.Evictions = h.evictions.Load()
	return st
}

// Close drops every resident story without spilling.
func (h *HybridIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for id, s := range h.stories {
		errs = append(errs, s.keywords.Close())
		delete(h.stories, id)
	}
	return errors.Join(errs...)
}
