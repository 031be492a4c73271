package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
)

// Entry is one chunk held by a MemoryIndex: its id, text and embedding.
type Entry struct {
	ID       string
	Position int
	Text     string
	Vector   []float32
}

// MemoryIndex is an in-memory vector index using brute-force inner product
// search. Stories are small enough that a scan beats any ANN structure.
type MemoryIndex struct {
	dimensions int
	entries    []Entry
	byID       map[string]int
	mu         sync.RWMutex
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions, byID: make(map[string]int)}, nil
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add appends entries. Vectors are copied.
func (m *MemoryIndex) Add(entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(e.Vector), m.dimensions)
		}
		if _, dup := m.byID[e.ID]; dup {
			return fmt.Errorf("duplicate entry id %q", e.ID)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		e.Vector = vec
		m.byID[e.ID] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return nil
}

// Get returns the entry with id.
func (m *MemoryIndex) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Entries returns the entries in insertion order.
func (m *MemoryIndex) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Search returns the top-k entries by inner product.
func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	results := make([]VectorResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = VectorResult{ID: e.ID, Score: InnerProduct(query, e.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of entries.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// InnerProduct returns the inner product of two vectors (cosine similarity when both are normalized).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

const snapshotMagic = "LVX1"

var errBadSnapshot = errors.New("not a vector snapshot")

// Save writes the index to w. Format: magic, dimension (4), n (4), then per
// entry: position (4), id and text as length-prefixed bytes, vector (dimension*4).
func (m *MemoryIndex) Save(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := writeUint32(bw, uint32(m.dimensions), uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	buf := make([]byte, m.dimensions*4)
	for _, e := range m.entries {
		if err := writeUint32(bw, uint32(e.Position)); err != nil {
			return fmt.Errorf("write position: %w", err)
		}
		if err := writeBytes(bw, []byte(e.ID)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeBytes(bw, []byte(e.Text)); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		for i, v := range e.Vector {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

// Load replaces the index contents with a snapshot read from r. The snapshot
// dimension must match.
func (m *MemoryIndex) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != snapshotMagic {
		return errBadSnapshot
	}
	var dim, n uint32
	if err := readUint32(br, &dim, &n); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: snapshot has %d, index expects %d", dim, m.dimensions)
	}
	entries := make([]Entry, 0, n)
	byID := make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var pos uint32
		if err := readUint32(br, &pos); err != nil {
			return fmt.Errorf("read position: %w", err)
		}
		id, err := readBytes(br)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		text, err := readBytes(br)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, m.dimensions)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		byID[string(id)] = len(entries)
		entries = append(entries, Entry{ID: string(id), Position: int(pos), Text: string(text), Vector: vec})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.byID = byID
	return nil
}

func writeUint32(w io.Writer, vs ...uint32) error {
	for _, v := range vs {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func readUint32(r io.Reader, vs ...*uint32) error {
	for _, v := range vs {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint32(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

const maxFieldLen = 64 << 20

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := readUint32(r, &n); err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, errBadSnapshot
	}
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}
