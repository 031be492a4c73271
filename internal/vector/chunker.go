package vector

import (
	"fmt"
	"strings"
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap in words.
// Non-positive sizes fall back to 80 words; overlap is kept below the size.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 80
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into entries without vectors. Ids are positional so a
// story re-chunked from the same text gets the same ids.
func (c *Chunker) Chunk(text string) []Entry {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var chunks []Entry
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		pos := len(chunks)
		chunks = append(chunks, Entry{
			ID:       fmt.Sprintf("chunk-%d", pos),
			Position: pos,
			Text:     strings.Join(words[i:end], " "),
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
