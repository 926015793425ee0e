// Package chunk splits normalized document text into overlapping passages for
// embedding and retrieval.
package chunk

import (
	"fmt"
	"strings"

	"github.com/claimlens/claimlens/internal/models"
)

// Chunker splits text into overlapping rune-offset windows. Boundaries are a
// pure function of text and configuration, so the same input always yields the
// same chunks. Spans carry their rune offsets so concatenating them (minus
// overlaps) reconstructs the original text exactly.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, both in
// runes. Overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into chunks owned by docID. Empty input produces zero
// chunks; the last chunk may be shorter than the window size.
func (c *Chunker) Chunk(docID, text string) []*models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []*models.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		position := len(chunks)
		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("%s_%d", docID, position),
			DocumentID: docID,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
			Position:   position,
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// Reconstruct rebuilds the original text from an ordered chunk sequence by
// dropping each chunk's overlap with its predecessor.
func Reconstruct(chunks []*models.Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, ch := range chunks {
		runes := []rune(ch.Text)
		skip := prevEnd - ch.Start
		if skip < 0 {
			skip = 0
		}
		if skip > len(runes) {
			skip = len(runes)
		}
		b.WriteString(string(runes[skip:]))
		if ch.End > prevEnd {
			prevEnd = ch.End
		}
	}
	return b.String()
}
