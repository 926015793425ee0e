// Package vector provides vector index and similarity search over chunk
// embeddings.
package vector

import "context"

// Index defines vector storage and similarity search. Chunk IDs carry their
// document ID as a "<docID>_<position>" prefix, which RemoveByDocument relies on.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	RemoveByDocument(ctx context.Context, documentID string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // Inner product (cosine similarity for normalized vectors).
}
