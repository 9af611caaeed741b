// Package vector provides embedding, in-memory and Qdrant-backed vector
// storage, and the per-document retrieval index.
package vector

import "context"

// Document is one indexed chunk of text with its embedding.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
	// Sequence is the chunk's position in the source document; used to break
	// similarity ties in favor of earlier chunks.
	Sequence int
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
	Sequence int
}

// Repository provides vector storage and similarity search for one document.
type Repository interface {
	// Upsert inserts or updates documents.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the top-k most similar documents, descending score.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}
