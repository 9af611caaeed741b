package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/observability"
)

// ErrNoChunks is returned when an index build receives no chunks.
var ErrNoChunks = errors.New("vector: no chunks to index")

// Index is a built retrieval index over one document's chunks. Embeddings are
// computed once at build time; queries embed only the query text.
type Index struct {
	repo     Repository
	embedder *Embedder
	size     int
}

// BuildIndex embeds chunks and stores them in the repository.
func BuildIndex(ctx context.Context, embedder *Embedder, repo Repository, chunks []chunker.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("index build: %w", err)
	}

	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:       uuid.NewString(),
			Content:  c.Text,
			Vector:   vectors[i],
			Metadata: c.Metadata,
			Sequence: c.Index,
		}
	}
	if err := repo.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("index build: %w", err)
	}

	return &Index{repo: repo, embedder: embedder, size: len(chunks)}, nil
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int { return idx.size }

// TopK embeds the query and returns the k most similar chunks, descending by
// score. k larger than the index size returns everything.
func (idx *Index) TopK(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("index: top-k must be positive, got %d", k)
	}
	if k > idx.size {
		k = idx.size
	}

	ctx, span := observability.StartRetrievalSpan(ctx, k)
	defer span.End()

	vec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("index query: %w", err)
	}
	results, err := idx.repo.Search(ctx, vec, k)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	topScore := 0.0
	if len(results) > 0 {
		topScore = float64(results[0].Score)
	}
	observability.RecordRetrievalResult(span, len(results), topScore)
	return results, nil
}

// Close releases the underlying repository.
func (idx *Index) Close() error { return idx.repo.Close() }
