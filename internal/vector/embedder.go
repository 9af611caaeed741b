package vector

import (
	"context"
	"fmt"
	"math"

	"github.com/doclens/doclens/internal/llm"
)

// Embedder maps text to L2-normalized embedding vectors via an LLM provider.
// Normalization makes cosine similarity a plain dot product downstream.
type Embedder struct {
	provider llm.Provider
}

// NewEmbedder creates an Embedder backed by the given provider.
func NewEmbedder(provider llm.Provider) *Embedder {
	return &Embedder{provider: provider}
}

// EmbedTexts embeds a batch of texts, one vector per text, each normalized.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i := range vectors {
		normalize(vectors[i])
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// normalize scales v to unit length in place. Zero vectors are left alone.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
