package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is a brute-force in-memory Repository. Vectors are expected to be
// L2-normalized so cosine similarity reduces to a dot product. Ties are
// broken by sequence, earlier chunks first.
type Memory struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Upsert(_ context.Context, docs []Document) error {
	for i, d := range docs {
		if len(d.Vector) == 0 {
			return fmt.Errorf("memory: document %d has no vector", i)
		}
		if len(d.Vector) != len(docs[0].Vector) {
			return fmt.Errorf("memory: document %d dimension %d != %d", i, len(d.Vector), len(docs[0].Vector))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *Memory) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if topK <= 0 {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(m.docs))
	for _, d := range m.docs {
		results = append(results, SearchResult{
			ID:       d.ID,
			Score:    dot(d.Vector, vector),
			Content:  d.Content,
			Metadata: d.Metadata,
			Sequence: d.Sequence,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Sequence < results[j].Sequence
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
