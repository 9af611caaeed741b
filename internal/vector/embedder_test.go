package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/doclens/doclens/internal/llm"
)

// stubEmbedProvider returns canned vectors and records received texts.
type stubEmbedProvider struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (p *stubEmbedProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (p *stubEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.texts = append(p.texts, texts...)
	if p.err != nil {
		return nil, p.err
	}
	return p.vectors, nil
}

func (p *stubEmbedProvider) Name() string { return "stub" }

func TestEmbedTexts_NormalizesVectors(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{3, 4}, {0, 5}}}
	e := NewEmbedder(provider)

	got, err := e.EmbedTexts(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	for i, v := range got {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("vector %d squared norm = %v, want 1", i, sum)
		}
	}
	if got[0][0] != 0.6 || got[0][1] != 0.8 {
		t.Errorf("vector 0 = %v, want [0.6 0.8]", got[0])
	}
}

func TestEmbedTexts_CountMismatch(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{1, 0}}}
	e := NewEmbedder(provider)

	if _, err := e.EmbedTexts(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("EmbedTexts() error = nil, want count mismatch")
	}
}

func TestEmbedTexts_ZeroVectorLeftAlone(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{0, 0}}}
	e := NewEmbedder(provider)

	got, err := e.EmbedTexts(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if got[0][0] != 0 || got[0][1] != 0 {
		t.Errorf("zero vector = %v, want unchanged", got[0])
	}
}

func TestEmbedQuery(t *testing.T) {
	provider := &stubEmbedProvider{vectors: [][]float32{{0, 2}}}
	e := NewEmbedder(provider)

	got, err := e.EmbedQuery(context.Background(), "question")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if got[1] != 1 {
		t.Errorf("EmbedQuery() = %v, want [0 1]", got)
	}
	if len(provider.texts) != 1 || provider.texts[0] != "question" {
		t.Errorf("provider received %v, want the query text", provider.texts)
	}
}

func TestEmbedTexts_PropagatesProviderError(t *testing.T) {
	provider := &stubEmbedProvider{err: errors.New("quota exceeded")}
	e := NewEmbedder(provider)

	if _, err := e.EmbedTexts(context.Background(), []string{"a"}); err == nil {
		t.Error("EmbedTexts() error = nil, want provider error")
	}
}
