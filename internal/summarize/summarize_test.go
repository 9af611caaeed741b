package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/llm"
)

// countingProvider answers every completion with a canned reply and can fail
// selected calls (0-based call index).
type countingProvider struct {
	calls   int
	failOn  map[int]bool
	failAll bool
	prompts []string
}

func (p *countingProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	idx := p.calls
	p.calls++
	for _, m := range prompt.Messages {
		if m.Role == llm.RoleUser {
			p.prompts = append(p.prompts, m.Content)
		}
	}
	if p.failAll || p.failOn[idx] {
		return nil, errors.New("call failed")
	}
	return &llm.Response{Content: fmt.Sprintf("- point %d", idx)}, nil
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (p *countingProvider) Name() string { return "counting" }

// paragraphs builds a document whose chunks line up one per paragraph for a
// small splitter configuration.
func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("paragraph number %02d has unique facts", i)
	}
	return strings.Join(parts, "\n\n")
}

func newTestSummarizer(provider *countingProvider, chunkCap int) *Summarizer {
	return New(llm.NewClient(provider), chunker.New(40, 0), chunkCap)
}

func TestSummarize_CapsLLMCalls(t *testing.T) {
	provider := &countingProvider{}
	s := newTestSummarizer(provider, DefaultChunkCap)

	result, err := s.Summarize(context.Background(), paragraphs(20))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if provider.calls != 13 {
		t.Errorf("LLM calls = %d, want 12 chunk calls + 1 merge", provider.calls)
	}
	if result.ChunksTotal != 20 {
		t.Errorf("ChunksTotal = %d, want 20", result.ChunksTotal)
	}
	if result.ChunksSummarized != 12 {
		t.Errorf("ChunksSummarized = %d, want 12", result.ChunksSummarized)
	}
	if result.ChunksDropped != 8 {
		t.Errorf("ChunksDropped = %d, want 8", result.ChunksDropped)
	}
	if result.MergeFailed {
		t.Error("MergeFailed = true, want false")
	}
}

func TestSummarize_ShortDocumentNoDrop(t *testing.T) {
	provider := &countingProvider{}
	s := newTestSummarizer(provider, DefaultChunkCap)

	result, err := s.Summarize(context.Background(), paragraphs(3))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if provider.calls != 4 {
		t.Errorf("LLM calls = %d, want 3 chunk calls + 1 merge", provider.calls)
	}
	if result.ChunksDropped != 0 {
		t.Errorf("ChunksDropped = %d, want 0", result.ChunksDropped)
	}
}

func TestSummarize_SkipsFailedChunk(t *testing.T) {
	provider := &countingProvider{failOn: map[int]bool{1: true}}
	s := newTestSummarizer(provider, DefaultChunkCap)

	result, err := s.Summarize(context.Background(), paragraphs(3))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if result.ChunksSummarized != 2 {
		t.Errorf("ChunksSummarized = %d, want 2", result.ChunksSummarized)
	}
	if result.Markdown == "" {
		t.Error("Markdown is empty")
	}
}

func TestSummarize_MergeFailureFallsBack(t *testing.T) {
	provider := &countingProvider{failOn: map[int]bool{3: true}} // merge is call 3
	s := newTestSummarizer(provider, DefaultChunkCap)

	result, err := s.Summarize(context.Background(), paragraphs(3))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !result.MergeFailed {
		t.Error("MergeFailed = false, want true")
	}
	for i := 0; i < 3; i++ {
		if !strings.Contains(result.Markdown, fmt.Sprintf("- point %d", i)) {
			t.Errorf("fallback markdown missing chunk summary %d:\n%s", i, result.Markdown)
		}
	}
}

func TestSummarize_AllChunksFail(t *testing.T) {
	provider := &countingProvider{failAll: true}
	s := newTestSummarizer(provider, DefaultChunkCap)

	if _, err := s.Summarize(context.Background(), paragraphs(3)); err == nil {
		t.Error("Summarize() error = nil, want failure when every chunk call fails")
	}
}

func TestSummarize_EmptyDocument(t *testing.T) {
	provider := &countingProvider{}
	s := newTestSummarizer(provider, DefaultChunkCap)

	if _, err := s.Summarize(context.Background(), "   \n\n  "); !errors.Is(err, ErrNoContent) {
		t.Errorf("Summarize() error = %v, want ErrNoContent", err)
	}
	if provider.calls != 0 {
		t.Errorf("LLM calls = %d, want 0 for empty input", provider.calls)
	}
}

func TestSummarize_PromptShapes(t *testing.T) {
	provider := &countingProvider{}
	s := newTestSummarizer(provider, DefaultChunkCap)

	if _, err := s.Summarize(context.Background(), paragraphs(2)); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(provider.prompts) != 3 {
		t.Fatalf("prompts = %d, want 3", len(provider.prompts))
	}
	for i := 0; i < 2; i++ {
		if !strings.Contains(provider.prompts[i], "120 words") {
			t.Errorf("chunk prompt %d missing word limit", i)
		}
	}
	merge := provider.prompts[2]
	if !strings.Contains(merge, "Merge them into a single coherent summary") {
		t.Error("merge prompt missing merge instruction")
	}
	if !strings.Contains(merge, "- point 0") || !strings.Contains(merge, "- point 1") {
		t.Error("merge prompt missing chunk summaries")
	}
}
