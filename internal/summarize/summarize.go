// Package summarize produces a markdown summary of a document with a
// map-reduce pipeline: each chunk is summarized independently, then one merge
// call folds the partial summaries into a single deduplicated summary.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/observability"
)

// DefaultChunkCap bounds how many chunks are summarized for very long
// documents. Chunks beyond the cap are dropped and reported in the result.
const DefaultChunkCap = 12

const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.4
)

// ErrNoContent is returned when the document yields no chunks.
var ErrNoContent = errors.New("summarize: no content to summarize")

// Result is a produced summary plus accounting of what was lost along the
// way. Markdown is always set when the error is nil.
type Result struct {
	Markdown         string
	ChunksTotal      int
	ChunksSummarized int
	ChunksDropped    int
	MergeFailed      bool
}

// Summarizer runs the map-reduce summary pipeline. All LLM calls are issued
// sequentially to keep rate-limit bookkeeping simple.
type Summarizer struct {
	client   *llm.Client
	splitter *chunker.Splitter
	chunkCap int
	logger   *slog.Logger
}

// New creates a Summarizer. chunkCap <= 0 selects DefaultChunkCap.
func New(client *llm.Client, splitter *chunker.Splitter, chunkCap int) *Summarizer {
	if chunkCap <= 0 {
		chunkCap = DefaultChunkCap
	}
	return &Summarizer{
		client:   client,
		splitter: splitter,
		chunkCap: chunkCap,
		logger:   slog.Default(),
	}
}

// Summarize chunks the document, summarizes up to chunkCap chunks, and merges
// the partial summaries. A failed chunk call is skipped; a failed merge falls
// back to the concatenated partial summaries. It returns an error only when
// there is nothing to summarize or every chunk call failed.
func (s *Summarizer) Summarize(ctx context.Context, documentText string) (*Result, error) {
	chunks := s.splitter.Split(documentText)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	ctx, span := observability.StartSummarizeSpan(ctx, len(chunks))
	defer span.End()

	retained := chunks
	if len(retained) > s.chunkCap {
		retained = retained[:s.chunkCap]
		s.logger.Warn("summarizing truncated document",
			"chunks_total", len(chunks),
			"chunks_retained", s.chunkCap)
	}

	summaries := make([]string, 0, len(retained))
	for i, chunk := range retained {
		summary, err := s.client.Generate(ctx, chunkPrompt(chunk), defaultMaxTokens, defaultTemperature)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("chunk summary failed, skipping", "chunk", i, "error", err)
			continue
		}
		if summary != "" {
			summaries = append(summaries, summary)
		}
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("summarize: all %d chunk summaries failed", len(retained))
	}

	result := &Result{
		ChunksTotal:      len(chunks),
		ChunksSummarized: len(summaries),
		ChunksDropped:    len(chunks) - len(retained),
	}

	combined := strings.Join(summaries, "\n\n")
	merged, err := s.client.Generate(ctx, mergePrompt(combined), defaultMaxTokens, defaultTemperature)
	if err != nil || merged == "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("summary merge failed, returning partial summaries", "error", err)
		result.MergeFailed = true
		result.Markdown = combined
		observability.RecordSummarizeResult(span, result.ChunksSummarized, result.ChunksDropped, true)
		return result, nil
	}

	result.Markdown = merged
	observability.RecordSummarizeResult(span, result.ChunksSummarized, result.ChunksDropped, false)
	return result, nil
}

func chunkPrompt(text string) string {
	return "Summarize the following section of a document as concise bullet points " +
		"(use '-' for bullets). Use at most 120 words. Be specific to the content; " +
		"avoid generic statements.\n\n" +
		"Section:\n" + text + "\n\nSummary:"
}

func mergePrompt(summaries string) string {
	return "You are an expert document summarizer. The following are bullet-point " +
		"summaries of consecutive sections of one document. Merge them into a single " +
		"coherent summary:\n" +
		"- Remove duplicated points.\n" +
		"- Keep the information specific; do not generalize.\n" +
		"- Organize bullets under section headers where natural.\n\n" +
		"Section summaries:\n" + summaries + "\n\nMerged summary:"
}
