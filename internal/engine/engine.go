// Package engine answers questions about one indexed document by retrieving
// the most similar chunks and grounding an LLM completion on them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/vector"
)

// DefaultTopK is the number of chunks retrieved for answer generation.
const DefaultTopK = 4

const noContextAnswer = "I couldn't find relevant information to answer your question."

// ResultKind classifies how an answer was produced.
type ResultKind int

const (
	// Grounded means the answer came from the LLM with retrieved context.
	Grounded ResultKind = iota
	// NoContext means retrieval found nothing and a canned reply was returned.
	NoContext
	// Degraded means an underlying failure was converted into an apology.
	Degraded
)

func (k ResultKind) String() string {
	switch k {
	case Grounded:
		return "grounded"
	case NoContext:
		return "no_context"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result is the outcome of Answer. Answer text is always present; Kind tells
// the caller whether it is a real answer, a canned no-context reply, or a
// degraded error description.
type Result struct {
	Kind        ResultKind
	Answer      string
	ContextUsed int
}

// Context is one retrieved chunk returned by RelevantContext.
type Context struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Rank     int               `json:"relevance_rank"`
}

// Engine bundles one document's retrieval index with an LLM client.
type Engine struct {
	index    *vector.Index
	client   *llm.Client
	metadata map[string]string
	logger   *slog.Logger
}

// New creates an Engine over a built index.
func New(index *vector.Index, client *llm.Client, metadata map[string]string) *Engine {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Engine{
		index:    index,
		client:   client,
		metadata: metadata,
		logger:   slog.Default(),
	}
}

// Metadata returns the document metadata the engine was built with.
func (e *Engine) Metadata() map[string]string { return e.metadata }

// Close releases the underlying index and its vector store.
func (e *Engine) Close() error { return e.index.Close() }

// Answer retrieves the top chunks for the question and asks the LLM to answer
// from them. It never returns an error: retrieval or generation failures
// degrade to a descriptive reply so the caller always has text to show.
func (e *Engine) Answer(ctx context.Context, question string) Result {
	results, err := e.index.TopK(ctx, question, DefaultTopK)
	if err != nil {
		e.logger.Error("retrieval failed", "error", err)
		return degraded(err)
	}
	if len(results) == 0 {
		return Result{Kind: NoContext, Answer: noContextAnswer}
	}

	answer, err := e.client.GenerateWithContext(ctx, question, buildContext(results))
	if err != nil {
		e.logger.Error("answer generation failed", "error", err)
		return degraded(err)
	}

	return Result{
		Kind:        Grounded,
		Answer:      answer,
		ContextUsed: len(results),
	}
}

// RelevantContext returns up to maxDocs retrieved chunks as ranked records
// without invoking the LLM. Failures yield an empty slice, never an error.
func (e *Engine) RelevantContext(ctx context.Context, question string, maxDocs int) []Context {
	if maxDocs <= 0 {
		return nil
	}
	results, err := e.index.TopK(ctx, question, maxDocs)
	if err != nil {
		e.logger.Error("context retrieval failed", "error", err)
		return nil
	}

	contexts := make([]Context, len(results))
	for i, r := range results {
		contexts[i] = Context{
			Content:  r.Content,
			Metadata: r.Metadata,
			Rank:     i + 1,
		}
	}
	return contexts
}

// buildContext labels each retrieved chunk and joins them with blank lines,
// keeping descending-similarity order.
func buildContext(results []vector.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Context %d: %s", i+1, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

func degraded(err error) Result {
	return Result{
		Kind:   Degraded,
		Answer: fmt.Sprintf("I encountered an error while processing your question: %v", err),
	}
}
