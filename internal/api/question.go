package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/doclens/doclens/internal/engine"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/observability"
)

const (
	defaultContexts = 3
	maxContexts     = 5
)

type askRequest struct {
	Question string `json:"question"`
}

type contextRequest struct {
	Question    string `json:"question"`
	MaxContexts int    `json:"max_contexts"`
}

// handleAsk answers a question about the current document. The engine never
// fails outright, so this endpoint returns 200 with the answer text even when
// generation degraded; the answer_kind field tells the two apart.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ask")
	defer span.End()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if err := extract.ValidateQuestion(question); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.deps.Store.Current()
	if err != nil {
		respondError(w, http.StatusBadRequest, "No document has been analyzed yet. Please analyze a URL or PDF first.")
		return
	}

	start := time.Now()
	result := sess.Engine.Answer(ctx, question)
	span.SetAttributes(attribute.String("doclens.answer_kind", result.Kind.String()))
	observability.Metrics().RecordQuestion(time.Since(start), result.Kind.String())
	observability.Audit().LogQuestion(ctx, question, result.Kind.String(), time.Since(start), result.ContextUsed)

	// context_used counts the preview retrieval, not the deeper retrieval the
	// answer was grounded on.
	contexts := sess.Engine.RelevantContext(ctx, question, 2)
	preview := []engine.Context{}
	if len(contexts) > 0 {
		preview = contexts[:1]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"question":        question,
		"answer":          result.Answer,
		"answer_kind":     result.Kind.String(),
		"context_used":    len(contexts),
		"context_preview": preview,
		"source_metadata": sess.Metadata,
	})
}

// handleContext returns ranked context chunks without generating an answer.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if err := extract.ValidateQuestion(question); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.deps.Store.Current()
	if err != nil {
		respondError(w, http.StatusBadRequest, "No document has been analyzed yet")
		return
	}

	max := req.MaxContexts
	if max <= 0 {
		max = defaultContexts
	}
	if max > maxContexts {
		max = maxContexts
	}

	contexts := sess.Engine.RelevantContext(r.Context(), question, max)
	if contexts == nil {
		contexts = []engine.Context{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"question":       question,
		"contexts":       contexts,
		"total_contexts": len(contexts),
	})
}

// handleSuggest returns canned question suggestions keyed by source type.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Store.Current()
	if err != nil {
		respondError(w, http.StatusBadRequest, "No document has been analyzed")
		return
	}

	suggestions := []string{
		"What is the main topic of this document?",
		"Can you summarize the key points?",
		"What are the most important findings mentioned?",
	}
	sourceType := sess.Metadata["source_type"]
	switch sourceType {
	case "pdf":
		suggestions = append(suggestions,
			"What is the purpose of this document?",
			"Are there any conclusions or recommendations?",
			"What methodology was used?",
		)
	case "url":
		if title := sess.Metadata["title"]; title != "" && title != "No title" {
			suggestions = append(suggestions, fmt.Sprintf("What does this article say about %s?", title))
		}
		suggestions = append(suggestions,
			"What is the author's main argument?",
			"Are there any statistics or data mentioned?",
			"What examples are provided?",
		)
	}
	if len(suggestions) > 6 {
		suggestions = suggestions[:6]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
		"source_type": sourceType,
		"document_info": map[string]any{
			"word_count": len(strings.Fields(sess.RawText)),
			"char_count": len(sess.RawText),
		},
	})
}
