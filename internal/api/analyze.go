package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/doclens/doclens/internal/engine"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/observability"
	"github.com/doclens/doclens/internal/session"
	"github.com/doclens/doclens/internal/summarize"
	"github.com/doclens/doclens/internal/vector"
)

var tracer = otel.Tracer("doclens/api")

type analyzeURLRequest struct {
	URL string `json:"url"`
}

// handleAnalyze ingests a document from a URL (JSON body) or an uploaded PDF
// (multipart field "pdf"), builds a fresh retrieval session and returns a
// summary. On any failure before the session swap, the previous document
// stays queryable.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sourceType := "url"
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		sourceType = "pdf"
	}
	ctx, span := observability.StartAnalyzeSpan(r.Context(), sourceType)
	defer span.End()

	var doc *extract.Document

	switch {
	case sourceType == "pdf":
		extracted, err := s.extractUpload(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		doc = extracted

	case strings.HasPrefix(r.Header.Get("Content-Type"), "application/json"):
		var req analyzeURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rawURL := strings.TrimSpace(req.URL)
		if rawURL == "" {
			respondError(w, http.StatusBadRequest, "No URL provided")
			return
		}
		extracted, err := s.deps.Scraper.FromURL(ctx, rawURL)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to scrape URL: %v", err))
			return
		}
		doc = extracted

	default:
		respondError(w, http.StatusBadRequest, "No URL or PDF file provided")
		return
	}

	if strings.TrimSpace(doc.Content) == "" {
		respondError(w, http.StatusBadRequest, "No readable content found in the document")
		return
	}

	metadata := map[string]string{"source_type": sourceType, "title": doc.Title}
	for k, v := range doc.Metadata {
		metadata[k] = v
	}

	source := metadata["source_url"]
	if source == "" {
		source = metadata["filename"]
	}
	start := time.Now()
	observability.Audit().LogAnalyzeStart(ctx, source, sourceType)

	eng, chunkCount, err := s.buildEngine(ctx, doc.Content, metadata)
	if err != nil {
		s.logger.Error("document indexing failed", "error", err)
		observability.Metrics().RecordAnalysis(time.Since(start), 0, err)
		observability.Audit().LogAnalyzeError(ctx, source, err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process document: %v", err))
		return
	}

	s.deps.Store.Replace(&session.Session{
		Engine:     eng,
		RawText:    doc.Content,
		Metadata:   metadata,
		AnalyzedAt: time.Now(),
	})
	observability.Metrics().RecordAnalysis(time.Since(start), chunkCount, nil)
	observability.Audit().LogAnalyzeComplete(ctx, source, time.Since(start), chunkCount, len(doc.Content))
	observability.RecordAnalyzeResult(span, chunkCount, len(doc.Content))

	sumStart := time.Now()
	result, err := s.deps.Summarizer.Summarize(ctx, doc.Content)
	if err != nil {
		s.logger.Error("summarization failed", "error", err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to summarize document: %v", err))
		return
	}
	observability.Metrics().RecordSummary(result.ChunksDropped, result.MergeFailed)
	observability.Audit().LogSummary(ctx, time.Since(sumStart), result.ChunksTotal, result.ChunksSummarized, result.ChunksDropped, result.MergeFailed)
	if err := s.deps.Store.SetSummary(result); err != nil {
		s.logger.Warn("attaching summary failed", "error", err)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             fmt.Sprintf("Successfully analyzed %s", strings.ToUpper(sourceType)),
		"summary_markdown":    result.Markdown,
		"summary_stats":       summaryStats(result),
		"metadata":            documentInfo(doc.Content, metadata),
		"ready_for_questions": true,
	})
}

// extractUpload pulls the "pdf" multipart field and extracts its text.
func (s *Server) extractUpload(r *http.Request) (*extract.Document, error) {
	if err := r.ParseMultipartForm(extract.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		return nil, errors.New("No PDF file provided")
	}
	defer file.Close()

	if err := extract.ValidateUpload(header.Filename, header.Size); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(file, extract.MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	doc, err := extract.FromPDF(bytes.NewReader(data), int64(len(data)), filepath.Base(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("Failed to process PDF: %w", err)
	}
	return doc, nil
}

// buildEngine chunks the document, embeds into a fresh repository and wraps
// the built index in a retrieval engine. Returns the chunk count alongside.
func (s *Server) buildEngine(ctx context.Context, content string, metadata map[string]string) (*engine.Engine, int, error) {
	chunks := s.deps.Splitter.SplitDocument(content, metadata)
	if len(chunks) == 0 {
		return nil, 0, errors.New("document produced no chunks")
	}

	repo, err := s.deps.NewRepository()
	if err != nil {
		return nil, 0, fmt.Errorf("creating vector store: %w", err)
	}
	index, err := vector.BuildIndex(ctx, vector.NewEmbedder(s.deps.Client.Provider()), repo, chunks)
	if err != nil {
		repo.Close()
		return nil, 0, err
	}
	return engine.New(index, s.deps.Client, metadata), len(chunks), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Store.Current()
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"ready":   false,
			"message": "No document has been analyzed yet",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ready":       true,
		"message":     "Document is ready for questions",
		"analyzed_at": sess.AnalyzedAt,
		"metadata":    documentInfo(sess.RawText, sess.Metadata),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Store.Current()
	if err != nil {
		respondError(w, http.StatusNotFound, "No document has been analyzed")
		return
	}

	result := sess.Summary
	if result == nil {
		ctx, span := tracer.Start(r.Context(), "summarize")
		start := time.Now()
		regenerated, err := s.deps.Summarizer.Summarize(ctx, sess.RawText)
		if err != nil {
			observability.RecordError(span, err)
			span.End()
			respondError(w, http.StatusInternalServerError, "Failed to generate summary")
			return
		}
		span.End()
		observability.Metrics().RecordSummary(regenerated.ChunksDropped, regenerated.MergeFailed)
		observability.Audit().LogSummary(ctx, time.Since(start), regenerated.ChunksTotal, regenerated.ChunksSummarized, regenerated.ChunksDropped, regenerated.MergeFailed)
		result = regenerated
		if err := s.deps.Store.SetSummary(result); err != nil {
			s.logger.Warn("attaching summary failed", "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"summary_markdown": result.Markdown,
		"summary_stats":    summaryStats(result),
		"metadata":         sess.Metadata,
		"statistics": map[string]any{
			"total_characters": len(sess.RawText),
			"total_words":      len(strings.Fields(sess.RawText)),
			"summary_length":   len(result.Markdown),
		},
	})
}

func summaryStats(result *summarize.Result) map[string]any {
	return map[string]any{
		"chunks_total":      result.ChunksTotal,
		"chunks_summarized": result.ChunksSummarized,
		"chunks_dropped":    result.ChunksDropped,
		"merge_failed":      result.MergeFailed,
	}
}

// documentInfo merges document metadata with derived size statistics.
func documentInfo(content string, metadata map[string]string) map[string]any {
	info := map[string]any{
		"content_length": len(content),
		"word_count":     len(strings.Fields(content)),
	}
	for k, v := range metadata {
		info[k] = v
	}
	return info
}
