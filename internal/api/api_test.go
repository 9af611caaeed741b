package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/observability"
	"github.com/doclens/doclens/internal/session"
	"github.com/doclens/doclens/internal/summarize"
	"github.com/doclens/doclens/internal/vector"
)

// fakeProvider serves canned completions and axis embeddings for handler
// tests.
type fakeProvider struct {
	reply string
	axes  map[string]int
	calls int
}

func newFakeProvider(reply string) *fakeProvider {
	return &fakeProvider{reply: reply, axes: make(map[string]int)}
}

func (p *fakeProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	p.calls++
	return &llm.Response{Content: p.reply}, nil
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		axis, ok := p.axes[text]
		if !ok {
			axis = len(p.axes) % 32
			p.axes[text] = axis
		}
		v := make([]float32, 32)
		v[axis] = 1
		vectors[i] = v
	}
	return vectors, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func newTestServer(t *testing.T, provider *fakeProvider) *Server {
	t.Helper()
	client := llm.NewClient(provider)
	splitter := chunker.New(0, 0)
	return NewServer(DefaultConfig(), Deps{
		Store:      session.NewStore(),
		Scraper:    extract.NewScraper(5 * time.Second),
		Splitter:   splitter,
		Client:     client,
		Summarizer: summarize.New(client, splitter, summarize.DefaultChunkCap),
		NewRepository: func() (vector.Repository, error) {
			return vector.NewMemory(), nil
		},
	})
}

func newArticleServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Chunk Retrieval</title></head><body><main>
			<p>Documents are split into overlapping chunks before indexing.</p>
			<p>Each chunk is embedded into a shared vector space for search.</p>
			<p>Questions retrieve the most similar chunks as grounding context.</p>
		</main></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, decoded
}

func analyzeArticle(t *testing.T, s *Server) {
	t.Helper()
	article := newArticleServer(t)
	rec, body := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"url": article.URL})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body %v", rec.Code, body)
	}
}

func TestAnalyzeURL(t *testing.T) {
	s := newTestServer(t, newFakeProvider("- the document covers chunked retrieval"))
	article := newArticleServer(t)

	rec, body := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"url": article.URL})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["success"] != true || body["ready_for_questions"] != true {
		t.Errorf("unexpected flags in %v", body)
	}
	if !strings.Contains(body["summary_markdown"].(string), "chunked retrieval") {
		t.Errorf("summary_markdown = %v", body["summary_markdown"])
	}
	metadata := body["metadata"].(map[string]any)
	if metadata["source_type"] != "url" {
		t.Errorf("source_type = %v, want url", metadata["source_type"])
	}
	if metadata["title"] != "Chunk Retrieval" {
		t.Errorf("title = %v", metadata["title"])
	}
	stats := body["summary_stats"].(map[string]any)
	if stats["merge_failed"] != false {
		t.Errorf("summary_stats = %v", stats)
	}
}

func TestAnalyze_NoBody(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyze_EmptyURL(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	rec, body := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"url": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, body %v", rec.Code, body)
	}
}

func TestAnalyze_FailureKeepsPreviousSession(t *testing.T) {
	s := newTestServer(t, newFakeProvider("summary text"))
	analyzeArticle(t, s)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/analyze", map[string]string{"url": "https://no-such-host.invalid.example/doc"})
	if rec.Code == http.StatusOK {
		t.Fatal("analyze of unreachable URL succeeded")
	}

	statusRec, statusBody := doJSON(t, s, http.MethodGet, "/api/analyze/status", nil)
	if statusRec.Code != http.StatusOK || statusBody["ready"] != true {
		t.Errorf("previous session lost: %v", statusBody)
	}
}

func TestAskQuestion(t *testing.T) {
	s := newTestServer(t, newFakeProvider("It covers chunked retrieval."))
	analyzeArticle(t, s)

	rec, body := doJSON(t, s, http.MethodPost, "/api/ask", map[string]string{"question": "What is the main topic?"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["answer"] != "It covers chunked retrieval." {
		t.Errorf("answer = %v", body["answer"])
	}
	if body["answer_kind"] != "grounded" {
		t.Errorf("answer_kind = %v, want grounded", body["answer_kind"])
	}
	if body["context_used"].(float64) < 1 {
		t.Errorf("context_used = %v, want >= 1", body["context_used"])
	}
	preview := body["context_preview"].([]any)
	if len(preview) != 1 {
		t.Errorf("context_preview length = %d, want 1", len(preview))
	}
}

func TestAsk_WithoutDocument(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	rec, body := doJSON(t, s, http.MethodPost, "/api/ask", map[string]string{"question": "Anything at all?"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, body %v", rec.Code, body)
	}
	if !strings.Contains(body["error"].(string), "No document") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAsk_InvalidQuestion(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	analyzeArticle(t, s)

	for _, question := range []string{"", "  ", "42"} {
		rec, _ := doJSON(t, s, http.MethodPost, "/api/ask", map[string]string{"question": question})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("question %q: status = %d, want 400", question, rec.Code)
		}
	}
}

func TestContextEndpoint(t *testing.T) {
	s := newTestServer(t, newFakeProvider("unused"))
	analyzeArticle(t, s)

	rec, body := doJSON(t, s, http.MethodPost, "/api/context", map[string]any{
		"question":     "How are documents indexed?",
		"max_contexts": 50,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	contexts := body["contexts"].([]any)
	if len(contexts) == 0 || len(contexts) > maxContexts {
		t.Fatalf("len(contexts) = %d, want 1..%d", len(contexts), maxContexts)
	}
	first := contexts[0].(map[string]any)
	if first["relevance_rank"].(float64) != 1 {
		t.Errorf("relevance_rank = %v, want 1", first["relevance_rank"])
	}
	if body["total_contexts"].(float64) != float64(len(contexts)) {
		t.Errorf("total_contexts = %v, want %d", body["total_contexts"], len(contexts))
	}
}

func TestStatus_BeforeAnalyze(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	rec, body := doJSON(t, s, http.MethodGet, "/api/analyze/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["ready"] != false {
		t.Errorf("ready = %v, want false", body["ready"])
	}
}

func TestSummary_ServedFromSession(t *testing.T) {
	provider := newFakeProvider("- stored summary")
	s := newTestServer(t, provider)
	analyzeArticle(t, s)
	callsAfterAnalyze := provider.calls

	rec, body := doJSON(t, s, http.MethodGet, "/api/analyze/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["summary_markdown"] != "- stored summary" {
		t.Errorf("summary_markdown = %v", body["summary_markdown"])
	}
	if provider.calls != callsAfterAnalyze {
		t.Errorf("summary endpoint made %d extra LLM calls, want 0", provider.calls-callsAfterAnalyze)
	}
	stats := body["statistics"].(map[string]any)
	if stats["total_words"].(float64) <= 0 {
		t.Errorf("statistics = %v", stats)
	}
}

func TestSummary_WithoutDocument(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	rec, _ := doJSON(t, s, http.MethodGet, "/api/analyze/summary", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSuggest(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	analyzeArticle(t, s)

	rec, body := doJSON(t, s, http.MethodGet, "/api/suggest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	suggestions := body["suggestions"].([]any)
	if len(suggestions) == 0 || len(suggestions) > 6 {
		t.Errorf("suggestions length = %d, want 1..6", len(suggestions))
	}
	if body["source_type"] != "url" {
		t.Errorf("source_type = %v", body["source_type"])
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	rec, body := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["service"] != "doclens" || body["document_ready"] != false {
		t.Errorf("health body = %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, newFakeProvider("ok"))
	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestAnalyze_EmitsAuditEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := observability.InitGlobalAuditLogger(&observability.AuditConfig{Enabled: true, OutputPath: logPath}); err != nil {
		t.Fatalf("init audit logger: %v", err)
	}

	s := newTestServer(t, newFakeProvider("- audited summary"))
	analyzeArticle(t, s)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	seen := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("audit line is not JSON: %v\n%s", err, line)
		}
		seen[event["event_type"].(string)] = true
	}
	for _, want := range []string{"analyze.start", "analyze.complete", "summary.generate"} {
		if !seen[want] {
			t.Errorf("audit log missing %s event; saw %v", want, seen)
		}
	}
}

func TestAsk_ContextUsedCountsPreviewRetrieval(t *testing.T) {
	provider := newFakeProvider("Chunks are embedded for search.")
	client := llm.NewClient(provider)
	splitter := chunker.New(40, 0)
	s := NewServer(DefaultConfig(), Deps{
		Store:      session.NewStore(),
		Scraper:    extract.NewScraper(5 * time.Second),
		Splitter:   splitter,
		Client:     client,
		Summarizer: summarize.New(client, splitter, summarize.DefaultChunkCap),
		NewRepository: func() (vector.Repository, error) {
			return vector.NewMemory(), nil
		},
	})
	analyzeArticle(t, s)

	rec, body := doJSON(t, s, http.MethodPost, "/api/ask", map[string]string{"question": "How are chunks indexed?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["context_used"].(float64) != 2 {
		t.Errorf("context_used = %v, want 2 (preview retrieval, not answer retrieval)", body["context_used"])
	}
	if preview := body["context_preview"].([]any); len(preview) != 1 {
		t.Errorf("context_preview length = %d, want 1", len(preview))
	}
}
