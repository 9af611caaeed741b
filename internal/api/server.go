// Package api exposes the document analysis service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/doclens/doclens/internal/chunker"
	"github.com/doclens/doclens/internal/extract"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/internal/observability"
	"github.com/doclens/doclens/internal/session"
	"github.com/doclens/doclens/internal/summarize"
	"github.com/doclens/doclens/internal/vector"
)

// Config holds HTTP server settings.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults. The write timeout is generous
// because analyze runs chunking, embedding and summarization inline.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
}

// Deps are the collaborators the handlers orchestrate. NewRepository is
// called once per analysis so every document gets a fresh vector store.
type Deps struct {
	Store         *session.Store
	Scraper       *extract.Scraper
	Splitter      *chunker.Splitter
	Client        *llm.Client
	Summarizer    *summarize.Summarizer
	NewRepository func() (vector.Repository, error)
}

// Server is the doclens HTTP server.
type Server struct {
	config *Config
	deps   Deps
	logger *slog.Logger
	server *http.Server
}

// NewServer creates the server and wires all routes.
func NewServer(config *Config, deps Deps) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: slog.Default(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Metrics().Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	apiRouter.HandleFunc("/analyze/status", s.handleStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/analyze/summary", s.handleSummary).Methods(http.MethodGet)
	apiRouter.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	apiRouter.HandleFunc("/context", s.handleContext).Methods(http.MethodPost)
	apiRouter.HandleFunc("/suggest", s.handleSuggest).Methods(http.MethodGet)

	handler := corsMiddleware(loggingMiddleware(r))
	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the wired handler chain, for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start begins serving and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.config.ListenAddr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "doclens",
		"document_ready": s.deps.Store.Ready(),
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
