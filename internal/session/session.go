// Package session holds the currently analyzed document. The service is
// single-document: one session is live at a time and analyze replaces it
// wholesale. Concurrent multi-document use is unsupported.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/doclens/doclens/internal/engine"
	"github.com/doclens/doclens/internal/summarize"
)

// ErrNoDocument is returned when no document has been analyzed yet.
var ErrNoDocument = errors.New("no document has been analyzed yet")

// Session is one analyzed document: its retrieval engine, raw text, metadata
// and, when already computed, its summary.
type Session struct {
	Engine     *engine.Engine
	Summary    *summarize.Result
	RawText    string
	Metadata   map[string]string
	AnalyzedAt time.Time
}

// Store is the process-wide session holder. Replace swaps the whole value
// under a write lock, so readers never observe a half-updated session. A
// failed analysis never calls Replace, which keeps the previous document
// queryable.
type Store struct {
	mu      sync.RWMutex
	current *Session
}

// NewStore creates an empty store.
func NewStore() *Store { return &Store{} }

// Replace installs a new session, discarding the previous one.
func (s *Store) Replace(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
}

// Current returns the live session, or ErrNoDocument when none exists.
func (s *Store) Current() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoDocument
	}
	return s.current, nil
}

// Ready reports whether a document is available for questions.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// SetSummary attaches a summary computed after analysis to the live session.
// The session value is copied so readers holding the old pointer are not
// mutated underneath.
func (s *Store) SetSummary(result *summarize.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoDocument
	}
	updated := *s.current
	updated.Summary = result
	s.current = &updated
	return nil
}
