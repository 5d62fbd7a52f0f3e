// Package store provides storage backends for MedPipe.
//
// It persists conversation session snapshots and the ingested knowledge
// snippets. An in-memory store backs tests and ephemeral runs; SQLite and
// PostgreSQL back real deployments.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/medpipe/medpipe/internal/models"
)

// DetectDSNType reports "postgres" for connection strings and "sqlite" for
// plain file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// SaveSession inserts or updates a session snapshot.
	SaveSession(s models.Session) error
	// GetSession returns the session with the given id, or nil if absent.
	GetSession(id string) (*models.Session, error)
	// DeleteSession removes a session. Deleting an absent session is not an error.
	DeleteSession(id string) error
	// ListSessions returns all persisted sessions.
	ListSessions() ([]models.Session, error)
	// AddSnippets appends knowledge snippets to the index.
	AddSnippets(snippets []models.Snippet) error
	// ListSnippets returns all knowledge snippets.
	ListSnippets() ([]models.Snippet, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds store configuration options.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the database DSN (a file path for SQLite, a connection
// string for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore is a mutex-guarded in-memory store used in tests and
// ephemeral REPL runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	snippets []models.Snippet
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

func (s *InMemoryStore) SaveSession(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) ListSessions() ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) AddSnippets(snippets []models.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snippets = append(s.snippets, snippets...)
	return nil
}

func (s *InMemoryStore) ListSnippets() ([]models.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Snippet, len(s.snippets))
	copy(out, s.snippets)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
