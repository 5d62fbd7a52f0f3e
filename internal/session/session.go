// Package session manages the lifecycle of persisted conversations.
//
// Each session wraps one dialogue manager. Live sessions are held in memory
// and serialized per session; every processed turn is written back to the
// store so a conversation survives a process restart. Sessions idle past the
// TTL expire and are rejected.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medpipe/medpipe/internal/catalog"
	"github.com/medpipe/medpipe/internal/dialogue"
	"github.com/medpipe/medpipe/internal/genai"
	"github.com/medpipe/medpipe/internal/knowledge"
	"github.com/medpipe/medpipe/internal/models"
	"github.com/medpipe/medpipe/internal/store"
)

// DefaultTTL is how long an idle session stays resumable.
const DefaultTTL = 24 * time.Hour

// Opts holds session manager configuration.
type Opts struct {
	TTL time.Duration
}

// Option configures the session manager.
type Option func(*Opts)

// WithTTL overrides the idle session expiry.
func WithTTL(ttl time.Duration) Option { return func(o *Opts) { o.TTL = ttl } }

type entry struct {
	mu   sync.Mutex
	dm   *dialogue.Manager
	sess models.Session
}

// Manager creates, resumes and drives sessions.
type Manager struct {
	cfg       models.Config
	cats      *catalog.Set
	retriever knowledge.Retriever
	generator genai.ClientInterface
	st        store.Store
	ttl       time.Duration

	mu   sync.Mutex
	live map[string]*entry
}

// NewManager creates a session manager over the given store and dialogue
// collaborators.
func NewManager(cfg models.Config, cats *catalog.Set, retriever knowledge.Retriever, generator genai.ClientInterface, st store.Store, opts ...Option) *Manager {
	o := Opts{TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		cfg:       cfg,
		cats:      cats,
		retriever: retriever,
		generator: generator,
		st:        st,
		ttl:       o.TTL,
		live:      make(map[string]*entry),
	}
}

// Create starts a new session and persists its initial snapshot.
func (m *Manager) Create(username string) (models.Session, error) {
	dm := dialogue.NewManager(m.cfg, m.cats, m.retriever, m.generator)
	now := time.Now()
	sess := models.Session{
		ID:           uuid.NewString(),
		Username:     username,
		Context:      *dm.Context(),
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}
	if err := m.st.SaveSession(sess); err != nil {
		return models.Session{}, fmt.Errorf("failed to persist new session: %w", err)
	}

	m.mu.Lock()
	m.live[sess.ID] = &entry{dm: dm, sess: sess}
	m.mu.Unlock()

	slog.Info("session: created", "session", sess.ID, "username", username)
	return sess, nil
}

// Get returns the current snapshot of a session.
func (m *Manager) Get(id string) (models.Session, error) {
	m.mu.Lock()
	e, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.sess, nil
	}

	stored, err := m.st.GetSession(id)
	if err != nil {
		return models.Session{}, err
	}
	if stored == nil {
		return models.Session{}, models.ErrSessionNotFound
	}
	return *stored, nil
}

// List returns all persisted sessions.
func (m *Manager) List() ([]models.Session, error) {
	return m.st.ListSessions()
}

// Delete removes a session from memory and the store.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
	return m.st.DeleteSession(id)
}

// Message runs one turn of the session's dialogue and persists the updated
// snapshot. Sessions idle past the TTL return ErrSessionExpired.
func (m *Manager) Message(ctx context.Context, id, message string) (string, models.Session, error) {
	e, err := m.resume(id)
	if err != nil {
		return "", models.Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Since(e.sess.LastActivity) > m.ttl {
		slog.Info("session: expired", "session", id, "idle", time.Since(e.sess.LastActivity))
		return "", models.Session{}, models.ErrSessionExpired
	}

	reply, err := e.dm.ProcessMessage(ctx, message)
	if err != nil {
		return "", models.Session{}, err
	}

	now := time.Now()
	e.sess.Context = *e.dm.Context()
	e.sess.History = e.dm.History()
	e.sess.UpdatedAt = now
	e.sess.LastActivity = now
	if err := m.st.SaveSession(e.sess); err != nil {
		// The reply already happened; losing one snapshot write is
		// recoverable on the next turn.
		slog.Error("session: failed to persist snapshot", "session", id, "error", err)
	}
	return reply, e.sess, nil
}

// resume returns the live entry for a session, rebuilding it from the store
// when the process has restarted since the session's last turn.
func (m *Manager) resume(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live[id]; ok {
		return e, nil
	}

	stored, err := m.st.GetSession(id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, models.ErrSessionNotFound
	}

	c := stored.Context
	dm := dialogue.NewManagerWithContext(m.cfg, m.cats, m.retriever, m.generator, &c)
	dm.SetHistory(stored.History)
	e := &entry{dm: dm, sess: *stored}
	m.live[id] = e
	slog.Info("session: restored from store", "session", id, "state", c.State)
	return e, nil
}
