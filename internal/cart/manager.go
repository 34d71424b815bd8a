package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the live sessions of this process, keyed by session id.
// Sessions are created on demand and restored from the durable store when a
// record exists, so a reload never loses cart lines but always recomputes
// the breakdown.
type Manager struct {
	Store  *Store
	Logger *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs an empty session manager.
func NewManager(store *Store, logger *zerolog.Logger) *Manager {
	return &Manager{Store: store, Logger: logger, sessions: make(map[string]*Session)}
}

// Create starts a fresh session with a generated id.
func (m *Manager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	sess := NewSession(id, m.Store, m.Logger)
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return sess
}

// Get returns the live session for the id, restoring it from the durable
// store if this process has not seen it yet. ok is false when neither a
// live session nor a durable record exists.
func (m *Manager) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return sess, true
	}
	m.mu.Unlock()

	durable, found, err := m.Store.Load(ctx, id)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn().Err(err).Str("session_id", id).Msg("load cart state")
		}
		return nil, false
	}
	if !found {
		return nil, false
	}

	sess := NewSession(id, m.Store, m.Logger)
	sess.Restore(ctx, durable)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have restored it in the meantime.
	if existing, ok := m.sessions[id]; ok {
		return existing, true
	}
	m.sessions[id] = sess
	return sess, true
}

// Drop tears the session down and removes its durable record.
func (m *Manager) Drop(ctx context.Context, id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if err := m.Store.Delete(ctx, id); err != nil && m.Logger != nil {
		m.Logger.Warn().Err(err).Str("session_id", id).Msg("delete cart state")
	}
}
