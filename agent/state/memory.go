package state

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Sessions are stored and
// returned as deep copies so callers never share mutable state with the map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSessionID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return sess.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(sess.ID) == "" {
		return ErrInvalidSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sess.ID] = sess.Clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSessionID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// ExpireIdle removes sessions whose last activity predates the cutoff and
// reports how many were evicted.
func (m *MemoryStore) ExpireIdle(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, sess := range m.sessions {
		if sess.LastActive.Before(before) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

// IdleSessionIDs lists sessions whose last activity predates the cutoff.
func (m *MemoryStore) IdleSessionIDs(ctx context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, sess := range m.sessions {
		if sess.LastActive.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
