package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ManagerConfig tunes session lifecycle policy.
type ManagerConfig struct {
	// MaxHistoryTurns bounds the per-session history; oldest entries are
	// evicted first. <= 0 means unbounded.
	MaxHistoryTurns int `envconfig:"MAX_HISTORY_TURNS" split_words:"true" default:"40"`
	// IdleTTL is the idle window after which a session is eligible for
	// eviction and an incoming turn sees a fresh session.
	IdleTTL time.Duration `envconfig:"IDLE_TTL" split_words:"true" default:"30m"`
	// SweepInterval is the cadence of the background idle sweep.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" split_words:"true" default:"5m"`
	// QueueTurns selects the collision policy for concurrent turns on one
	// session: queue behind the in-flight turn when true, reject with
	// ErrSessionBusy when false.
	QueueTurns bool `envconfig:"QUEUE_TURNS" split_words:"true" default:"true"`
}

// idleLister is implemented by stores that can enumerate idle sessions for
// the sweep. TTL-backed stores expire server-side and don't implement it.
type idleLister interface {
	IdleSessionIDs(ctx context.Context, before time.Time) ([]string, error)
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// Manager serializes turns per session over a Store: at most one turn is
// in flight per session id, while distinct sessions proceed independently.
// Callers work on a clone and publish it with Commit, so an aborted turn
// leaves the stored session untouched.
type Manager struct {
	store Store
	cfg   ManagerConfig
	log   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock

	newID func() string
	now   func() time.Time
}

func NewManager(store Store, cfg ManagerConfig, log zerolog.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		log:   log,
		locks: make(map[string]*sessionLock),
		newID: uuid.NewString,
		now:   time.Now,
	}, nil
}

// Begin acquires the per-session lock and returns a working copy of the
// session, creating a fresh awaiting_name session when the id is absent,
// unknown or idle-expired. The returned release func must be called once
// the turn is finished, committed or not.
func (m *Manager) Begin(ctx context.Context, sessionID string) (*Session, func(), error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = m.newID()
	}

	release, err := m.acquire(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	sess, err := m.loadOrCreate(ctx, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	return sess, release, nil
}

// Commit validates and persists a session mutated during a turn.
func (m *Manager) Commit(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid session: %w", err)
	}
	return m.store.Save(ctx, sess)
}

// Remove deletes a session outright (explicit restart of a conversation).
func (m *Manager) Remove(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// MaxHistoryTurns exposes the history cap for turn bookkeeping.
func (m *Manager) MaxHistoryTurns() int {
	return m.cfg.MaxHistoryTurns
}

func (m *Manager) loadOrCreate(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		if m.cfg.IdleTTL > 0 && m.now().Sub(sess.LastActive) > m.cfg.IdleTTL {
			// Expired sessions surface as fresh ones, not as errors.
			m.log.Debug().Str("session_id", id).Msg("idle session expired, starting fresh")
			return NewSession(id, m.now()), nil
		}
		return sess, nil
	case errors.Is(err, ErrStateNotFound):
		return NewSession(id, m.now()), nil
	default:
		return nil, err
	}
}

func (m *Manager) acquire(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[id] = lock
	}
	lock.refs++
	m.mu.Unlock()

	if m.cfg.QueueTurns {
		select {
		case lock.ch <- struct{}{}:
		case <-ctx.Done():
			m.unref(id, lock)
			return nil, ctx.Err()
		}
	} else {
		select {
		case lock.ch <- struct{}{}:
		default:
			m.unref(id, lock)
			return nil, fmt.Errorf("%w: id=%s", ErrSessionBusy, id)
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-lock.ch
			m.unref(id, lock)
		})
	}
	return release, nil
}

func (m *Manager) unref(id string, lock *sessionLock) {
	m.mu.Lock()
	lock.refs--
	if lock.refs <= 0 {
		delete(m.locks, id)
	}
	m.mu.Unlock()
}

// ExpireIdle evicts sessions idle past the TTL. Each candidate is evicted
// under its per-session lock so the sweep never races an in-flight turn.
func (m *Manager) ExpireIdle(ctx context.Context) (int, error) {
	lister, ok := m.store.(idleLister)
	if !ok || m.cfg.IdleTTL <= 0 {
		return 0, nil
	}

	cutoff := m.now().Add(-m.cfg.IdleTTL)
	ids, err := lister.IdleSessionIDs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, id := range ids {
		release, err := m.tryAcquire(id)
		if err != nil {
			continue // turn in flight, the session is not idle anymore
		}
		if err := m.store.Delete(ctx, id); err != nil {
			release()
			return evicted, err
		}
		release()
		evicted++
	}
	return evicted, nil
}

func (m *Manager) tryAcquire(id string) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sessionLock{ch: make(chan struct{}, 1)}
		m.locks[id] = lock
	}
	lock.refs++
	m.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	default:
		m.unref(id, lock)
		return nil, ErrSessionBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lock.ch
			m.unref(id, lock)
		})
	}, nil
}

// RunSweeper runs the idle sweep until the context is cancelled.
func (m *Manager) RunSweeper(ctx context.Context) {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.ExpireIdle(ctx)
			if err != nil {
				m.log.Warn().Err(err).Msg("idle sweep failed")
				continue
			}
			if n > 0 {
				m.log.Info().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}
