package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T, store Store, cfg ManagerConfig) *Manager {
	t.Helper()
	m, err := NewManager(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestBeginCreatesFreshSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore(), ManagerConfig{})

	sess, release, err := m.Begin(context.Background(), "")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer release()

	if sess.ID == "" {
		t.Fatalf("expected a generated session id")
	}
	if sess.Stage != StageAwaitingName {
		t.Fatalf("fresh session must start awaiting_name, got %s", sess.Stage)
	}
}

func TestCommitPersistsAndUncommittedIsInvisible(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := newTestManager(t, store, ManagerConfig{})
	ctx := context.Background()

	sess, release, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	now := time.Now()
	sess.AppendTurn(RoleUser, "hello", now, 0)
	if err := m.Commit(ctx, sess); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	release()

	// Mutate without committing; the stored session must stay untouched.
	sess2, release2, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() second error = %v", err)
	}
	sess2.AppendTurn(RoleUser, "never committed", now, 0)
	release2()

	sess3, release3, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() third error = %v", err)
	}
	defer release3()
	if len(sess3.History) != 1 {
		t.Fatalf("expected exactly the committed turn, got %d entries", len(sess3.History))
	}
}

func TestCommitRefusesInvalidSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore(), ManagerConfig{})

	sess := NewSession("s1", time.Now())
	sess.Stage = StageGreeted // greeted without a patient
	if err := m.Commit(context.Background(), sess); err == nil {
		t.Fatalf("expected Commit to reject an invalid session")
	}
}

func TestBeginRejectsConcurrentTurnWhenNotQueueing(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore(), ManagerConfig{QueueTurns: false})
	ctx := context.Background()

	_, release, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	_, _, err = m.Begin(ctx, "s1")
	if !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	// A different session is unaffected.
	_, release2, err := m.Begin(ctx, "s2")
	if err != nil {
		t.Fatalf("Begin() other session error = %v", err)
	}
	release2()

	release()
	_, release3, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() after release error = %v", err)
	}
	release3()
}

func TestBeginQueuesConcurrentTurns(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore(), ManagerConfig{QueueTurns: true})
	ctx := context.Background()

	_, release, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, release2, err := m.Begin(ctx, "s1")
		if err != nil {
			t.Errorf("queued Begin() error = %v", err)
			return
		}
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatalf("second turn must not acquire while the first is in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	wg.Wait()

	select {
	case <-acquired:
	default:
		t.Fatalf("queued turn never acquired after release")
	}
}

func TestBeginQueueHonorsContextCancel(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, NewMemoryStore(), ManagerConfig{QueueTurns: true})

	_, release, err := m.Begin(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = m.Begin(ctx, "s1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestIdleSessionSurfacesAsFresh(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := newTestManager(t, store, ManagerConfig{IdleTTL: time.Minute})
	ctx := context.Background()

	sess, release, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := sess.BindPatient(&PatientRecord{Name: "Alice Wong"}); err != nil {
		t.Fatalf("BindPatient() error = %v", err)
	}
	if err := sess.TransitionTo(StageGreeted); err != nil {
		t.Fatalf("TransitionTo() error = %v", err)
	}
	sess.LastActive = time.Now().Add(-2 * time.Minute)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	release()

	sess2, release2, err := m.Begin(ctx, "s1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer release2()
	if sess2.Stage != StageAwaitingName || sess2.Patient != nil {
		t.Fatalf("idle-expired session must surface fresh, got stage=%s", sess2.Stage)
	}
}

func TestExpireIdleSkipsBusySessions(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	m := newTestManager(t, store, ManagerConfig{IdleTTL: time.Minute})
	ctx := context.Background()

	stale := NewSession("stale", time.Now().Add(-time.Hour))
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("Save(stale) error = %v", err)
	}
	busy := NewSession("busy", time.Now().Add(-time.Hour))
	if err := store.Save(ctx, busy); err != nil {
		t.Fatalf("Save(busy) error = %v", err)
	}

	_, release, err := m.Begin(ctx, "busy")
	if err != nil {
		t.Fatalf("Begin(busy) error = %v", err)
	}
	defer release()

	evicted, err := m.ExpireIdle(ctx)
	if err != nil {
		t.Fatalf("ExpireIdle() error = %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, err := store.Load(ctx, "stale"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("stale session must be gone, got %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("busy session must survive the sweep, store has %d", store.Len())
	}
}
