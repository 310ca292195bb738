package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStore is the Redis surface used for run locks and cancel flags.
type RunStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, token string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	RunLockKey(pdfID string) string
	CancelKey(pdfID string) string
}

// runLock guards a single PDF run across worker processes.
type runLock struct {
	store RunStore
	key   string
	token string
}

func acquireRunLock(ctx context.Context, store RunStore, pdfID uuid.UUID, ttl time.Duration) (*runLock, bool, error) {
	if store == nil {
		return &runLock{}, true, nil
	}
	lock := &runLock{store: store, key: store.RunLockKey(pdfID.String()), token: uuid.NewString()}
	ok, err := store.SetNX(ctx, lock.key, lock.token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return lock, true, nil
}

func (l *runLock) release(ctx context.Context) error {
	if l == nil || l.store == nil {
		return nil
	}
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// cancelFlags carries cancel requests between the API and remote workers.
type cancelFlags struct {
	store RunStore
	ttl   time.Duration
}

func (f cancelFlags) raise(ctx context.Context, pdfID uuid.UUID) error {
	if f.store == nil {
		return nil
	}
	return f.store.Set(ctx, f.store.CancelKey(pdfID.String()), "1", f.ttl)
}

func (f cancelFlags) raised(ctx context.Context, pdfID uuid.UUID) bool {
	if f.store == nil {
		return false
	}
	ok, err := f.store.Exists(ctx, f.store.CancelKey(pdfID.String()))
	if err != nil {
		return false
	}
	return ok
}

func (f cancelFlags) clear(ctx context.Context, pdfID uuid.UUID) error {
	if f.store == nil {
		return nil
	}
	return f.store.Del(ctx, f.store.CancelKey(pdfID.String()))
}

var (
	errRunCanceled = errors.New("run canceled")
	errRunTimeout  = errors.New("run exceeded its time limit")
)

// cancelRegistry tracks the cancel functions of runs executing in this process.
type cancelRegistry struct {
	mu   sync.Mutex
	runs map[uuid.UUID]context.CancelCauseFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{runs: map[uuid.UUID]context.CancelCauseFunc{}}
}

func (r *cancelRegistry) register(pdfID uuid.UUID, cancel context.CancelCauseFunc) func() {
	r.mu.Lock()
	r.runs[pdfID] = cancel
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.runs, pdfID)
		r.mu.Unlock()
	}
}

func (r *cancelRegistry) cancel(pdfID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.runs[pdfID]
	r.mu.Unlock()
	if ok {
		cancel(errRunCanceled)
	}
	return ok
}
