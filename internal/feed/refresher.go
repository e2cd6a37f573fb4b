package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Refresher re-fetches a value and commits it. Fetches are numbered; a
// result is committed only if no later fetch has committed already, so
// overlapping refreshes settle on the most recently issued one. Nothing is
// committed once the fetch context is done.
type Refresher[T any] struct {
	fetch  func(ctx context.Context) (T, error)
	commit func(T)

	mu        sync.Mutex
	issued    uint64
	committed uint64
}

// NewRefresher creates a Refresher.
func NewRefresher[T any](fetch func(ctx context.Context) (T, error), commit func(T)) *Refresher[T] {
	return &Refresher[T]{fetch: fetch, commit: commit}
}

// Refresh runs one fetch. It returns ErrViewUnmounted when ctx ended before
// the result could be committed. A result superseded by a newer fetch is
// dropped without error.
func (r *Refresher[T]) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	v, err := r.fetch(ctx)
	if ctx.Err() != nil {
		return fmt.Errorf("feed: refresh: %w", domain.ErrViewUnmounted)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctx.Err() != nil {
		return fmt.Errorf("feed: refresh: %w", domain.ErrViewUnmounted)
	}
	if seq > r.committed {
		r.committed = seq
		r.commit(v)
	}
	return nil
}

// Follow calls Refresh for every new-block notification on ch until ctx is
// done or ch is closed. onErr, if non-nil, sees every refresh error.
func (r *Refresher[T]) Follow(ctx context.Context, ch <-chan domain.Notification, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if !n.IsNewBlock() {
				continue
			}
			if err := r.Refresh(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
