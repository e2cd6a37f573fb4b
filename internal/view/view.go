// Package view holds the server-side view models: faucet, trade ticket,
// profile and counter. A view is mounted for a lifetime context, refreshes
// itself on chain notifications and commits state only while mounted.
package view

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Session is the read side of the session manager.
type Session interface {
	Snapshot() domain.SessionState
}

// Notifications hands out notification subscriptions.
type Notifications interface {
	Subscribe() (<-chan domain.Notification, func())
}

// TokenService is the token application.
type TokenService interface {
	Balance(ctx context.Context, owner string) (domain.Amount, error)
	Mint(ctx context.Context, owner string, amount domain.Amount) error
}

// MarketService is the market application.
type MarketService interface {
	Buy(ctx context.Context, marketID uint64, outcomeID uint32, value, minShares domain.Amount) error
	MyShares(ctx context.Context, marketID uint64) ([]domain.Share, error)
}

// CounterService is the counter test application.
type CounterService interface {
	Value(ctx context.Context) (uint64, error)
	Increment(ctx context.Context, by uint64) error
}

// lifecycle tracks whether a view is mounted and whether a user action is
// outstanding.
type lifecycle struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool
}

// mount starts the view's lifetime. fresh is false if it was already mounted.
func (l *lifecycle) mount(parent context.Context) (ctx context.Context, fresh bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() == nil {
		return l.ctx, false
	}
	l.ctx, l.cancel = context.WithCancel(parent)
	return l.ctx, true
}

// Unmount ends the view's lifetime. In-flight fetches finish but their
// results are discarded.
func (l *lifecycle) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

// Mounted reports whether the view is live.
func (l *lifecycle) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx != nil && l.ctx.Err() == nil
}

// scope derives a context that ends with either ctx or the mount.
func (l *lifecycle) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	l.mu.Lock()
	m := l.ctx
	l.mu.Unlock()
	if m == nil || m.Err() != nil {
		return nil, nil, domain.ErrViewUnmounted
	}
	sctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m, cancel)
	return sctx, func() {
		stop()
		cancel()
	}, nil
}

// begin marks a user action in flight. A second action is rejected until
// the returned func runs.
func (l *lifecycle) begin() (func(), error) {
	if !l.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrActionInFlight
	}
	return func() { l.busy.Store(false) }, nil
}
