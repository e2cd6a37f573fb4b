// Package feed distributes chain notifications to every interested party and
// turns them into state refreshes.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/metrics"
)

// SessionSource is the subset of the session manager the fan-out needs.
type SessionSource interface {
	Client() (domain.ChainClient, domain.SessionState, error)
	Snapshot() domain.SessionState
	Watch(fn func(domain.SessionState)) func()
}

// Fanout follows the session's chain client and copies each notification
// to every subscriber. A new stream is opened whenever the session
// generation changes. Subscribers that fall behind miss notifications
// instead of stalling the others.
type Fanout struct {
	source SessionSource
	bus    domain.SignalBus
	buffer int
	logger *slog.Logger

	retryBase time.Duration
	retryMax  time.Duration

	mu     sync.Mutex
	subs   map[int]chan domain.Notification
	nextID int
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithBus also publishes every notification on the signal bus.
func WithBus(bus domain.SignalBus) FanoutOption {
	return func(f *Fanout) { f.bus = bus }
}

// WithBuffer sets the per-subscriber channel size.
func WithBuffer(n int) FanoutOption {
	return func(f *Fanout) {
		if n > 0 {
			f.buffer = n
		}
	}
}

// WithRetry sets the backoff between attempts to reopen a stream that failed
// to open or ended while the session is still trading.
func WithRetry(base, max time.Duration) FanoutOption {
	return func(f *Fanout) {
		if base > 0 {
			f.retryBase = base
		}
		if max >= f.retryBase {
			f.retryMax = max
		}
	}
}

// NewFanout creates a Fanout over source.
func NewFanout(source SessionSource, logger *slog.Logger, opts ...FanoutOption) *Fanout {
	f := &Fanout{
		source: source,
		buffer: 16,
		logger: logger.With(slog.String("component", "fanout")),
		subs:   make(map[int]chan domain.Notification),

		retryBase: time.Second,
		retryMax:  30 * time.Second,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel.
func (f *Fanout) Subscribe() (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, f.buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (f *Fanout) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Broadcast delivers n to every subscriber.
func (f *Fanout) Broadcast(ctx context.Context, n domain.Notification) {
	metrics.CountNotification(string(n.Kind))

	f.mu.Lock()
	for id, ch := range f.subs {
		select {
		case ch <- n:
		default:
			f.logger.DebugContext(ctx, "subscriber behind, dropping notification",
				slog.Int("subscriber", id),
				slog.Uint64("height", n.Height),
			)
		}
	}
	f.mu.Unlock()

	if f.bus == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := f.bus.Publish(ctx, domain.ChannelNotifications, payload); err != nil {
		f.logger.WarnContext(ctx, "publish notification", slog.String("error", err.Error()))
	}
}

// Run pumps notifications until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context) error {
	changes := make(chan domain.SessionState, 1)
	stop := f.source.Watch(func(s domain.SessionState) {
		for {
			select {
			case changes <- s:
				return
			default:
				select {
				case <-changes:
				default:
				}
			}
		}
	})
	defer stop()

	f.logger.Info("notification fan-out started")
	defer f.logger.Info("notification fan-out stopped")

	var (
		gen     uint64
		cancel  context.CancelFunc = func() {}
		stream  <-chan domain.Notification
		retry   <-chan time.Time
		backoff = f.retryBase
	)
	defer func() { cancel() }()

	// scheduleRetry arms the retry timer while the session can still trade.
	scheduleRetry := func() {
		if !f.source.Snapshot().Trading() {
			return
		}
		retry = time.After(backoff)
		backoff = min(backoff*2, f.retryMax)
	}

	open := func(s domain.SessionState) {
		cancel()
		cancel = func() {}
		stream, retry = nil, nil
		if s.Generation != gen {
			backoff = f.retryBase
		}
		gen = s.Generation
		if !s.Trading() {
			return
		}
		client, state, err := f.source.Client()
		if err != nil || state.Generation != s.Generation {
			return
		}
		sctx, c := context.WithCancel(ctx)
		ch, err := client.Notifications(sctx)
		if err != nil {
			c()
			f.logger.WarnContext(ctx, "open notification stream",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			scheduleRetry()
			return
		}
		cancel, stream = c, ch
		backoff = f.retryBase
		f.logger.InfoContext(ctx, "listening for notifications", slog.String("chain_id", state.ChainID))
	}
	open(f.source.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-changes:
			if s.Generation != gen || (stream == nil && retry == nil && s.Trading()) {
				open(s)
			}
		case <-retry:
			open(f.source.Snapshot())
		case n, ok := <-stream:
			if !ok {
				stream = nil
				scheduleRetry()
				continue
			}
			f.Broadcast(ctx, n)
		}
	}
}
