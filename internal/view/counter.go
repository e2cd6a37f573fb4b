package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
)

// maxBlockLog bounds the block history kept by the counter view.
const maxBlockLog = 50

// BlockEntry is one committed block seen by the counter view.
type BlockEntry struct {
	Height uint64 `json:"height"`
	Hash   string `json:"hash"`
}

// CounterState is what the counter test page shows.
type CounterState struct {
	Connected bool         `json:"connected"`
	Value     *uint64      `json:"value"`
	Pending   bool         `json:"pending"`
	Error     string       `json:"error,omitempty"`
	Blocks    []BlockEntry `json:"blocks"`
}

// Counter drives the counter test application. Its value is refreshed only
// by block notifications; an increment does not re-read it directly.
type Counter struct {
	lifecycle
	session Session
	counter CounterService
	notes   Notifications
	logger  *slog.Logger

	mu        sync.Mutex
	state     CounterState
	refresher *feed.Refresher[uint64]
}

// NewCounter creates an unmounted counter view.
func NewCounter(session Session, counter CounterService, notes Notifications, logger *slog.Logger) *Counter {
	c := &Counter{
		session: session,
		counter: counter,
		notes:   notes,
		logger:  logger.With(slog.String("component", "counter_view")),
	}
	c.refresher = feed.NewRefresher(func(ctx context.Context) (uint64, error) {
		return c.counter.Value(ctx)
	}, func(v uint64) {
		c.mu.Lock()
		c.state.Value = &v
		c.mu.Unlock()
	})
	return c
}

// Mount starts the view. Each new block is logged and triggers a re-read.
func (c *Counter) Mount(parent context.Context) {
	ctx, fresh := c.mount(parent)
	if !fresh {
		return
	}
	ch, stop := c.notes.Subscribe()
	go func() {
		defer stop()
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
				c.mu.Lock()
				c.state.Blocks = append([]BlockEntry{{Height: n.Height, Hash: n.Hash}}, c.state.Blocks...)
				if len(c.state.Blocks) > maxBlockLog {
					c.state.Blocks = c.state.Blocks[:maxBlockLog]
				}
				c.mu.Unlock()
				c.logErr(c.Refresh(ctx))
			}
		}
	}()
	go func() { c.logErr(c.Refresh(ctx)) }()
}

// State returns a copy of the current state.
func (c *Counter) State() CounterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Blocks = append([]BlockEntry(nil), c.state.Blocks...)
	if c.state.Value != nil {
		v := *c.state.Value
		s.Value = &v
	}
	return s
}

// Refresh re-reads the counter value.
func (c *Counter) Refresh(ctx context.Context) error {
	sctx, cancel, err := c.scope(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if !c.session.Snapshot().Trading() {
		c.mu.Lock()
		c.state.Connected = false
		c.state.Value = nil
		c.mu.Unlock()
		return nil
	}
	c.mu.Lock()
	c.state.Connected = true
	c.mu.Unlock()

	if err := c.refresher.Refresh(sctx); err != nil {
		if !errors.Is(err, domain.ErrViewUnmounted) {
			c.mu.Lock()
			c.state.Error = "Failed to load application"
			c.mu.Unlock()
		}
		return err
	}
	return nil
}

// Increment adds one to the counter.
func (c *Counter) Increment(ctx context.Context) (CounterState, error) {
	done, err := c.begin()
	if err != nil {
		return c.State(), err
	}
	defer done()

	if !c.session.Snapshot().Trading() {
		return c.State(), fmt.Errorf("view: increment: %w", domain.ErrNotConnected)
	}
	sctx, cancel, err := c.scope(ctx)
	if err != nil {
		return c.State(), err
	}
	defer cancel()

	c.mu.Lock()
	c.state.Pending = true
	c.state.Error = ""
	c.mu.Unlock()

	incErr := c.counter.Increment(sctx, 1)
	if sctx.Err() != nil {
		return c.State(), fmt.Errorf("view: increment: %w", domain.ErrViewUnmounted)
	}

	c.mu.Lock()
	c.state.Pending = false
	if incErr != nil {
		c.state.Error = incErr.Error()
	}
	c.mu.Unlock()
	if incErr != nil {
		return c.State(), fmt.Errorf("view: increment: %w", incErr)
	}
	return c.State(), nil
}

func (c *Counter) logErr(err error) {
	if err == nil || errors.Is(err, domain.ErrViewUnmounted) || errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Warn("counter refresh failed", slog.String("error", err.Error()))
}
