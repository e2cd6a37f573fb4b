package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

type streamClient struct {
	ch chan domain.Notification
}

func (c *streamClient) ChainID() string { return "chain-1" }
func (c *streamClient) Application(context.Context, string) (domain.Application, error) {
	return nil, errors.New("unused")
}
func (c *streamClient) Notifications(ctx context.Context) (<-chan domain.Notification, error) {
	out := make(chan domain.Notification)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-c.ch:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
func (c *streamClient) Close() error { return nil }

// flakyClient fails its first failures stream opens.
type flakyClient struct {
	*streamClient
	failures int32
	opens    atomic.Int32
}

func (c *flakyClient) Notifications(ctx context.Context) (<-chan domain.Notification, error) {
	if c.opens.Add(1) <= c.failures {
		return nil, errors.New("dial ws: connection refused")
	}
	return c.streamClient.Notifications(ctx)
}

type fakeSource struct {
	mu       sync.Mutex
	state    domain.SessionState
	client   domain.ChainClient
	watchers []func(domain.SessionState)
}

func (s *fakeSource) Client() (domain.ChainClient, domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected {
		return nil, s.state, domain.ErrNotConnected
	}
	return s.client, s.state, nil
}

func (s *fakeSource) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSource) Watch(fn func(domain.SessionState)) func() {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
	return func() {}
}

func (s *fakeSource) set(state domain.SessionState, client domain.ChainClient) {
	s.mu.Lock()
	s.state, s.client = state, client
	fns := append([]func(domain.SessionState){}, s.watchers...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func recv(t *testing.T, ch <-chan domain.Notification) domain.Notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
	return domain.Notification{}
}

func TestFanout_AllSubscribersReceive(t *testing.T) {
	client := &streamClient{ch: make(chan domain.Notification)}
	src := &fakeSource{}
	src.set(domain.SessionState{Ready: true, Connected: true, Owner: "0x1", Generation: 1}, client)

	f := NewFanout(src, discard())
	a, stopA := f.Subscribe()
	b, stopB := f.Subscribe()
	defer stopA()
	defer stopB()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	client.ch <- domain.Notification{Kind: domain.NotificationNewBlock, Height: 4}
	assert.Equal(t, uint64(4), recv(t, a).Height)
	assert.Equal(t, uint64(4), recv(t, b).Height)
	assert.Equal(t, 2, f.Subscribers())
}

func TestFanout_RetriesFailedOpen(t *testing.T) {
	client := &flakyClient{streamClient: &streamClient{ch: make(chan domain.Notification)}, failures: 2}
	src := &fakeSource{}
	src.set(domain.SessionState{Ready: true, Connected: true, Owner: "0x1", Generation: 1}, client)

	f := NewFanout(src, discard(), WithRetry(10*time.Millisecond, 40*time.Millisecond))
	sub, stop := f.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	require.Eventually(t, func() bool { return client.opens.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	client.ch <- domain.Notification{Kind: domain.NotificationNewBlock, Height: 9}
	assert.Equal(t, uint64(9), recv(t, sub).Height)
	assert.Equal(t, int32(3), client.opens.Load())
}

func TestFanout_NoRetryWhenDisconnected(t *testing.T) {
	client := &flakyClient{streamClient: &streamClient{ch: make(chan domain.Notification)}, failures: 100}
	src := &fakeSource{}
	src.set(domain.SessionState{Ready: true, Connected: true, Owner: "0x1", Generation: 1}, client)

	f := NewFanout(src, discard(), WithRetry(5*time.Millisecond, 5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	require.Eventually(t, func() bool { return client.opens.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	src.set(domain.SessionState{Ready: true, Generation: 2}, nil)
	time.Sleep(50 * time.Millisecond)
	settled := client.opens.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, client.opens.Load())
}

func TestFanout_SwitchesStreamOnReconnect(t *testing.T) {
	first := &streamClient{ch: make(chan domain.Notification)}
	second := &streamClient{ch: make(chan domain.Notification)}
	src := &fakeSource{}
	f := NewFanout(src, discard())
	sub, stop := f.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	// Wait for Run to register its watcher.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.watchers) == 1
	}, 2*time.Second, 5*time.Millisecond)

	src.set(domain.SessionState{Ready: true, Connected: true, Owner: "0x1", Generation: 1}, first)
	first.ch <- domain.Notification{Kind: domain.NotificationNewBlock, Height: 1}
	assert.Equal(t, uint64(1), recv(t, sub).Height)

	src.set(domain.SessionState{Ready: true, Connected: true, Owner: "0x1", Generation: 3}, second)
	second.ch <- domain.Notification{Kind: domain.NotificationNewBlock, Height: 9}
	assert.Equal(t, uint64(9), recv(t, sub).Height)
}

func TestFanout_SlowSubscriberDoesNotBlock(t *testing.T) {
	f := NewFanout(&fakeSource{}, discard(), WithBuffer(1))
	slow, stopSlow := f.Subscribe()
	fast, stopFast := f.Subscribe()
	defer stopSlow()

	f.Broadcast(context.Background(), domain.Notification{Height: 1})
	recv(t, fast)
	f.Broadcast(context.Background(), domain.Notification{Height: 2})
	assert.Equal(t, uint64(2), recv(t, fast).Height)

	assert.Equal(t, uint64(1), recv(t, slow).Height)
	select {
	case n := <-slow:
		t.Fatalf("slow subscriber got %d, want a drop", n.Height)
	default:
	}

	stopFast()
	stopFast()
	_, ok := <-fast
	assert.False(t, ok)
}

type memBus struct {
	mu   sync.Mutex
	msgs map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, ch string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msgs == nil {
		b.msgs = map[string][][]byte{}
	}
	b.msgs[ch] = append(b.msgs[ch], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("unused")
}

func TestFanout_PublishesToBus(t *testing.T) {
	bus := &memBus{}
	f := NewFanout(&fakeSource{}, discard(), WithBus(bus))
	f.Broadcast(context.Background(), domain.Notification{ChainID: "c", Kind: domain.NotificationNewBlock, Height: 2})

	require.Len(t, bus.msgs[domain.ChannelNotifications], 1)
	assert.JSONEq(t, `{"chain_id":"c","kind":"NewBlock","height":2}`, string(bus.msgs[domain.ChannelNotifications][0]))
}

func TestRefresher_LatestIssuedWins(t *testing.T) {
	release := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	var calls atomic.Int32
	var committed []int
	var mu sync.Mutex

	r := NewRefresher(func(ctx context.Context) (int, error) {
		n := int(calls.Add(1))
		<-release[n]
		return n * 10, nil
	}, func(v int) {
		mu.Lock()
		committed = append(committed, v)
		mu.Unlock()
	})

	ctx := context.Background()
	done := make(chan error, 2)
	go func() { done <- r.Refresh(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	go func() { done <- r.Refresh(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	// The second fetch finishes first; the stale first result is dropped.
	close(release[2])
	require.NoError(t, <-done)
	close(release[1])
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{20}, committed)
}

func TestRefresher_RedundantRefreshesAreSafe(t *testing.T) {
	value := 0
	var got []int
	r := NewRefresher(func(context.Context) (int, error) {
		value++
		return value, nil
	}, func(v int) { got = append(got, v) })

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Refresh(context.Background()))
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestRefresher_NoCommitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	committed := false
	r := NewRefresher(func(context.Context) (int, error) {
		cancel()
		return 1, nil
	}, func(int) { committed = true })

	err := r.Refresh(ctx)
	assert.ErrorIs(t, err, domain.ErrViewUnmounted)
	assert.False(t, committed)
}

func TestRefresher_Follow(t *testing.T) {
	var n atomic.Int32
	r := NewRefresher(func(context.Context) (int32, error) { return n.Add(1), nil }, func(int32) {})

	ch := make(chan domain.Notification, 3)
	ch <- domain.Notification{Kind: domain.NotificationNewBlock}
	ch <- domain.Notification{Kind: domain.NotificationNewRound}
	ch <- domain.Notification{Kind: domain.NotificationNewBlock}
	close(ch)

	r.Follow(context.Background(), ch, nil)
	assert.Equal(t, int32(2), n.Load())
}
