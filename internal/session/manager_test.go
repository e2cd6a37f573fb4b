package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

const owner = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"

type fakeModule struct {
	loadErr  error
	claimErr error
	loads    atomic.Int32
	claims   atomic.Int32
	clients  atomic.Int32
	gate     chan struct{}
}

func (f *fakeModule) Load(context.Context) error {
	f.loads.Add(1)
	return f.loadErr
}

func (f *fakeModule) Faucet(string) domain.Faucet { return fakeFaucet{f} }

func (f *fakeModule) Client(_ context.Context, w *domain.Wallet, _ domain.Signer, _ bool) (domain.ChainClient, error) {
	f.clients.Add(1)
	return &fakeClient{chain: w.DefaultChain}, nil
}

type fakeFaucet struct{ m *fakeModule }

func (f fakeFaucet) CreateWallet(context.Context) (*domain.Wallet, error) {
	return &domain.Wallet{}, nil
}

func (f fakeFaucet) ClaimChain(_ context.Context, w *domain.Wallet, o string) (string, error) {
	f.m.claims.Add(1)
	if f.m.gate != nil {
		<-f.m.gate
	}
	if f.m.claimErr != nil {
		return "", f.m.claimErr
	}
	w.Owner, w.DefaultChain = o, "chain-1"
	return "chain-1", nil
}

type fakeClient struct {
	chain  string
	closed atomic.Bool
}

func (c *fakeClient) ChainID() string { return c.chain }
func (c *fakeClient) Application(context.Context, string) (domain.Application, error) {
	return nil, errors.New("unused")
}
func (c *fakeClient) Notifications(context.Context) (<-chan domain.Notification, error) {
	return nil, errors.New("unused")
}
func (c *fakeClient) Close() error { c.closed.Store(true); return nil }

type fakeSigner struct{}

func (fakeSigner) Address(context.Context) (string, error)              { return owner, nil }
func (fakeSigner) Sign(context.Context, string, []byte) (string, error) { return "", nil }
func (fakeSigner) ContainsKey(context.Context, string) (bool, error)    { return true, nil }

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event, _ string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newManager(mod *fakeModule, flags domain.FlagStore, opts ...Option) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mod, fakeSigner{}, flags, Config{FaucetURL: "http://faucet"}, logger, opts...)
}

func TestManager_AutoReconnectExactlyOnce(t *testing.T) {
	ctx := context.Background()
	flags := &MemoryFlags{}
	require.NoError(t, flags.SetAutoConnect(ctx, true))
	mod := &fakeModule{}
	m := newManager(mod, flags)

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx))

	assert.Equal(t, int32(1), mod.loads.Load())
	assert.Equal(t, int32(1), mod.claims.Load())
	s := m.Snapshot()
	assert.True(t, s.Ready)
	assert.True(t, s.Connected)
	assert.Equal(t, owner, s.Owner)
	assert.Equal(t, "chain-1", s.ChainID)
}

func TestManager_NoAutoReconnectWithoutFlag(t *testing.T) {
	mod := &fakeModule{}
	m := newManager(mod, &MemoryFlags{})
	require.NoError(t, m.Initialize(context.Background()))

	assert.Zero(t, mod.claims.Load())
	assert.True(t, m.Snapshot().Ready)
	assert.False(t, m.Snapshot().Connected)
}

func TestManager_InitFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	audit := &memAudit{}
	mod := &fakeModule{loadErr: domain.ErrChainUnavailable}
	m := newManager(mod, &MemoryFlags{}, WithAudit(audit))

	err := m.Initialize(ctx)
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
	s := m.Snapshot()
	assert.False(t, s.Ready)
	assert.True(t, s.Fatal)
	assert.NotEmpty(t, s.Error)

	assert.ErrorIs(t, m.Connect(ctx, false), domain.ErrChainUnavailable)
	assert.ErrorIs(t, m.Initialize(ctx), domain.ErrChainUnavailable)
	assert.Equal(t, int32(1), mod.loads.Load())
	assert.Equal(t, []string{domain.EventSessionInitError}, audit.events)
}

func TestManager_ConnectBeforeReady(t *testing.T) {
	m := newManager(&fakeModule{}, &MemoryFlags{})
	assert.ErrorIs(t, m.Connect(context.Background(), false), domain.ErrNotReady)
}

func TestManager_SilentFailureClearsFlag(t *testing.T) {
	ctx := context.Background()
	flags := NewFileFlags(filepath.Join(t.TempDir(), "flags.json"))
	require.NoError(t, flags.SetAutoConnect(ctx, true))
	mod := &fakeModule{claimErr: errors.New("faucet is dry")}
	m := newManager(mod, flags)

	require.NoError(t, m.Initialize(ctx))
	s := m.Snapshot()
	assert.True(t, s.Ready)
	assert.False(t, s.Connected)
	assert.False(t, s.Connecting)
	assert.Equal(t, "faucet is dry", s.Error)

	on, err := flags.AutoConnect(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestManager_ExplicitFailureKeepsFlag(t *testing.T) {
	ctx := context.Background()
	flags := &MemoryFlags{}
	mod := &fakeModule{}
	m := newManager(mod, flags)
	require.NoError(t, m.Initialize(ctx))

	require.NoError(t, m.Connect(ctx, false))
	require.NoError(t, m.Disconnect(ctx))
	require.NoError(t, flags.SetAutoConnect(ctx, true))

	mod.claimErr = errors.New("nope")
	require.Error(t, m.Connect(ctx, false))
	on, _ := flags.AutoConnect(ctx)
	assert.True(t, on)

	// A retry after the failure succeeds.
	mod.claimErr = nil
	require.NoError(t, m.Connect(ctx, false))
	assert.Empty(t, m.Snapshot().Error)
}

func TestManager_DisconnectResets(t *testing.T) {
	ctx := context.Background()
	flags := &MemoryFlags{}
	audit := &memAudit{}
	m := newManager(&fakeModule{}, flags, WithAudit(audit))
	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Connect(ctx, false))

	client, state, err := m.Client()
	require.NoError(t, err)
	gen := state.Generation
	on, _ := flags.AutoConnect(ctx)
	assert.True(t, on)

	require.NoError(t, m.Disconnect(ctx))
	s := m.Snapshot()
	assert.True(t, s.Ready)
	assert.False(t, s.Connected)
	assert.Empty(t, s.Owner)
	assert.Empty(t, s.ChainID)
	assert.Greater(t, s.Generation, gen)
	assert.True(t, client.(*fakeClient).closed.Load())

	_, _, err = m.Client()
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	on, _ = flags.AutoConnect(ctx)
	assert.False(t, on)

	assert.Equal(t, []string{domain.EventSessionReady, domain.EventConnected, domain.EventDisconnected}, audit.events)
}

func TestManager_ConcurrentConnectSerialised(t *testing.T) {
	ctx := context.Background()
	mod := &fakeModule{gate: make(chan struct{})}
	m := newManager(mod, &MemoryFlags{})
	require.NoError(t, m.Initialize(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Connect(ctx, false))
		}()
	}
	close(mod.gate)
	wg.Wait()

	assert.Equal(t, int32(1), mod.claims.Load())
	assert.Equal(t, uint64(1), m.Snapshot().Generation)
}

func TestManager_Watch(t *testing.T) {
	ctx := context.Background()
	m := newManager(&fakeModule{}, &MemoryFlags{})

	var mu sync.Mutex
	var seen []domain.SessionState
	stop := m.Watch(func(s domain.SessionState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Connect(ctx, false))
	stop()
	require.NoError(t, m.Disconnect(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.True(t, seen[0].Ready)
	assert.True(t, seen[1].Connecting)
	assert.True(t, seen[2].Connected)
}

func TestFileFlags_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := NewFileFlags(filepath.Join(t.TempDir(), "nested", "flags.json"))

	on, err := f.AutoConnect(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, f.SetAutoConnect(ctx, true))
	on, err = f.AutoConnect(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, f.SetAutoConnect(ctx, false))
	require.NoError(t, f.SetAutoConnect(ctx, false))
	on, _ = f.AutoConnect(ctx)
	assert.False(t, on)
}
