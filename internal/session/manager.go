// Package session owns the single wallet/chain session of the process:
// loading the chain module, connecting through the faucet, auto-reconnect,
// and disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// defaultConnectError is shown when a connect failure carries no message.
const defaultConnectError = "Failed to connect wallet"

// Alerter forwards session events to operators.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config controls how the manager connects.
type Config struct {
	FaucetURL string
	// SkipInbox is passed through to the chain client constructor.
	SkipInbox bool
}

// Manager holds the session state and the live chain client. The zero value
// is not usable; create one with New.
type Manager struct {
	module domain.ChainModule
	signer domain.Signer
	flags  domain.FlagStore
	audit  domain.AuditStore
	alerts Alerter
	cfg    Config
	logger *slog.Logger

	initOnce sync.Once
	initErr  error

	// connectMu serialises Connect and Disconnect.
	connectMu sync.Mutex

	mu       sync.RWMutex
	state    domain.SessionState
	client   domain.ChainClient
	watchers map[int]func(domain.SessionState)
	nextID   int
}

// Option configures optional collaborators.
type Option func(*Manager)

// WithAudit records session events in store.
func WithAudit(store domain.AuditStore) Option {
	return func(m *Manager) { m.audit = store }
}

// WithAlerter sends connect failures and init errors to operators.
func WithAlerter(a Alerter) Option {
	return func(m *Manager) { m.alerts = a }
}

// New creates a Manager. The session starts not ready and disconnected.
func New(module domain.ChainModule, signer domain.Signer, flags domain.FlagStore, cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		module:   module,
		signer:   signer,
		flags:    flags,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "session")),
		watchers: make(map[int]func(domain.SessionState)),
	}
	m.state.UpdatedAt = time.Now().UTC()
	for _, o := range opts {
		o(m)
	}
	return m
}

// Initialize loads the chain module. It runs once per Manager; later calls
// return the first result. A load failure is fatal: the session never
// becomes ready. On success, if the auto-reconnect flag is set, a silent
// Connect is attempted before Initialize returns.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		if err := m.module.Load(ctx); err != nil {
			m.initErr = fmt.Errorf("session: initialize: %w", err)
			m.update(func(s *domain.SessionState) {
				s.Error = err.Error()
				s.Fatal = true
			})
			m.logger.ErrorContext(ctx, "chain module failed to load", slog.String("error", err.Error()))
			m.record(ctx, domain.EventSessionInitError, "", map[string]any{"error": err.Error()})
			m.alert(ctx, domain.EventSessionInitError, "Chain client unavailable", err.Error())
			return
		}

		m.update(func(s *domain.SessionState) { s.Ready = true })
		m.logger.InfoContext(ctx, "chain module ready")
		m.record(ctx, domain.EventSessionReady, "", nil)

		auto, err := m.flags.AutoConnect(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "read auto-connect flag", slog.String("error", err.Error()))
			return
		}
		if auto {
			m.logger.InfoContext(ctx, "auto-reconnecting")
			if err := m.Connect(ctx, true); err != nil {
				m.logger.WarnContext(ctx, "auto-reconnect failed", slog.String("error", err.Error()))
			}
		}
	})
	return m.initErr
}

// Connect obtains the signer address, creates a faucet wallet, claims a
// chain and builds the chain client. Silent connects are the automatic kind;
// when one fails the auto-reconnect flag is cleared so it is not retried on
// the next start. Connecting while already connected is a no-op.
func (m *Manager) Connect(ctx context.Context, silent bool) error {
	snap := m.Snapshot()
	if snap.Fatal {
		return fmt.Errorf("session: connect: %w", domain.ErrChainUnavailable)
	}
	if !snap.Ready {
		return fmt.Errorf("session: connect: %w", domain.ErrNotReady)
	}

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.Snapshot().Connected {
		return nil
	}

	m.update(func(s *domain.SessionState) {
		s.Connecting = true
		s.Error = ""
	})

	owner, chainID, client, err := m.dial(ctx)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = defaultConnectError
		}
		m.update(func(s *domain.SessionState) {
			s.Connecting = false
			s.Error = msg
		})
		if silent {
			if ferr := m.flags.SetAutoConnect(ctx, false); ferr != nil {
				m.logger.WarnContext(ctx, "clear auto-connect flag", slog.String("error", ferr.Error()))
			}
		}
		m.logger.ErrorContext(ctx, "connect failed",
			slog.Bool("silent", silent),
			slog.String("error", msg),
		)
		m.record(ctx, domain.EventConnectFailed, owner, map[string]any{"error": msg, "silent": silent})
		m.alert(ctx, domain.EventConnectFailed, "Wallet connect failed", msg)
		return fmt.Errorf("session: connect: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	m.update(func(s *domain.SessionState) {
		s.Connected = true
		s.Connecting = false
		s.Owner = owner
		s.ChainID = chainID
		s.Error = ""
		s.Generation++
	})

	if err := m.flags.SetAutoConnect(ctx, true); err != nil {
		m.logger.WarnContext(ctx, "persist auto-connect flag", slog.String("error", err.Error()))
	}
	m.logger.InfoContext(ctx, "wallet connected",
		slog.String("owner", owner),
		slog.String("chain_id", chainID),
	)
	m.record(ctx, domain.EventConnected, owner, map[string]any{"chain_id": chainID})
	return nil
}

func (m *Manager) dial(ctx context.Context) (string, string, domain.ChainClient, error) {
	owner, err := m.signer.Address(ctx)
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: %w", domain.ErrSignerRejected, err)
	}

	faucet := m.module.Faucet(m.cfg.FaucetURL)
	wallet, err := faucet.CreateWallet(ctx)
	if err != nil {
		return owner, "", nil, err
	}
	chainID, err := faucet.ClaimChain(ctx, wallet, owner)
	if err != nil {
		return owner, "", nil, err
	}
	client, err := m.module.Client(ctx, wallet, m.signer, m.cfg.SkipInbox)
	if err != nil {
		return owner, chainID, nil, err
	}
	return owner, chainID, client, nil
}

// Disconnect drops the chain client and clears the auto-reconnect flag.
// Readiness is unaffected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	prev := m.Snapshot()
	if client != nil {
		if err := client.Close(); err != nil {
			m.logger.WarnContext(ctx, "close chain client", slog.String("error", err.Error()))
		}
	}
	m.update(func(s *domain.SessionState) {
		s.Connected = false
		s.Connecting = false
		s.Owner = ""
		s.ChainID = ""
		s.Error = ""
		if prev.Connected {
			s.Generation++
		}
	})

	if err := m.flags.SetAutoConnect(ctx, false); err != nil {
		return fmt.Errorf("session: disconnect: %w", err)
	}
	if prev.Connected {
		m.logger.InfoContext(ctx, "wallet disconnected", slog.String("owner", prev.Owner))
		m.record(ctx, domain.EventDisconnected, prev.Owner, nil)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Client returns the live chain client together with the state it belongs
// to. It fails with ErrNotConnected when no wallet is connected.
func (m *Manager) Client() (domain.ChainClient, domain.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Fatal {
		return nil, m.state, domain.ErrChainUnavailable
	}
	if !m.state.Connected || m.client == nil {
		return nil, m.state, domain.ErrNotConnected
	}
	return m.client, m.state, nil
}

// Watch registers fn to be called with every new state. fn runs on the
// goroutine that changed the state and must not block. The returned func
// removes the watcher.
func (m *Manager) Watch(fn func(domain.SessionState)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *Manager) update(mutate func(*domain.SessionState)) {
	m.mu.Lock()
	mutate(&m.state)
	m.state.UpdatedAt = time.Now().UTC()
	snap := m.state
	fns := make([]func(domain.SessionState), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *Manager) record(ctx context.Context, event, owner string, detail map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(ctx, event, owner, detail); err != nil {
		m.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) alert(ctx context.Context, event, title, message string) {
	if m.alerts == nil {
		return
	}
	if err := m.alerts.Notify(ctx, event, title, message); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.WarnContext(ctx, "operator alert failed", slog.String("error", err.Error()))
	}
}
