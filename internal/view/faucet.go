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

// Faucet status lines.
const (
	MintSucceeded = "Success! +100 Tokens minted."
	MintFailed    = "Minting failed."
)

// mintAmount is credited per mint.
var mintAmount = domain.MustHumanAmount("100")

// FaucetState is what the faucet page shows.
type FaucetState struct {
	Connected bool          `json:"connected"`
	Owner     string        `json:"owner,omitempty"`
	Balance   domain.Amount `json:"balance"`
	Loading   bool          `json:"loading"`
	Minting   bool          `json:"minting"`
	Status    string        `json:"status,omitempty"`
	Failed    bool          `json:"failed"`
}

// Faucet mints test tokens to the connected owner and shows the balance.
type Faucet struct {
	lifecycle
	session Session
	token   TokenService
	notes   Notifications
	audit   domain.AuditStore
	logger  *slog.Logger

	mu        sync.Mutex
	state     FaucetState
	refresher *feed.Refresher[balanceResult]
}

type balanceResult struct {
	owner   string
	balance domain.Amount
}

// NewFaucet creates an unmounted faucet view. audit may be nil.
func NewFaucet(session Session, token TokenService, notes Notifications, audit domain.AuditStore, logger *slog.Logger) *Faucet {
	f := &Faucet{
		session: session,
		token:   token,
		notes:   notes,
		audit:   audit,
		logger:  logger.With(slog.String("component", "faucet_view")),
	}
	f.refresher = feed.NewRefresher(f.fetch, func(r balanceResult) {
		f.mu.Lock()
		f.state.Owner = r.owner
		f.state.Balance = r.balance
		f.state.Loading = false
		f.mu.Unlock()
	})
	return f
}

// Mount starts the view and follows new blocks until parent ends or Unmount.
func (f *Faucet) Mount(parent context.Context) {
	ctx, fresh := f.mount(parent)
	if !fresh {
		return
	}
	ch, stop := f.notes.Subscribe()
	go func() {
		defer stop()
		f.refresher.Follow(ctx, ch, f.logRefreshErr)
	}()
	go func() { f.logRefreshErr(f.Refresh(ctx)) }()
}

// State returns a copy of the current state.
func (f *Faucet) State() FaucetState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Refresh re-reads the balance.
func (f *Faucet) Refresh(ctx context.Context) error {
	sctx, cancel, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	s := f.session.Snapshot()
	if !s.Trading() {
		f.mu.Lock()
		f.state = FaucetState{Status: f.state.Status, Failed: f.state.Failed}
		f.mu.Unlock()
		return nil
	}

	f.mu.Lock()
	f.state.Connected = true
	f.state.Loading = true
	f.mu.Unlock()

	if err := f.refresher.Refresh(sctx); err != nil {
		f.mu.Lock()
		f.state.Loading = false
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *Faucet) fetch(ctx context.Context) (balanceResult, error) {
	s := f.session.Snapshot()
	if !s.Trading() {
		return balanceResult{}, fmt.Errorf("view: faucet: %w", domain.ErrNotConnected)
	}
	bal, err := f.token.Balance(ctx, s.Owner)
	if err != nil {
		return balanceResult{}, err
	}
	return balanceResult{owner: s.Owner, balance: bal}, nil
}

// Mint credits 100 tokens to the connected owner. Only one mint may be
// outstanding at a time.
func (f *Faucet) Mint(ctx context.Context) (FaucetState, error) {
	done, err := f.begin()
	if err != nil {
		return f.State(), err
	}
	defer done()

	s := f.session.Snapshot()
	if !s.Trading() {
		return f.State(), fmt.Errorf("view: mint: %w", domain.ErrNotConnected)
	}
	sctx, cancel, err := f.scope(ctx)
	if err != nil {
		return f.State(), err
	}
	defer cancel()

	f.mu.Lock()
	f.state.Minting = true
	f.state.Status = ""
	f.state.Failed = false
	f.mu.Unlock()

	mintErr := f.token.Mint(sctx, s.Owner, mintAmount)
	if sctx.Err() != nil {
		return f.State(), fmt.Errorf("view: mint: %w", domain.ErrViewUnmounted)
	}

	f.mu.Lock()
	f.state.Minting = false
	if mintErr != nil {
		f.state.Status = MintFailed
		f.state.Failed = true
	} else {
		f.state.Status = MintSucceeded
	}
	f.mu.Unlock()

	if mintErr != nil {
		f.logger.ErrorContext(ctx, "mint failed", slog.String("owner", s.Owner), slog.String("error", mintErr.Error()))
		return f.State(), fmt.Errorf("view: mint: %w", mintErr)
	}

	f.logger.InfoContext(ctx, "tokens minted", slog.String("owner", s.Owner), slog.String("amount", mintAmount.Human()))
	if f.audit != nil {
		if err := f.audit.Log(ctx, domain.EventTokensMinted, s.Owner, map[string]any{"amount": mintAmount.Human()}); err != nil {
			f.logger.WarnContext(ctx, "audit mint", slog.String("error", err.Error()))
		}
	}
	f.logRefreshErr(f.Refresh(ctx))
	return f.State(), nil
}

func (f *Faucet) logRefreshErr(err error) {
	if err == nil || errors.Is(err, domain.ErrViewUnmounted) || errors.Is(err, context.Canceled) {
		return
	}
	f.logger.Warn("balance refresh failed", slog.String("error", err.Error()))
}
