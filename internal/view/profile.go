package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
)

// historyLimit caps the trades shown on the profile.
const historyLimit = 20

// ProfileState is what the profile page shows.
type ProfileState struct {
	Connected    bool                 `json:"connected"`
	Owner        string               `json:"owner,omitempty"`
	ShortOwner   string               `json:"short_owner,omitempty"`
	ChainID      string               `json:"chain_id,omitempty"`
	Balance      domain.Amount        `json:"balance"`
	TradeCount   int64                `json:"trade_count"`
	RecentTrades []domain.TradeRecord `json:"recent_trades"`
	Loading      bool                 `json:"loading"`
}

type profileData struct {
	owner   string
	balance domain.Amount
	count   int64
	trades  []domain.TradeRecord
}

// Profile shows the connected owner's balance and trade history.
type Profile struct {
	lifecycle
	session Session
	token   TokenService
	trades  domain.TradeStore
	notes   Notifications
	logger  *slog.Logger

	// onChange, if set, sees every committed state.
	onChange func(ProfileState)

	mu        sync.Mutex
	state     ProfileState
	refresher *feed.Refresher[profileData]
}

// NewProfile creates an unmounted profile view. trades may be nil.
func NewProfile(session Session, token TokenService, trades domain.TradeStore, notes Notifications, logger *slog.Logger) *Profile {
	p := &Profile{
		session: session,
		token:   token,
		trades:  trades,
		notes:   notes,
		logger:  logger.With(slog.String("component", "profile_view")),
	}
	p.refresher = feed.NewRefresher(p.fetch, p.commit)
	return p
}

// OnChange registers fn to observe committed states. Call before Mount.
func (p *Profile) OnChange(fn func(ProfileState)) { p.onChange = fn }

// Mount starts the view and follows new blocks.
func (p *Profile) Mount(parent context.Context) {
	ctx, fresh := p.mount(parent)
	if !fresh {
		return
	}
	ch, stop := p.notes.Subscribe()
	go func() {
		defer stop()
		p.refresher.Follow(ctx, ch, p.logRefreshErr)
	}()
	go func() { p.logRefreshErr(p.Refresh(ctx)) }()
}

// State returns a copy of the current state.
func (p *Profile) State() ProfileState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.RecentTrades = append([]domain.TradeRecord(nil), p.state.RecentTrades...)
	return s
}

// Refresh re-reads balance and history.
func (p *Profile) Refresh(ctx context.Context) error {
	sctx, cancel, err := p.scope(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	s := p.session.Snapshot()
	if !s.Trading() {
		p.mu.Lock()
		p.state = ProfileState{}
		p.mu.Unlock()
		return nil
	}

	p.mu.Lock()
	p.state.Connected = true
	p.state.Owner = s.Owner
	p.state.ShortOwner = ShortAddress(s.Owner)
	p.state.ChainID = s.ChainID
	p.state.Loading = true
	p.mu.Unlock()

	if err := p.refresher.Refresh(sctx); err != nil {
		p.mu.Lock()
		p.state.Loading = false
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *Profile) fetch(ctx context.Context) (profileData, error) {
	s := p.session.Snapshot()
	if !s.Trading() {
		return profileData{}, fmt.Errorf("view: profile: %w", domain.ErrNotConnected)
	}

	d := profileData{owner: s.Owner}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := p.token.Balance(gctx, s.Owner)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		d.balance = bal
		return nil
	})
	if p.trades != nil {
		g.Go(func() error {
			n, err := p.trades.CountByOwner(gctx, s.Owner)
			if err != nil {
				return fmt.Errorf("count trades: %w", err)
			}
			d.count = n
			return nil
		})
		g.Go(func() error {
			trades, err := p.trades.ListByOwner(gctx, s.Owner, domain.ListOpts{Limit: historyLimit})
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			d.trades = trades
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return profileData{}, err
	}
	return d, nil
}

func (p *Profile) commit(d profileData) {
	p.mu.Lock()
	if p.state.Owner != d.owner {
		p.mu.Unlock()
		return
	}
	p.state.Balance = d.balance
	p.state.TradeCount = d.count
	p.state.RecentTrades = d.trades
	p.state.Loading = false
	snap := p.state
	p.mu.Unlock()

	if p.onChange != nil {
		p.onChange(snap)
	}
}

func (p *Profile) logRefreshErr(err error) {
	if err == nil || errors.Is(err, domain.ErrViewUnmounted) || errors.Is(err, context.Canceled) {
		return
	}
	p.logger.Warn("profile refresh failed", slog.String("error", err.Error()))
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
