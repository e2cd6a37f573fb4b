package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
	"github.com/alanyoungcy/truemarket/internal/metrics"
)

// Ticket status lines.
const (
	BuySucceeded    = "Buy Successful!"
	BuyFailed       = "Transaction failed."
	TokenNotReady   = "Error: Token Contract not ready. Please go to the Faucet page and 'Mint' tokens first to initialize the Token application on your chain."
	SellingDisabled = "Selling Disabled"
)

// TicketState is what the trade card of one market shows.
type TicketState struct {
	MarketID  uint64          `json:"market_id"`
	Connected bool            `json:"connected"`
	Balance   domain.Amount   `json:"balance"`
	Holdings  domain.Holdings `json:"holdings"`
	Loading   bool            `json:"loading"`
	Buying    bool            `json:"buying"`
	Loaded    bool            `json:"loaded"`
	Status    string          `json:"status,omitempty"`
	Failed    bool            `json:"failed"`

	// generation is the session generation the loaded values belong to.
	generation uint64
}

// loadedFor reports whether the state holds values read in session gen.
func (s TicketState) loadedFor(gen uint64) bool {
	return s.Loaded && s.generation == gen
}

type ticketData struct {
	generation uint64
	balance    domain.Amount
	shares     []domain.Share
}

// TicketDeps are the collaborators of a Ticket.
type TicketDeps struct {
	Session Session
	Token   TokenService
	Market  MarketService
	Notes   Notifications
	Trades  domain.TradeStore // optional
	Audit   domain.AuditStore // optional
	Logger  *slog.Logger
}

// Ticket is the trade card for one market: balance, holdings and buy.
type Ticket struct {
	lifecycle
	marketID uint64
	deps     TicketDeps
	logger   *slog.Logger

	mu        sync.Mutex
	state     TicketState
	refresher *feed.Refresher[ticketData]
}

// NewTicket creates an unmounted ticket for marketID.
func NewTicket(marketID uint64, deps TicketDeps) *Ticket {
	t := &Ticket{
		marketID: marketID,
		deps:     deps,
		logger:   deps.Logger.With(slog.String("component", "ticket_view"), slog.Uint64("market_id", marketID)),
		state:    TicketState{MarketID: marketID},
	}
	t.refresher = feed.NewRefresher(t.fetch, func(d ticketData) {
		t.mu.Lock()
		t.state.Balance = d.balance
		t.state.Holdings = domain.SumHoldings(d.shares)
		t.state.Loading = false
		t.state.Loaded = true
		t.state.generation = d.generation
		t.mu.Unlock()
	})
	return t
}

// Mount starts the ticket and follows new blocks.
func (t *Ticket) Mount(parent context.Context) {
	ctx, fresh := t.mount(parent)
	if !fresh {
		return
	}
	ch, stop := t.deps.Notes.Subscribe()
	go func() {
		defer stop()
		t.refresher.Follow(ctx, ch, t.logRefreshErr)
	}()
	go func() { t.logRefreshErr(t.Refresh(ctx)) }()
}

// State returns a copy of the current state.
func (t *Ticket) State() TicketState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Refresh re-reads balance and holdings in parallel.
func (t *Ticket) Refresh(ctx context.Context) error {
	sctx, cancel, err := t.scope(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if !t.deps.Session.Snapshot().Trading() {
		t.mu.Lock()
		t.state = TicketState{MarketID: t.marketID, Status: t.state.Status, Failed: t.state.Failed}
		t.mu.Unlock()
		return nil
	}

	t.mu.Lock()
	t.state.Connected = true
	t.state.Loading = true
	t.mu.Unlock()

	if err := t.refresher.Refresh(sctx); err != nil {
		t.mu.Lock()
		t.state.Loading = false
		t.mu.Unlock()
		return err
	}
	return nil
}

func (t *Ticket) fetch(ctx context.Context) (ticketData, error) {
	s := t.deps.Session.Snapshot()
	if !s.Trading() {
		return ticketData{}, fmt.Errorf("view: ticket: %w", domain.ErrNotConnected)
	}

	d := ticketData{generation: s.Generation}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := t.deps.Token.Balance(gctx, s.Owner)
		if err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		d.balance = bal
		return nil
	})
	g.Go(func() error {
		shares, err := t.deps.Market.MyShares(gctx, t.marketID)
		if err != nil {
			return fmt.Errorf("shares: %w", err)
		}
		d.shares = shares
		return nil
	})
	if err := g.Wait(); err != nil {
		return ticketData{}, err
	}
	return d, nil
}

// Buy validates intent against the current balance and submits it. Only one
// buy may be outstanding per ticket.
func (t *Ticket) Buy(ctx context.Context, intent domain.TradeIntent) (TicketState, error) {
	if intent.Side == domain.TradeSideSell {
		t.mu.Lock()
		t.state.Status = SellingDisabled
		t.mu.Unlock()
		return t.State(), fmt.Errorf("view: buy: %w", domain.ErrSellUnsupported)
	}

	done, err := t.begin()
	if err != nil {
		return t.State(), err
	}
	defer done()

	s := t.deps.Session.Snapshot()
	if !s.Trading() {
		return t.State(), fmt.Errorf("view: buy: %w", domain.ErrNotConnected)
	}
	// Values from an earlier session describe another chain.
	if !t.State().loadedFor(s.Generation) {
		if err := t.Refresh(ctx); err != nil {
			return t.State(), fmt.Errorf("view: buy: load balance: %w", err)
		}
		if !t.State().loadedFor(s.Generation) {
			return t.State(), fmt.Errorf("view: buy: session changed: %w", domain.ErrNotConnected)
		}
	}

	v, err := intent.Validate(t.State().Balance)
	if err != nil {
		return t.State(), fmt.Errorf("view: buy: %w", err)
	}

	sctx, cancel, err := t.scope(ctx)
	if err != nil {
		return t.State(), err
	}
	defer cancel()

	t.mu.Lock()
	t.state.Buying = true
	t.state.Status = ""
	t.state.Failed = false
	t.mu.Unlock()

	buyErr := t.deps.Market.Buy(sctx, t.marketID, v.OutcomeID, v.Value, domain.ZeroAmount())
	metrics.CountTrade(buyErr)

	detail := map[string]any{
		"market_id":  t.marketID,
		"outcome_id": v.OutcomeID,
		"value":      v.Value.Human(),
	}
	// An executed buy is on chain even if the caller went away, so its
	// record is written regardless of cancellation.
	if buyErr == nil {
		t.record(context.WithoutCancel(ctx), s, v, detail)
	}
	if sctx.Err() != nil {
		return t.State(), fmt.Errorf("view: buy: %w", domain.ErrViewUnmounted)
	}

	t.mu.Lock()
	t.state.Buying = false
	switch {
	case buyErr == nil:
		t.state.Status = BuySucceeded
	case errors.Is(buyErr, domain.ErrAppNotInitialized):
		t.state.Status = TokenNotReady
		t.state.Failed = true
	default:
		t.state.Status = BuyFailed
		t.state.Failed = true
	}
	t.mu.Unlock()

	if buyErr != nil {
		t.logger.ErrorContext(ctx, "buy failed", slog.String("error", buyErr.Error()))
		detail["error"] = buyErr.Error()
		t.audit(ctx, domain.EventTradeFailed, s.Owner, detail)
		return t.State(), fmt.Errorf("view: buy: %w", buyErr)
	}

	t.logRefreshErr(t.Refresh(ctx))
	return t.State(), nil
}

// record stores the executed trade and its audit entry.
func (t *Ticket) record(ctx context.Context, s domain.SessionState, v domain.ValidatedIntent, detail map[string]any) {
	rec := domain.TradeRecord{
		ID:        uuid.NewString(),
		Owner:     s.Owner,
		ChainID:   s.ChainID,
		MarketID:  t.marketID,
		OutcomeID: v.OutcomeID,
		Side:      v.Side,
		Value:     v.Value,
		CreatedAt: time.Now().UTC(),
	}
	if t.deps.Trades != nil {
		if err := t.deps.Trades.Insert(ctx, rec); err != nil {
			t.logger.WarnContext(ctx, "record trade", slog.String("error", err.Error()))
		}
	}
	detail["trade_id"] = rec.ID
	t.audit(ctx, domain.EventTradeExecuted, s.Owner, detail)
	t.logger.InfoContext(ctx, "buy executed",
		slog.String("trade_id", rec.ID),
		slog.Uint64("outcome_id", uint64(v.OutcomeID)),
		slog.String("value", v.Value.Human()),
	)
}

func (t *Ticket) audit(ctx context.Context, event, owner string, detail map[string]any) {
	if t.deps.Audit == nil {
		return
	}
	if err := t.deps.Audit.Log(ctx, event, owner, detail); err != nil {
		t.logger.WarnContext(ctx, "audit trade", slog.String("error", err.Error()))
	}
}

func (t *Ticket) logRefreshErr(err error) {
	if err == nil || errors.Is(err, domain.ErrViewUnmounted) || errors.Is(err, context.Canceled) {
		return
	}
	t.logger.Warn("ticket refresh failed", slog.String("error", err.Error()))
}

// TicketBook keeps one mounted ticket per market.
type TicketBook struct {
	ctx  context.Context
	deps TicketDeps

	mu      sync.Mutex
	tickets map[uint64]*Ticket
}

// NewTicketBook creates a book whose tickets live as long as ctx.
func NewTicketBook(ctx context.Context, deps TicketDeps) *TicketBook {
	return &TicketBook{ctx: ctx, deps: deps, tickets: make(map[uint64]*Ticket)}
}

// Get returns the mounted ticket for marketID, creating it on first use.
func (b *TicketBook) Get(marketID uint64) *Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tickets[marketID]
	if !ok {
		t = NewTicket(marketID, b.deps)
		b.tickets[marketID] = t
	}
	t.Mount(b.ctx)
	return t
}

// Close unmounts every ticket.
func (b *TicketBook) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.tickets {
		t.Unmount()
		delete(b.tickets, id)
	}
}
