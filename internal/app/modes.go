package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/truemarket/internal/chat"
	"github.com/alanyoungcy/truemarket/internal/contract"
	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
	"github.com/alanyoungcy/truemarket/internal/leaderboard"
	"github.com/alanyoungcy/truemarket/internal/market"
	"github.com/alanyoungcy/truemarket/internal/server"
	"github.com/alanyoungcy/truemarket/internal/server/handler"
	"github.com/alanyoungcy/truemarket/internal/server/middleware"
	"github.com/alanyoungcy/truemarket/internal/server/ws"
	"github.com/alanyoungcy/truemarket/internal/session"
	"github.com/alanyoungcy/truemarket/internal/view"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// core holds what every run mode needs: the session, its notification
// fan-out and the application proxies.
type core struct {
	session *session.Manager
	fanout  *feed.Fanout
	trail   domain.AuditStore
	token   *contract.Token
	market  *contract.Market
	counter *contract.Counter
}

func (a *App) newCore(deps *Dependencies) *core {
	audit := newTrail(deps.AuditStore, deps.Notifier, a.logger)

	opts := []session.Option{session.WithAlerter(deps.Notifier)}
	if deps.AuditStore != nil {
		opts = append(opts, session.WithAudit(deps.AuditStore))
	}
	sess := session.New(deps.Module, deps.Signer, deps.Flags, session.Config{
		FaucetURL: a.cfg.Linera.FaucetURL,
		SkipInbox: a.cfg.Linera.SkipInbox,
	}, a.logger, opts...)

	c := &core{
		session: sess,
		fanout:  feed.NewFanout(sess, a.logger, feed.WithBus(deps.SignalBus)),
		trail:   audit,
		token:   contract.NewToken(a.cfg.Apps.TokenAppID, sess),
		market:  contract.NewMarket(a.cfg.Apps.MarketAppID, a.cfg.Apps.TokenAppID, sess),
	}
	if a.cfg.Apps.CounterAppID != "" {
		c.counter = contract.NewCounter(a.cfg.Apps.CounterAppID, sess)
	}
	return c
}

// initialize loads the chain module. A load failure leaves the session in
// its fatal state; the API keeps serving and reports it.
func (a *App) initialize(ctx context.Context, c *core) {
	if err := c.session.Initialize(ctx); err != nil {
		a.logger.ErrorContext(ctx, "chain client unavailable", slog.String("error", err.Error()))
	}
}

// newCatalog returns the embedded catalog plus, for the s3 source, a loader
// that keeps it current.
func (a *App) newCatalog(deps *Dependencies) (*market.Catalog, *market.Loader, error) {
	catalog, err := market.Default()
	if err != nil {
		return nil, nil, err
	}
	if !strings.EqualFold(a.cfg.Catalog.Source, "s3") || deps.BlobReader == nil {
		return catalog, nil, nil
	}
	loader := market.NewLoader(deps.BlobReader, a.cfg.Catalog.Key, catalog, a.cfg.Catalog.RefreshInterval.Duration, a.logger)
	return catalog, loader, nil
}

// newAssistant builds the chat assistant. Without an API key, or if the
// client cannot be created, the assistant is disabled.
func (a *App) newAssistant(ctx context.Context, markets chat.MarketSource) *chat.Assistant {
	var gen chat.Generator
	if a.cfg.Chat.APIKey != "" {
		g, err := chat.NewGemini(ctx, a.cfg.Chat.APIKey, a.cfg.Chat.Model)
		if err != nil {
			a.logger.WarnContext(ctx, "chat assistant disabled", slog.String("error", err.Error()))
		} else {
			gen = g
		}
	}
	return chat.NewAssistant(gen, markets, a.logger)
}

// ServerMode runs the session, the notification fan-out, every view and the
// HTTP + WebSocket API until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.newCore(deps)

	catalog, loader, err := a.newCatalog(deps)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	board, err := leaderboard.Default()
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}
	trust, err := middleware.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("server mode: %w", err)
	}

	if loader != nil {
		g.Go(func() error { return ignoreCanceled(loader.Run(ctx)) })
	}
	g.Go(func() error { return ignoreCanceled(c.fanout.Run(ctx)) })

	// Session and portfolio changes are pushed to WebSocket clients.
	sessionPub := newPublisher[domain.SessionState](deps.SignalBus, domain.ChannelSession, a.logger)
	stopWatch := c.session.Watch(sessionPub.Offer)
	defer stopWatch()
	g.Go(func() error { return sessionPub.Run(ctx) })

	portfolioPub := newPublisher[view.ProfileState](deps.SignalBus, domain.ChannelPortfolio, a.logger)
	g.Go(func() error { return portfolioPub.Run(ctx) })

	// Views live as long as the server.
	faucet := view.NewFaucet(c.session, c.token, c.fanout, c.trail, a.logger)
	faucet.Mount(ctx)
	profile := view.NewProfile(c.session, c.token, deps.TradeStore, c.fanout, a.logger)
	profile.OnChange(portfolioPub.Offer)
	profile.Mount(ctx)
	tickets := view.NewTicketBook(ctx, view.TicketDeps{
		Session: c.session,
		Token:   c.token,
		Market:  c.market,
		Notes:   c.fanout,
		Trades:  deps.TradeStore,
		Audit:   c.trail,
		Logger:  a.logger,
	})
	defer tickets.Close()

	var counter handler.Counter
	if c.counter != nil {
		cv := view.NewCounter(c.session, c.counter, c.fanout, a.logger)
		cv.Mount(ctx)
		counter = cv
	}

	hub := ws.NewHub(deps.SignalBus, c.session, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error { return ignoreCanceled(hub.Run(ctx)) })

	health := handler.NewHealthHandler(c.session, a.cfg.Mode, a.logger)
	for name, check := range deps.Checks {
		health.AddCheck(name, check)
	}
	handlers := server.Handlers{
		Health:      health,
		Session:     handler.NewSessionHandler(c.session, a.logger),
		Markets:     handler.NewMarketHandler(catalog, c.market, c.session, a.logger),
		Tickets:     handler.NewTicketHandler(catalog, handler.Tickets{Book: tickets}, a.logger),
		Faucet:      handler.NewFaucetHandler(faucet, a.logger),
		Profile:     handler.NewProfileHandler(profile, deps.TradeStore, c.session, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(board, a.logger),
		Counter:     handler.NewCounterHandler(counter, a.logger),
		Chat:        handler.NewChatHandler(a.newAssistant(ctx, catalog), a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		MintLimit:      a.cfg.Server.MintLimit,
		MintWindow:     a.cfg.Server.MintWindow.Duration,
		TrustedProxies: trust,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Initialize after the fan-out is watching so an auto-reconnect opens
	// the notification stream.
	g.Go(func() error {
		a.initialize(ctx, c)
		return nil
	})

	return g.Wait()
}

// WatchMode connects the wallet headlessly and logs portfolio refreshes
// driven by chain notifications until ctx is cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.newCore(deps)

	g.Go(func() error { return ignoreCanceled(c.fanout.Run(ctx)) })

	profile := view.NewProfile(c.session, c.token, deps.TradeStore, c.fanout, a.logger)
	profile.OnChange(func(s view.ProfileState) {
		if s.Loading || !s.Connected {
			return
		}
		a.logger.InfoContext(ctx, "portfolio refreshed",
			slog.String("owner", s.ShortOwner),
			slog.String("balance", s.Balance.Human()),
			slog.Int64("trades", s.TradeCount),
		)
	})

	g.Go(func() error {
		if err := c.session.Initialize(ctx); err != nil {
			return fmt.Errorf("watch mode: %w", err)
		}
		if !c.session.Snapshot().Connected {
			if err := c.session.Connect(ctx, false); err != nil {
				return fmt.Errorf("watch mode: %w", err)
			}
		}
		profile.Mount(ctx)
		<-ctx.Done()
		profile.Unmount()
		return nil
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
