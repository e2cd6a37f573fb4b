package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/metrics"
	"github.com/alanyoungcy/truemarket/internal/server/handler"
	"github.com/alanyoungcy/truemarket/internal/server/middleware"
	"github.com/alanyoungcy/truemarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	MintLimit   int
	MintWindow  time.Duration
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies middleware.ProxyTrust
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Session     *handler.SessionHandler
	Markets     *handler.MarketHandler
	Tickets     *handler.TicketHandler
	Faucet      *handler.FaucetHandler
	Profile     *handler.ProfileHandler
	Leaderboard *handler.LeaderboardHandler
	Counter     *handler.CounterHandler
	Chat        *handler.ChatHandler
}

// Server is the HTTP + WebSocket API of the gateway.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter guards the mint route; wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	// Wallet session.
	mux.HandleFunc("GET /api/session", handlers.Session.Get)
	mux.HandleFunc("POST /api/session/connect", handlers.Session.Connect)
	mux.HandleFunc("POST /api/session/disconnect", handlers.Session.Disconnect)

	// Markets and trading.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/ticket", handlers.Tickets.Get)
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Tickets.Buy)

	// Faucet.
	mux.HandleFunc("GET /api/faucet", handlers.Faucet.Get)
	mint := http.Handler(http.HandlerFunc(handlers.Faucet.Mint))
	if limiter != nil {
		mint = middleware.RateLimit(limiter, "mint", cfg.MintLimit, cfg.MintWindow, cfg.TrustedProxies, logger)(mint)
	}
	mux.Handle("POST /api/faucet/mint", mint)

	mux.HandleFunc("GET /api/profile", handlers.Profile.Get)
	mux.HandleFunc("GET /api/profile/history", handlers.Profile.History)
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.Get)
	mux.HandleFunc("GET /api/counter", handlers.Counter.Get)
	mux.HandleFunc("POST /api/counter/increment", handlers.Counter.Increment)
	mux.HandleFunc("POST /api/chat", handlers.Chat.Reply)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Instrumentation sits right above the mux so it sees the matched pattern.
	var h http.Handler = metrics.InstrumentHandler(mux)
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server: starting", slog.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
