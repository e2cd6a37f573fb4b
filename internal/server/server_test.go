package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/chat"
	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/leaderboard"
	"github.com/alanyoungcy/truemarket/internal/market"
	"github.com/alanyoungcy/truemarket/internal/server/handler"
	"github.com/alanyoungcy/truemarket/internal/server/middleware"
	"github.com/alanyoungcy/truemarket/internal/view"
)

type stubSession struct{ state domain.SessionState }

func (s *stubSession) Snapshot() domain.SessionState       { return s.state }
func (s *stubSession) Connect(context.Context, bool) error { return domain.ErrNotReady }
func (s *stubSession) Disconnect(context.Context) error    { return nil }

type stubFaucet struct{ mints int }

func (f *stubFaucet) Refresh(context.Context) error { return nil }
func (f *stubFaucet) State() view.FaucetState       { return view.FaucetState{} }

func (f *stubFaucet) Mint(context.Context) (view.FaucetState, error) {
	f.mints++
	return view.FaucetState{Status: "minted"}, nil
}

func newTestServer(t *testing.T, apiKey string) (*Server, *stubFaucet) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := &stubSession{state: domain.SessionState{Ready: true}}
	catalog, err := market.Default()
	require.NoError(t, err)
	board, err := leaderboard.Default()
	require.NoError(t, err)
	faucet := &stubFaucet{}

	handlers := Handlers{
		Health:      handler.NewHealthHandler(sess, "server", logger),
		Session:     handler.NewSessionHandler(sess, logger),
		Markets:     handler.NewMarketHandler(catalog, nil, sess, logger),
		Tickets:     handler.NewTicketHandler(catalog, nil, logger),
		Faucet:      handler.NewFaucetHandler(faucet, logger),
		Profile:     handler.NewProfileHandler(nil, nil, sess, logger),
		Leaderboard: handler.NewLeaderboardHandler(board, logger),
		Counter:     handler.NewCounterHandler(nil, logger),
		Chat:        handler.NewChatHandler(chat.NewAssistant(nil, catalog, logger), logger),
	}
	cfg := Config{Port: 0, APIKey: apiKey, MintLimit: 2, MintWindow: time.Minute}
	return NewServer(cfg, handlers, nil, middleware.NewLocalLimiter(), logger), faucet
}

func do(s *Server, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:5000"
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Routes(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := do(s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = do(s, http.MethodGet, "/api/markets", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/leaderboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPost, "/api/chat", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(s, http.MethodPost, "/api/session/connect", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := newTestServer(t, "")
	do(s, http.MethodGet, "/api/health", "")

	rec := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `route="/api/health"`))
}

func TestServer_AuthGuardsMutations(t *testing.T) {
	s, faucet := newTestServer(t, "secret")

	rec := do(s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPost, "/api/faucet/mint", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, faucet.mints)

	rec = do(s, http.MethodPost, "/api/faucet/mint", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, faucet.mints)
}

func TestServer_MintRateLimited(t *testing.T) {
	s, faucet := newTestServer(t, "")

	for i := 0; i < 2; i++ {
		rec := do(s, http.MethodPost, "/api/faucet/mint", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(s, http.MethodPost, "/api/faucet/mint", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, faucet.mints)
}
