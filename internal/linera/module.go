// Package linera is a client for a Linera node service and faucet. It speaks
// the node's GraphQL API over HTTP and its notification subscription over
// WebSocket.
package linera

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// ModuleConfig configures the node service connection.
type ModuleConfig struct {
	// NodeURL is the node service base URL, e.g. "http://localhost:8080".
	NodeURL string
	// RequestTimeout bounds each HTTP request. Zero means no timeout.
	RequestTimeout time.Duration
	// DecodeResponses makes Application.Query return decoded JSON values
	// instead of raw JSON strings.
	DecodeResponses bool
}

// Module is the loadable chain-client library. Load checks that the node
// service answers; Faucet and Client are usable once Load has succeeded.
type Module struct {
	cfg        ModuleConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// NewModule creates a Module for the node at cfg.NodeURL.
func NewModule(cfg ModuleConfig, logger *slog.Logger) *Module {
	cfg.NodeURL = strings.TrimRight(cfg.NodeURL, "/")
	return &Module{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.With(slog.String("component", "linera")),
	}
}

// Load checks the node service. Subsequent calls after a success are no-ops.
func (m *Module) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return nil
	}

	if _, err := doQuery(ctx, m.httpClient, m.cfg.NodeURL, "query { chains { default } }"); err != nil {
		return fmt.Errorf("linera: load: %w: %w", domain.ErrChainUnavailable, err)
	}
	m.loaded = true
	m.logger.InfoContext(ctx, "node service reachable", slog.String("node", m.cfg.NodeURL))
	return nil
}

// Faucet returns a faucet client for url.
func (m *Module) Faucet(url string) domain.Faucet {
	return &Faucet{url: strings.TrimRight(url, "/"), httpClient: m.httpClient}
}

// Client builds a chain client for wallet. The signer must hold the key for
// the wallet's owner. Unless skipInbox is set, pending inbox messages are
// processed before the client is returned.
func (m *Module) Client(ctx context.Context, wallet *domain.Wallet, signer domain.Signer, skipInbox bool) (domain.ChainClient, error) {
	if wallet == nil || wallet.DefaultChain == "" {
		return nil, fmt.Errorf("linera: client: wallet has no claimed chain")
	}
	ok, err := signer.ContainsKey(ctx, wallet.Owner)
	if err != nil {
		return nil, fmt.Errorf("linera: client: %w: %w", domain.ErrSignerRejected, err)
	}
	if !ok {
		return nil, fmt.Errorf("linera: client: %w: %s", domain.ErrUnknownOwner, wallet.Owner)
	}

	c := &Client{
		module:  m,
		chainID: wallet.DefaultChain,
		owner:   wallet.Owner,
		done:    make(chan struct{}),
	}

	if !skipInbox {
		q := fmt.Sprintf(`mutation { processInbox(chainId: %q) }`, c.chainID)
		if _, err := doQuery(ctx, m.httpClient, m.cfg.NodeURL, q); err != nil {
			return nil, fmt.Errorf("linera: process inbox: %w", err)
		}
	}
	return c, nil
}

var _ domain.ChainModule = (*Module)(nil)
