package linera

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Client is a chain client bound to one claimed chain.
type Client struct {
	module  *Module
	chainID string
	owner   string

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// ChainID returns the claimed chain.
func (c *Client) ChainID() string { return c.chainID }

// Owner returns the wallet owner the client was built for.
func (c *Client) Owner() string { return c.owner }

// Application returns a handle to appID on the client's chain.
func (c *Client) Application(_ context.Context, appID string) (domain.Application, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("linera: application %s: %w", appID, domain.ErrChainUnavailable)
	}
	if appID == "" {
		return nil, fmt.Errorf("linera: application: empty id")
	}
	return &Application{
		id:         appID,
		url:        fmt.Sprintf("%s/chains/%s/applications/%s", c.module.cfg.NodeURL, c.chainID, appID),
		httpClient: c.module.httpClient,
		decode:     c.module.cfg.DecodeResponses,
	}, nil
}

// Close releases the client and ends any notification streams.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

var _ domain.ChainClient = (*Client)(nil)
