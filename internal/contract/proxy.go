// Package contract wraps deployed applications behind typed proxies. A proxy
// resolves its application handle lazily through the session and drops it
// whenever the session changes.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// SessionSource hands out the live chain client.
type SessionSource interface {
	Client() (domain.ChainClient, domain.SessionState, error)
}

// Proxy is a handle cache plus query forwarding for one application.
type Proxy struct {
	appID   string
	session SessionSource

	mu     sync.Mutex
	handle domain.Application
	gen    uint64
	owner  string
}

// NewProxy creates a proxy for appID.
func NewProxy(appID string, session SessionSource) *Proxy {
	return &Proxy{appID: appID, session: session}
}

// AppID returns the application id the proxy targets.
func (p *Proxy) AppID() string { return p.appID }

// Resolve returns the application handle, creating it on first use and
// again after every reconnect. It fails with ErrNotConnected while no wallet
// is connected.
func (p *Proxy) Resolve(ctx context.Context) (domain.Application, error) {
	client, state, err := p.session.Client()
	if err != nil {
		p.reset()
		return nil, fmt.Errorf("contract: resolve %s: %w", p.appID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil && p.gen == state.Generation && p.owner == state.Owner {
		return p.handle, nil
	}

	app, err := client.Application(ctx, p.appID)
	if err != nil {
		p.handle = nil
		return nil, classify("resolve "+p.appID, err)
	}
	p.handle, p.gen, p.owner = app, state.Generation, state.Owner
	return app, nil
}

func (p *Proxy) reset() {
	p.mu.Lock()
	p.handle = nil
	p.mu.Unlock()
}

// Query sends a GraphQL query document such as `{ balance(owner: "0x..") }`.
func (p *Proxy) Query(ctx context.Context, query string) (Response, error) {
	return p.do(ctx, "query", query)
}

// Mutate sends a mutation. body is the selection inside `mutation { ... }`.
func (p *Proxy) Mutate(ctx context.Context, body string) (Response, error) {
	return p.do(ctx, "mutate", "mutation { "+body+" }")
}

func (p *Proxy) do(ctx context.Context, op, document string) (Response, error) {
	app, err := p.Resolve(ctx)
	if err != nil {
		return Response{}, err
	}

	raw, err := app.Query(ctx, envelope(document))
	if err != nil {
		return Response{}, classify(op, err)
	}
	resp, err := NormalizeResponse(raw)
	if err != nil {
		return Response{}, err
	}
	if msgs := resp.Errors(); len(msgs) > 0 {
		return resp, classify(op, errors.New(strings.Join(msgs, "; ")))
	}
	return resp, nil
}

func envelope(document string) string {
	b, _ := json.Marshal(struct {
		Query string `json:"query"`
	}{document})
	return string(b)
}
