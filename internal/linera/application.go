package linera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/metrics"
)

// Application is a handle to one application on a chain.
type Application struct {
	id         string
	url        string
	httpClient *http.Client
	decode     bool
}

// ID returns the application id.
func (a *Application) ID() string { return a.id }

// Query posts payload, a {"query": ...} envelope, to the application. The
// result is the full GraphQL response, as a JSON string by default or as a
// decoded value when the module was configured with DecodeResponses.
func (a *Application) Query(ctx context.Context, payload string) (any, error) {
	start := time.Now()
	raw, err := post(ctx, a.httpClient, a.url, []byte(payload))
	metrics.ObserveChainQuery(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("linera: query %s: %w", short(a.id), err)
	}
	if !a.decode {
		return string(raw), nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("linera: query %s: %w: %w", short(a.id), domain.ErrMalformedResponse, err)
	}
	return v, nil
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

var _ domain.Application = (*Application)(nil)
