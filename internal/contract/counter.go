package contract

import (
	"context"
	"fmt"
)

// Counter is a proxy for the counter test application.
type Counter struct {
	*Proxy
}

func NewCounter(appID string, session SessionSource) *Counter {
	return &Counter{Proxy: NewProxy(appID, session)}
}

// Value returns the current count.
func (c *Counter) Value(ctx context.Context) (uint64, error) {
	resp, err := c.Query(ctx, `query { value }`)
	if err != nil {
		return 0, err
	}
	return resp.Data("value").Uint(), nil
}

// Increment adds by to the count.
func (c *Counter) Increment(ctx context.Context, by uint64) error {
	_, err := c.Mutate(ctx, fmt.Sprintf(`increment(value: %d)`, by))
	return err
}
