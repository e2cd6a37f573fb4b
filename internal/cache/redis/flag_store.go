package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FlagStore implements domain.FlagStore with a single Redis key. The key
// holds "1" while auto-connect is on and is absent otherwise.
type FlagStore struct {
	rdb *redis.Client
	key string
}

// NewFlagStore creates a FlagStore storing the flag under key.
func NewFlagStore(c *Client, key string) *FlagStore {
	return &FlagStore{rdb: c.Underlying(), key: key}
}

// AutoConnect reports whether the flag is set.
func (f *FlagStore) AutoConnect(ctx context.Context) (bool, error) {
	v, err := f.rdb.Get(ctx, f.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: get flag %s: %w", f.key, err)
	}
	return v == "1", nil
}

// SetAutoConnect stores or clears the flag.
func (f *FlagStore) SetAutoConnect(ctx context.Context, on bool) error {
	var err error
	if on {
		err = f.rdb.Set(ctx, f.key, "1", 0).Err()
	} else {
		err = f.rdb.Del(ctx, f.key).Err()
	}
	if err != nil {
		return fmt.Errorf("redis: set flag %s: %w", f.key, err)
	}
	return nil
}

var _ domain.FlagStore = (*FlagStore)(nil)
