package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// LocalBus is an in-process domain.SignalBus for single-replica deployments
// without Redis. Channels match exactly; a full subscriber misses the message.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan []byte
	nextID int
	buffer int
}

// NewLocalBus creates a LocalBus with per-subscriber buffers of size buffer.
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalBus{subs: make(map[string]map[int]chan []byte), buffer: buffer}
}

// Publish delivers payload to every current subscriber of channel.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. It is closed
// once ctx is done.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	b.subs[channel][id] = ch
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[channel], id)
		close(ch)
	})
	return ch, nil
}

// PublishJSON marshals v and publishes it on channel.
func PublishJSON(ctx context.Context, bus domain.SignalBus, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("feed: marshal %s: %w", channel, err)
	}
	return bus.Publish(ctx, channel, payload)
}

var _ domain.SignalBus = (*LocalBus)(nil)
