package app

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
)

// publisher forwards values to a bus channel from a single goroutine. Offer
// never blocks; a value not yet published is replaced by a newer one.
type publisher[T any] struct {
	bus     domain.SignalBus
	channel string
	pending chan T
	logger  *slog.Logger
}

func newPublisher[T any](bus domain.SignalBus, channel string, logger *slog.Logger) *publisher[T] {
	return &publisher[T]{
		bus:     bus,
		channel: channel,
		pending: make(chan T, 1),
		logger:  logger.With(slog.String("channel", channel)),
	}
}

// Offer queues v, dropping any value still waiting.
func (p *publisher[T]) Offer(v T) {
	for {
		select {
		case p.pending <- v:
			return
		default:
			select {
			case <-p.pending:
			default:
			}
		}
	}
}

// Run publishes queued values until ctx is done.
func (p *publisher[T]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-p.pending:
			if err := feed.PublishJSON(ctx, p.bus, p.channel, v); err != nil {
				p.logger.WarnContext(ctx, "publish failed", slog.String("error", err.Error()))
			}
		}
	}
}
