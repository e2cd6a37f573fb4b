package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

func TestLocalBus_PublishSubscribe(t *testing.T) {
	bus := NewLocalBus(4)
	ctx, cancel := context.WithCancel(context.Background())

	a, err := bus.Subscribe(ctx, domain.ChannelSession)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, domain.ChannelSession)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, domain.ChannelPortfolio)
	require.NoError(t, err)

	require.NoError(t, PublishJSON(ctx, bus, domain.ChannelSession, domain.SessionState{Ready: true}))
	for _, ch := range []<-chan []byte{a, b} {
		select {
		case got := <-ch:
			assert.Contains(t, string(got), `"ready":true`)
		case <-time.After(time.Second):
			t.Fatal("no message")
		}
	}
	assert.Empty(t, other)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-a
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestLocalBus_FullSubscriberDoesNotBlock(t *testing.T) {
	bus := NewLocalBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "c", []byte("1")))
	require.NoError(t, bus.Publish(ctx, "c", []byte("2")))
	assert.Equal(t, []byte("1"), <-ch)
}
