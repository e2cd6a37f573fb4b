package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/config"
	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
	"github.com/alanyoungcy/truemarket/internal/notify"
	"github.com/alanyoungcy/truemarket/internal/session"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingAudit struct{ events []string }

func (r *recordingAudit) Log(_ context.Context, event, _ string, _ map[string]any) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestNewFlagStore(t *testing.T) {
	fs, err := newFlagStore(config.SessionConfig{FlagStore: "file", FlagPath: filepath.Join(t.TempDir(), "s.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &session.FileFlags{}, fs)

	fs, err = newFlagStore(config.SessionConfig{FlagStore: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryFlags{}, fs)

	_, err = newFlagStore(config.SessionConfig{FlagStore: "redis"}, nil)
	assert.Error(t, err)

	_, err = newFlagStore(config.SessionConfig{FlagStore: "etcd"}, nil)
	assert.Error(t, err)
}

func TestTrail_AlertsTradeEvents(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := &recordingAudit{}
	n := notify.FromConfig(notify.Config{DiscordWebhookURL: srv.URL}, discard())
	tr := newTrail(store, n, discard())
	ctx := context.Background()

	require.NoError(t, tr.Log(ctx, domain.EventTradeExecuted, "0xabc", map[string]any{"market_id": 3, "value": "10"}))
	require.NoError(t, tr.Log(ctx, domain.EventConnected, "0xabc", nil))

	assert.Equal(t, []string{domain.EventTradeExecuted, domain.EventConnected}, store.events)
	assert.Equal(t, int32(1), posts.Load())
}

func TestTrail_WithoutStore(t *testing.T) {
	tr := newTrail(nil, nil, discard())
	require.NoError(t, tr.Log(context.Background(), domain.EventTradeFailed, "0xabc", nil))
	entries, err := tr.List(context.Background(), "0xabc", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDescribe(t *testing.T) {
	got := describe("0xabc", map[string]any{"value": "10", "market_id": 3})
	assert.Equal(t, "owner=0xabc market_id=3 value=10", got)
}

func TestPublisher_CoalescesToLatest(t *testing.T) {
	bus := feed.NewLocalBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(ctx, domain.ChannelSession)
	require.NoError(t, err)

	p := newPublisher[domain.SessionState](bus, domain.ChannelSession, discard())
	p.Offer(domain.SessionState{Generation: 1})
	p.Offer(domain.SessionState{Generation: 2})
	go func() { _ = p.Run(ctx) }()

	select {
	case payload := <-sub:
		var s domain.SessionState
		require.NoError(t, json.Unmarshal(payload, &s))
		assert.Equal(t, uint64(2), s.Generation)
	case <-time.After(2 * time.Second):
		t.Fatal("no publish")
	}
}
