package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
)

type staticSession domain.SessionState

func (s staticSession) Snapshot() domain.SessionState { return domain.SessionState(s) }

func startHub(t *testing.T, origins []string) (*feed.LocalBus, *httptest.Server) {
	t.Helper()
	bus := feed.NewLocalBus(8)
	hub := NewHub(bus, staticSession{Ready: true, Connected: true, Owner: "0xabc"}, origins,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	<-hub.Ready()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return bus, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_SnapshotThenRelay(t *testing.T) {
	bus, srv := startHub(t, nil)
	conn := dial(t, srv)

	env := readEnvelope(t, conn)
	assert.Equal(t, domain.ChannelSession, env.Channel)
	assert.Contains(t, string(env.Payload), `"owner":"0xabc"`)

	require.NoError(t, feed.PublishJSON(context.Background(), bus, domain.ChannelNotifications,
		domain.Notification{ChainID: "c1", Kind: domain.NotificationNewBlock, Height: 7}))
	env = readEnvelope(t, conn)
	assert.Equal(t, domain.ChannelNotifications, env.Channel)
	assert.JSONEq(t, `{"chain_id":"c1","kind":"NewBlock","height":7}`, string(env.Payload))
}

func TestClient_HandleSubscription(t *testing.T) {
	c := &client{subs: map[string]bool{}}
	for _, ch := range Channels {
		c.subs[ch] = true
	}

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelNotifications}})
	assert.False(t, c.isSubscribed(domain.ChannelNotifications))
	assert.True(t, c.isSubscribed(domain.ChannelPortfolio))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelNotifications}})
	assert.True(t, c.isSubscribed(domain.ChannelNotifications))
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"http://localhost:5173"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))
}
