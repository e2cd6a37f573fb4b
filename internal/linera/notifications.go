package linera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	subprotocol    = "graphql-transport-ws"
	subscriptionID = "1"
)

// wsMessage is a graphql-transport-ws protocol frame.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notifications subscribes to the chain's notification stream. The returned
// channel carries every notification the node pushes for the chain, and is
// closed when ctx is cancelled or the client is closed. Dropped connections
// are re-established with exponential backoff.
func (c *Client) Notifications(ctx context.Context) (<-chan domain.Notification, error) {
	s := &stream{
		wsURL:   wsURL(c.module.cfg.NodeURL),
		chainID: c.chainID,
		out:     make(chan domain.Notification, 64),
		done:    c.done,
		logger:  c.module.logger.With(slog.String("chain_id", c.chainID)),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	go s.run(ctx, conn)
	return s.out, nil
}

type stream struct {
	wsURL   string
	chainID string
	out     chan domain.Notification
	done    <-chan struct{}
	logger  *slog.Logger
}

func wsURL(nodeURL string) string {
	u := nodeURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// dial connects, performs the connection_init handshake and starts the
// subscription.
func (s *stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		Subprotocols:     []string{subprotocol},
	}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("linera/ws: connect: %w", err)
	}

	if err := writeFrame(conn, wsMessage{Type: "connection_init", Payload: json.RawMessage(`{}`)}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("linera/ws: init: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("linera/ws: await ack: %w", err)
		}
		if msg.Type == "connection_ack" {
			break
		}
		if msg.Type == "ping" {
			_ = writeFrame(conn, wsMessage{Type: "pong"})
		}
	}

	query := fmt.Sprintf(`subscription { notifications(chainId: %q) }`, s.chainID)
	payload, _ := json.Marshal(graphqlRequest{Query: query})
	if err := writeFrame(conn, wsMessage{ID: subscriptionID, Type: "subscribe", Payload: payload}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("linera/ws: subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return conn, nil
}

// run pumps frames from conn until the stream ends, reconnecting on error.
func (s *stream) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.out)

	for {
		err := s.readLoop(ctx, conn)
		conn.Close()
		if s.stopped(ctx) {
			return
		}
		s.logger.Warn("notification stream dropped", slog.String("error", err.Error()))

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

func (s *stream) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go pingLoop(conn, stopPing)

	// Unblock ReadMessage when the stream is stopped.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		case <-stopPing:
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrWSDisconnect, err)
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "next":
			n, ok := parseNotification(msg.Payload)
			if !ok {
				continue
			}
			select {
			case s.out <- n:
			case <-ctx.Done():
				return ctx.Err()
			case <-s.done:
				return domain.ErrWSDisconnect
			}
		case "ping":
			if err := writeFrame(conn, wsMessage{Type: "pong"}); err != nil {
				return err
			}
		case "error":
			return fmt.Errorf("subscription error: %s", string(msg.Payload))
		case "complete":
			return fmt.Errorf("%w: subscription completed", domain.ErrWSDisconnect)
		}
	}
}

// reconnect re-dials with exponential backoff. It returns nil once the
// stream is stopped.
func (s *stream) reconnect(ctx context.Context) *websocket.Conn {
	delay := reconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-time.After(delay):
		}

		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		conn, err := s.dial(dialCtx)
		cancel()
		if err == nil {
			s.logger.Info("notification stream reconnected")
			return conn
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// parseNotification decodes the payload of a "next" frame:
//
//	{"data":{"notifications":{"chain_id":"..","reason":{"NewBlock":{"height":3,"hash":".."}}}}}
func parseNotification(payload []byte) (domain.Notification, bool) {
	n := gjson.GetBytes(payload, "data.notifications")
	if !n.Exists() {
		return domain.Notification{}, false
	}

	out := domain.Notification{
		ChainID: n.Get("chain_id").String(),
		Kind:    domain.NotificationUnknown,
	}
	n.Get("reason").ForEach(func(key, value gjson.Result) bool {
		switch kind := domain.NotificationKind(key.String()); kind {
		case domain.NotificationNewBlock, domain.NotificationIncomingBundle, domain.NotificationNewRound:
			out.Kind = kind
		}
		out.Height = value.Get("height").Uint()
		out.Hash = value.Get("hash").String()
		return false
	})
	return out, true
}
