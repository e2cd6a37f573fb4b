package domain

import "time"

// SessionState is an immutable snapshot of the wallet/chain session.
type SessionState struct {
	Ready      bool      `json:"ready"`
	Connected  bool      `json:"connected"`
	Connecting bool      `json:"connecting"`
	Owner      string    `json:"owner,omitempty"`
	ChainID    string    `json:"chain_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Fatal      bool      `json:"fatal"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Trading reports whether views may issue queries against the session.
func (s SessionState) Trading() bool {
	return s.Ready && s.Connected && s.Owner != ""
}

// Session event names recorded in the audit log and sent to operators.
const (
	EventSessionReady     = "session_ready"
	EventSessionInitError = "session_init_failed"
	EventConnected        = "session_connected"
	EventConnectFailed    = "session_connect_failed"
	EventDisconnected     = "session_disconnected"
	EventTokensMinted     = "tokens_minted"
	EventTradeExecuted    = "trade_executed"
	EventTradeFailed      = "trade_failed"
)
