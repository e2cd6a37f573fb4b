package domain

// NotificationKind names the reason a chain notification was emitted.
type NotificationKind string

const (
	NotificationNewBlock       NotificationKind = "NewBlock"
	NotificationIncomingBundle NotificationKind = "NewIncomingBundle"
	NotificationNewRound       NotificationKind = "NewRound"
	NotificationUnknown        NotificationKind = "Unknown"
)

// Notification is a chain event pushed by the client. It carries no state
// values; listeners re-query whatever they display.
type Notification struct {
	ChainID string           `json:"chain_id"`
	Kind    NotificationKind `json:"kind"`
	Height  uint64           `json:"height,omitempty"`
	Hash    string           `json:"hash,omitempty"`
}

// IsNewBlock reports whether the notification announces a committed block.
func (n Notification) IsNewBlock() bool {
	return n.Kind == NotificationNewBlock
}
