package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists executed trades.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeRecord) error
	ListByOwner(ctx context.Context, owner string, opts ListOpts) ([]TradeRecord, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Owner     string         `json:"owner,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event, owner string, detail map[string]any) error
	List(ctx context.Context, owner string, opts ListOpts) ([]AuditEntry, error)
}

// FlagStore persists the "auto-reconnect on load" flag.
type FlagStore interface {
	AutoConnect(ctx context.Context) (bool, error)
	SetAutoConnect(ctx context.Context, on bool) error
}
