package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/notify"
)

// trail is the AuditStore handed to the views: it writes to the database
// when one is configured and forwards trade events to the notifier. Session
// events are alerted by the session manager itself.
type trail struct {
	store    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

func newTrail(store domain.AuditStore, notifier *notify.Notifier, logger *slog.Logger) *trail {
	return &trail{store: store, notifier: notifier, logger: logger.With(slog.String("component", "trail"))}
}

func (t *trail) Log(ctx context.Context, event, owner string, detail map[string]any) error {
	if t.notifier != nil {
		if title, ok := alertTitles[event]; ok {
			if err := t.notifier.Notify(ctx, event, title, describe(owner, detail)); err != nil {
				t.logger.WarnContext(ctx, "alert failed",
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if t.store == nil {
		return nil
	}
	return t.store.Log(ctx, event, owner, detail)
}

func (t *trail) List(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if t.store == nil {
		return nil, nil
	}
	return t.store.List(ctx, owner, opts)
}

var alertTitles = map[string]string{
	domain.EventTradeExecuted: "Trade executed",
	domain.EventTradeFailed:   "Trade failed",
	domain.EventTokensMinted:  "Tokens minted",
}

// describe renders detail as sorted key=value pairs.
func describe(owner string, detail map[string]any) string {
	parts := []string{"owner=" + owner}
	for _, k := range sortedKeys(detail) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var _ domain.AuditStore = (*trail)(nil)
