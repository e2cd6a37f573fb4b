package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Loader refreshes a Catalog from an object in blob storage.
type Loader struct {
	blob     domain.BlobReader
	key      string
	catalog  *Catalog
	interval time.Duration
	logger   *slog.Logger
}

// NewLoader creates a Loader reading key. interval <= 0 disables polling
// in Run.
func NewLoader(blob domain.BlobReader, key string, catalog *Catalog, interval time.Duration, logger *slog.Logger) *Loader {
	return &Loader{
		blob:     blob,
		key:      key,
		catalog:  catalog,
		interval: interval,
		logger:   logger.With(slog.String("component", "catalog_loader")),
	}
}

// Load replaces the catalog with the object's contents. A missing object
// leaves the catalog unchanged.
func (l *Loader) Load(ctx context.Context) error {
	ok, err := l.blob.Exists(ctx, l.key)
	if err != nil {
		return fmt.Errorf("market: loader: stat %s: %w", l.key, err)
	}
	if !ok {
		l.logger.WarnContext(ctx, "catalog object missing, keeping current catalog", slog.String("key", l.key))
		return nil
	}

	rc, err := l.blob.Get(ctx, l.key)
	if err != nil {
		return fmt.Errorf("market: loader: get %s: %w", l.key, err)
	}
	defer rc.Close()

	markets, err := Decode(rc)
	if err != nil {
		return err
	}
	if err := l.catalog.Replace(markets); err != nil {
		return fmt.Errorf("market: loader: %w", err)
	}
	l.logger.InfoContext(ctx, "catalog loaded",
		slog.String("key", l.key),
		slog.Int("markets", len(markets)),
	)
	return nil
}

// Run loads once, then reloads every interval until ctx is done.
func (l *Loader) Run(ctx context.Context) error {
	if err := l.Load(ctx); err != nil {
		l.logger.ErrorContext(ctx, "catalog load failed", slog.String("error", err.Error()))
	}
	if l.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Load(ctx); err != nil {
				l.logger.ErrorContext(ctx, "catalog reload failed", slog.String("error", err.Error()))
			}
		}
	}
}
