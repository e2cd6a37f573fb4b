// Package market holds the catalog of display markets: the embedded default
// set, filtering and sorting for the browser, and the market data blob
// format.
package market

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

//go:embed markets.json
var defaultMarkets []byte

// Catalog is an in-memory, replaceable set of markets.
type Catalog struct {
	mu      sync.RWMutex
	markets []domain.Market
	byID    map[uint64]int
}

// NewCatalog builds a catalog. Market ids must be unique.
func NewCatalog(markets []domain.Market) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(markets); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	markets, err := Decode(bytes.NewReader(defaultMarkets))
	if err != nil {
		return nil, fmt.Errorf("market: embedded catalog: %w", err)
	}
	return NewCatalog(markets)
}

// Decode reads a JSON array of markets.
func Decode(r io.Reader) ([]domain.Market, error) {
	var markets []domain.Market
	if err := json.NewDecoder(r).Decode(&markets); err != nil {
		return nil, fmt.Errorf("market: decode catalog: %w", err)
	}
	return markets, nil
}

// Replace swaps the catalog contents.
func (c *Catalog) Replace(markets []domain.Market) error {
	byID := make(map[uint64]int, len(markets))
	for i, m := range markets {
		if _, dup := byID[m.ID]; dup {
			return fmt.Errorf("market: duplicate market id %d", m.ID)
		}
		if m.Title == "" {
			return fmt.Errorf("market: market %d has no title", m.ID)
		}
		byID[m.ID] = i
	}
	cp := append([]domain.Market(nil), markets...)

	c.mu.Lock()
	c.markets = cp
	c.byID = byID
	c.mu.Unlock()
	return nil
}

// Get returns the market with id.
func (c *Catalog) Get(id uint64) (domain.Market, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("market %d: %w", id, domain.ErrNotFound)
	}
	return c.markets[i], nil
}

// All returns every market in catalog order.
func (c *Catalog) All() []domain.Market {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Market(nil), c.markets...)
}

// Len returns the number of markets.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markets)
}

// List applies f to the catalog.
func (c *Catalog) List(f Filter) []domain.Market {
	return f.Apply(c.All())
}
