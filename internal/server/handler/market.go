package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/market"
)

// MarketCatalog defines the catalog reads the market handler requires. It is
// declared locally so the handler package does not depend on the concrete
// catalog implementation.
type MarketCatalog interface {
	Get(id uint64) (domain.Market, error)
	List(f market.Filter) []domain.Market
	Len() int
}

// OnChainMarkets reads the market application, when connected.
type OnChainMarkets interface {
	Market(ctx context.Context, id uint64) (domain.OnChainMarket, error)
}

// MarketHandler serves market browsing.
type MarketHandler struct {
	catalog MarketCatalog
	chain   OnChainMarkets
	session SessionReader
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. chain may be nil.
func NewMarketHandler(catalog MarketCatalog, chain OnChainMarkets, session SessionReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		catalog: catalog,
		chain:   chain,
		session: session,
		logger:  logHandler(logger, "market"),
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
}

// ListMarkets returns the filtered, sorted catalog.
// GET /api/markets?category=Crypto&sort=volume&q=eth
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy, err := market.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	markets := h.catalog.List(market.Filter{
		Category: domain.MarketCategory(q.Get("category")),
		Query:    q.Get("q"),
		Sort:     sortBy,
	})
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Count:   len(markets),
		Total:   h.catalog.Len(),
	})
}

type marketResponse struct {
	Market  domain.Market         `json:"market"`
	Details domain.MarketDetails  `json:"details"`
	OnChain *domain.OnChainMarket `json:"on_chain,omitempty"`
}

// GetMarket returns one market with its parsed details, plus the market
// application's view of it when the wallet is connected.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	m, err := h.catalog.Get(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	resp := marketResponse{Market: m, Details: market.ParseDetails(m)}
	if h.chain != nil && h.session.Snapshot().Trading() {
		oc, err := h.chain.Market(r.Context(), id)
		switch {
		case err == nil:
			resp.OnChain = &oc
		case errors.Is(err, domain.ErrNotFound):
		default:
			h.logger.WarnContext(r.Context(), "on-chain market lookup failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
