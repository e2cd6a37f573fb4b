package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/view"
)

// Ticket is one market's trade ticket view.
type Ticket interface {
	Refresh(ctx context.Context) error
	State() view.TicketState
	Buy(ctx context.Context, intent domain.TradeIntent) (view.TicketState, error)
}

// TicketBook hands out the ticket for a market.
type TicketBook interface {
	Ticket(marketID uint64) Ticket
}

// TicketHandler serves the trade ticket.
type TicketHandler struct {
	catalog MarketCatalog
	tickets TicketBook
	logger  *slog.Logger
}

// NewTicketHandler creates a TicketHandler.
func NewTicketHandler(catalog MarketCatalog, tickets TicketBook, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{catalog: catalog, tickets: tickets, logger: logHandler(logger, "ticket")}
}

func (h *TicketHandler) ticket(w http.ResponseWriter, r *http.Request) (Ticket, bool) {
	id, ok := marketID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return nil, false
	}
	if _, err := h.catalog.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "market not found")
		return nil, false
	}
	return h.tickets.Ticket(id), true
}

// Get refreshes and returns the ticket: balance and holdings.
// GET /api/markets/{id}/ticket
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ticket(w, r)
	if !ok {
		return
	}
	err := t.Refresh(r.Context())
	writeAction(w, r, h.logger, t.State(), err)
}

// Buy submits a trade intent.
// POST /api/markets/{id}/buy {"outcome":"yes","amount":"10"}
func (h *TicketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	t, ok := h.ticket(w, r)
	if !ok {
		return
	}
	var intent domain.TradeIntent
	if err := decodeBody(r, &intent); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if intent.Side == "" {
		intent.Side = domain.TradeSideBuy
	}
	state, err := t.Buy(r.Context(), intent)
	writeAction(w, r, h.logger, state, err)
}

// Tickets adapts view.TicketBook to TicketBook.
type Tickets struct{ Book *view.TicketBook }

// Ticket returns the mounted ticket for marketID.
func (t Tickets) Ticket(marketID uint64) Ticket { return t.Book.Get(marketID) }
