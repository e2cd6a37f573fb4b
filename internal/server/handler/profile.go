package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/view"
)

// Profile is the profile view.
type Profile interface {
	Refresh(ctx context.Context) error
	State() view.ProfileState
}

// ProfileHandler serves the connected owner's profile and trade history.
type ProfileHandler struct {
	profile Profile
	trades  domain.TradeStore
	session SessionReader
	logger  *slog.Logger
}

// NewProfileHandler creates a ProfileHandler. trades may be nil when no
// trade store is configured.
func NewProfileHandler(profile Profile, trades domain.TradeStore, session SessionReader, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profile: profile,
		trades:  trades,
		session: session,
		logger:  logHandler(logger, "profile"),
	}
}

// Get refreshes and returns the profile.
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	err := h.profile.Refresh(r.Context())
	writeAction(w, r, h.logger, h.profile.State(), err)
}

type historyResponse struct {
	Owner  string               `json:"owner"`
	Trades []domain.TradeRecord `json:"trades"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// History pages through the connected owner's recorded trades.
// GET /api/profile/history?limit=50&offset=0
func (h *ProfileHandler) History(w http.ResponseWriter, r *http.Request) {
	s := h.session.Snapshot()
	if !s.Connected {
		writeError(w, http.StatusConflict, "wallet not connected")
		return
	}
	opts := parseListOpts(r)
	resp := historyResponse{
		Owner:  s.Owner,
		Trades: []domain.TradeRecord{},
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if h.trades == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	trades, err := h.trades.ListByOwner(r.Context(), s.Owner, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if len(trades) > 0 {
		resp.Trades = trades
	}
	writeJSON(w, http.StatusOK, resp)
}
