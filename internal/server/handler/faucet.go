package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/view"
)

// Faucet is the faucet view.
type Faucet interface {
	Refresh(ctx context.Context) error
	State() view.FaucetState
	Mint(ctx context.Context) (view.FaucetState, error)
}

// FaucetHandler serves the test-token faucet.
type FaucetHandler struct {
	faucet Faucet
	logger *slog.Logger
}

// NewFaucetHandler creates a FaucetHandler.
func NewFaucetHandler(faucet Faucet, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{faucet: faucet, logger: logHandler(logger, "faucet")}
}

// Get refreshes and returns the connected owner's balance.
// GET /api/faucet
func (h *FaucetHandler) Get(w http.ResponseWriter, r *http.Request) {
	err := h.faucet.Refresh(r.Context())
	writeAction(w, r, h.logger, h.faucet.State(), err)
}

// Mint credits test tokens to the connected owner.
// POST /api/faucet/mint
func (h *FaucetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	state, err := h.faucet.Mint(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "mint failed", slog.String("error", err.Error()))
	}
	writeAction(w, r, h.logger, state, err)
}
