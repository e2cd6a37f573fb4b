package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/view"
)

// Counter is the counter test view.
type Counter interface {
	Refresh(ctx context.Context) error
	State() view.CounterState
	Increment(ctx context.Context) (view.CounterState, error)
}

// CounterHandler serves the counter test page. A nil counter means no
// counter application is configured.
type CounterHandler struct {
	counter Counter
	logger  *slog.Logger
}

// NewCounterHandler creates a CounterHandler.
func NewCounterHandler(counter Counter, logger *slog.Logger) *CounterHandler {
	return &CounterHandler{counter: counter, logger: logHandler(logger, "counter")}
}

func (h *CounterHandler) configured(w http.ResponseWriter) bool {
	if h.counter == nil {
		writeError(w, http.StatusNotFound, "counter application not configured")
		return false
	}
	return true
}

// Get returns the counter value and recent block notifications.
// GET /api/counter
func (h *CounterHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	err := h.counter.Refresh(r.Context())
	writeAction(w, r, h.logger, h.counter.State(), err)
}

// Increment adds one to the counter.
// POST /api/counter/increment
func (h *CounterHandler) Increment(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	state, err := h.counter.Increment(r.Context())
	writeAction(w, r, h.logger, state, err)
}
