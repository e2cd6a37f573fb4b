package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// SessionService is the wallet session as used by the API.
type SessionService interface {
	Snapshot() domain.SessionState
	Connect(ctx context.Context, silent bool) error
	Disconnect(ctx context.Context) error
}

// SessionHandler serves wallet connect and disconnect.
type SessionHandler struct {
	session SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(session SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: session, logger: logHandler(logger, "session")}
}

// Get returns the session snapshot.
// GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// Connect claims a chain for the signer and connects the wallet. A failure
// leaves the session disconnected; the snapshot carries the message.
// POST /api/session/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	err := h.session.Connect(r.Context(), false)
	if err != nil {
		h.logger.WarnContext(r.Context(), "connect failed", slog.String("error", err.Error()))
	}
	writeAction(w, r, h.logger, h.session.Snapshot(), err)
}

// Disconnect drops the wallet session.
// POST /api/session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := h.session.Disconnect(r.Context())
	writeAction(w, r, h.logger, h.session.Snapshot(), err)
}
