package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// actionResponse is returned by view actions: the view state and, on
// failure, the error next to it.
type actionResponse struct {
	State any    `json:"state"`
	Error string `json:"error,omitempty"`
}

// writeAction writes the outcome of a view action. Errors statusFor does
// not know are logged and reported generically.
func writeAction(w http.ResponseWriter, r *http.Request, logger *slog.Logger, state any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, actionResponse{State: state})
		return
	}
	status, msg := statusFor(err)
	if msg == upstreamFailed {
		logger.ErrorContext(r.Context(), "action failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, actionResponse{State: state, Error: msg})
}

// upstreamFailed is the client message for unmapped errors.
const upstreamFailed = "upstream request failed"

// statusFor maps domain errors to an HTTP status and a client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrChainUnavailable):
		return http.StatusServiceUnavailable, "chain client unavailable"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusServiceUnavailable, "chain client is still loading"
	case errors.Is(err, domain.ErrAssistantDisabled):
		return http.StatusServiceUnavailable, "chat assistant is not configured"
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict, "wallet not connected"
	case errors.Is(err, domain.ErrActionInFlight):
		return http.StatusConflict, "action already in progress"
	case errors.Is(err, domain.ErrViewUnmounted):
		return http.StatusServiceUnavailable, "view closed"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "enter a positive amount with at most 18 decimals"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "amount exceeds balance"
	case errors.Is(err, domain.ErrSellUnsupported):
		return http.StatusUnprocessableEntity, "selling is disabled"
	case errors.Is(err, domain.ErrAppNotInitialized):
		return http.StatusFailedDependency, "token application not initialized on this chain; mint from the faucet first"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limited"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusBadGateway, upstreamFailed
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// marketID parses the {id} path parameter.
func marketID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
