package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// SessionReader reads the session snapshot.
type SessionReader interface {
	Snapshot() domain.SessionState
}

// BackendCheck reports on one optional backend such as the database or the cache.
type BackendCheck func(ctx context.Context) error

// checkTimeout bounds each backend check.
const checkTimeout = 2 * time.Second

type namedCheck struct {
	name  string
	check BackendCheck
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	session SessionReader
	mode    string
	started time.Time
	checks  []namedCheck
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(session SessionReader, mode string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{session: session, mode: mode, started: time.Now(), logger: logger}
}

// AddCheck registers a backend check reported under name. Not safe to call
// once the handler is serving.
func (h *HealthHandler) AddCheck(name string, check BackendCheck) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	sort.Slice(h.checks, func(i, j int) bool { return h.checks[i].name < h.checks[j].name })
}

// HealthCheck reports liveness, the chain client state and every registered
// backend. A fatal chain init failure is reported as 503; a failing backend
// only degrades the status.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s := h.session.Snapshot()
	backends, healthy := h.runChecks(r.Context())

	status, code := "ok", http.StatusOK
	switch {
	case s.Fatal:
		status, code = "chain_unavailable", http.StatusServiceUnavailable
	case !s.Ready:
		status = "loading"
	case !healthy:
		status = "degraded"
	}
	body := map[string]any{
		"status":         status,
		"mode":           h.mode,
		"ready":          s.Ready,
		"connected":      s.Connected,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if len(backends) > 0 {
		body["backends"] = backends
	}
	writeJSON(w, code, body)
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, bool) {
	if len(h.checks) == 0 {
		return nil, true
	}
	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, p := range h.checks {
		pctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.check(pctx)
		cancel()
		if err != nil {
			healthy = false
			results[p.name] = err.Error()
			h.logger.WarnContext(ctx, "backend unhealthy",
				slog.String("backend", p.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		results[p.name] = "ok"
	}
	return results, healthy
}
