package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_UsesPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := InstrumentHandler(mux)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/markets/{id}", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/markets/3", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/markets/4", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/markets/{id}", "418"))
	assert.Equal(t, 2.0, after-before)
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(trades.WithLabelValues("error"))
	CountTrade(errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(trades.WithLabelValues("error"))-before)

	before = testutil.ToFloat64(notifications.WithLabelValues("unknown"))
	CountNotification("")
	assert.Equal(t, 1.0, testutil.ToFloat64(notifications.WithLabelValues("unknown"))-before)
}

func TestHandler_Exposes(t *testing.T) {
	ObserveChainQuery(0, nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "truemarket_chain_query_duration_seconds")
}
