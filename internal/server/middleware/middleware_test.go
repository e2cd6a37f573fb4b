package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAuth(t *testing.T) {
	h := Auth("secret")(ok)

	tests := []struct {
		name   string
		method string
		header map[string]string
		want   int
	}{
		{"get is open", http.MethodGet, nil, http.StatusOK},
		{"post without token", http.MethodPost, nil, http.StatusUnauthorized},
		{"post wrong token", http.MethodPost, map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"post api key", http.MethodPost, map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"post bearer", http.MethodPost, map[string]string{"Authorization": "bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/faucet/mint", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	const incoming = "6f1c1f3c-43a5-4d0b-9f0a-0b8d2f9d0c11"
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, incoming, seen)

	r.Header.Set(RequestIDHeader, "not-a-uuid")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.NotEqual(t, "not-a-uuid", seen)
}

func TestRateLimit_Local(t *testing.T) {
	h := RateLimit(NewLocalLimiter(), "mint", 2, time.Minute, ProxyTrust{}, discard())(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "/api/faucet/mint", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	r := httptest.NewRequest(http.MethodPost, "/api/faucet/mint", nil)
	r.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(brokenLimiter{}, "mint", 1, time.Minute, ProxyTrust{}, discard())(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_SpoofedForwardedForIgnored(t *testing.T) {
	h := RateLimit(NewLocalLimiter(), "mint", 1, time.Minute, ProxyTrust{}, discard())(ok)

	codes := make([]int, 0, 3)
	for _, xff := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		r := httptest.NewRequest(http.MethodPost, "/api/faucet/mint", nil)
		r.RemoteAddr = "192.0.2.7:4000"
		r.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 429}, codes)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("X-Real-IP", "198.51.100.2")
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", ProxyTrust{}.ClientIP(r), "untrusted peer ignores headers")

	trust, err := ParseTrustedProxies([]string{"192.0.2.0/24", "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", trust.ClientIP(r), "trusted hops are skipped from the right")

	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "198.51.100.2", trust.ClientIP(r))

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestLocalLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		allowed, err := l.Allow(context.Background(), fmt.Sprintf("mint:10.0.%d.1", i), 1, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	assert.Equal(t, 100, l.Len())

	allowed, _ := l.Allow(context.Background(), "mint:10.0.0.1", 1, time.Minute)
	assert.False(t, allowed, "budget kept while the bucket is live")

	now = now.Add(2 * time.Minute)
	allowed, _ = l.Allow(context.Background(), "mint:10.0.0.1", 1, time.Minute)
	assert.True(t, allowed)
	assert.Equal(t, 1, l.Len())
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:5173"})(ok)

	r := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/session", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
