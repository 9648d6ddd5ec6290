package corsmw_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-coro/corsmw"
)

func TestPreflightAllowedOrigin(t *testing.T) {
	cfg := corsmw.DefaultConfig()
	cfg.AllowedOrigins = []string{"http://example.com"}

	h := corsmw.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight request should not reach next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestPreflightRejectedOrigin(t *testing.T) {
	cfg := corsmw.DefaultConfig()
	cfg.AllowedOrigins = []string{"http://example.com"}

	h := corsmw.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight request should not reach next handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNonPreflightRequestGetsHeadersAndReachesHandler(t *testing.T) {
	cfg := corsmw.DefaultConfig() // wildcard origin
	called := false

	h := corsmw.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, called)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "ok", rec.Body.String())
}

func TestNonPreflightRestrictedOriginNotAllowedGetsNoCorsHeaders(t *testing.T) {
	cfg := corsmw.DefaultConfig()
	cfg.AllowedOrigins = []string{"http://example.com"}

	h := corsmw.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
