package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/papercite/papercite/internal/log"
)

func TestHealth_Liveness(t *testing.T) {
	h := NewHealthHandler(nil, nil, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}

func TestHealth_ReadinessWithoutPool(t *testing.T) {
	h := NewHealthHandler(nil, nil, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
