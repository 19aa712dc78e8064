package api

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercite/papercite/internal/log"
)

// DocumentCounter reports how many document chunks are stored.
// Satisfied by *knowledge.Store.
type DocumentCounter interface {
	Count(ctx context.Context) (int64, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pool    *pgxpool.Pool
	counter DocumentCounter
	logger  log.Logger
}

// NewHealthHandler creates a new health handler.
// pool and counter back the readiness check; either may be nil in tests.
func NewHealthHandler(pool *pgxpool.Pool, counter DocumentCounter, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, counter: counter, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK if the document store is reachable, along
// with the number of indexed chunks. A reachable but empty store is
// still ready; every answer would just be the refusal sentence.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	var count int64
	if h.counter != nil {
		c, err := h.counter.Count(r.Context())
		if err != nil {
			h.logger.Error("readiness document count failed", "error", err)
			http.Error(w, "document store not ready", http.StatusServiceUnavailable)
			return
		}
		count = c
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"documents": count,
	})
}
