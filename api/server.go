// Package api provides the HTTP surface of papercite.
//
// Endpoints:
//
//	POST /api/chat  - retrieval-augmented chat, streamed text response
//	GET  /health    - liveness probe
//	GET  /ready     - readiness probe (database ping + document count)
//
// File structure:
//   - server.go: route registration and handler wiring
//   - middleware.go: recovery, request id, logging
//   - response.go: JSON response helpers
//   - health.go: health check endpoints
//   - chat.go: the streaming chat endpoint
package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercite/papercite/internal/log"
)

// ServerConfig collects the dependencies of the HTTP server.
type ServerConfig struct {
	Logger log.Logger
	Chat   ChatService     // answer pipeline, see chat.go
	Pool   *pgxpool.Pool   // readiness ping; may be nil in tests
	Store  DocumentCounter // readiness document count; may be nil in tests
}

// Server routes HTTP requests to their handlers.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health *HealthHandler
	chat   *ChatHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		logger: logger,
		health: NewHealthHandler(cfg.Pool, cfg.Store, logger),
		chat:   NewChatHandler(cfg.Chat, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> request id -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
	)
}
