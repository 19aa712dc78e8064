// Package app provides application initialization and dependency wiring.
//
// App is the container holding process-wide, immutable-after-init
// connection handles: the database pool, the Genkit instance with its
// model plugin, and the services built on top. All of them are stateless
// callers, safe for concurrent reuse across requests.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercite/papercite/internal/chat"
	"github.com/papercite/papercite/internal/config"
	"github.com/papercite/papercite/internal/knowledge"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool
	Store    *knowledge.Store
	Chat     *chat.Service

	otelCleanup func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.Pool != nil {
		a.Pool.Close()
		slog.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
