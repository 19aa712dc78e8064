package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/papercite/papercite/db"
	"github.com/papercite/papercite/internal/chat"
	"github.com/papercite/papercite/internal/config"
	"github.com/papercite/papercite/internal/database"
	"github.com/papercite/papercite/internal/embedding"
	"github.com/papercite/papercite/internal/knowledge"
)

// Setup creates and initializes the application. On error everything
// already initialized is released; on success call Close().
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg)

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, embedder, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	a.Store = knowledge.New(pool, slog.Default().With("component", "knowledge"))

	chatSvc, err := chat.New(chat.Config{
		Genkit:         g,
		Embedder:       embedding.New(embedder, slog.Default().With("component", "embedding")),
		Retriever:      a.Store,
		Logger:         slog.Default().With("component", "chat"),
		ModelName:      cfg.ModelName,
		Profile:        cfg.RetrievalProfile(),
		MatchThreshold: cfg.ResolvedThreshold(),
		MatchCount:     cfg.MatchCount,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	a.Chat = chatSvc

	return a, nil
}

// providePool opens the connection pool and brings the schema up to date.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin and resolves
// the embedder. GEMINI_API_KEY is read by the plugin from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, errors.New("initializing genkit with googleai provider")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	slog.Info("initialized Genkit with googleai provider",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel)

	return g, embedder, nil
}

// provideTracing sets up an OTLP HTTP trace exporter when an endpoint is
// configured. Returns a shutdown function; tracing failures never block
// startup.
func provideTracing(ctx context.Context, cfg *config.Config) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	slog.Debug("OTLP tracing enabled", "endpoint", cfg.OTLPEndpoint)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}
