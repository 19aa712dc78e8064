// Package chat orchestrates a retrieval-augmented answer. Each request
// moves through a fixed sequence of states, terminal on the first failure
// or on successful stream completion:
//
//	Received -> Embedding -> Retrieving -> Assembling -> Generating -> Streaming -> Done
//
// Embedding and generation failures are fatal; a store failure at the
// retrieval step degrades to empty context instead of failing the request
// (availability over completeness - the prompt instructs the model to
// report graceful "not found" answers).
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/papercite/papercite/internal/knowledge"
	"github.com/papercite/papercite/internal/log"
	"github.com/papercite/papercite/internal/rag"
)

// Embedder converts a query into a fixed-length vector.
// Satisfied by *embedding.Service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever performs similarity search against the document store.
// Satisfied by *knowledge.Store.
type Retriever interface {
	Search(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]knowledge.Match, error)
}

// Config contains all required parameters for the chat service.
type Config struct {
	Genkit    *genkit.Genkit
	Embedder  Embedder
	Retriever Retriever
	Logger    log.Logger

	ModelName      string      // Genkit model reference, e.g. "googleai/gemini-2.5-flash"
	Profile        rag.Profile // citation strictness profile
	MatchThreshold float64     // minimum similarity, in [-1, 1]
	MatchCount     int         // maximum context blocks per request

	RetryConfig RetryConfig // generation retry settings (zero-value uses defaults)
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Service answers questions grounded in the paper library. All fields are
// captured immutably at construction, so a single Service is safe for
// concurrent requests.
type Service struct {
	g         *genkit.Genkit
	embedder  Embedder
	retriever Retriever
	logger    log.Logger

	modelName   string
	profile     rag.Profile
	threshold   float64
	matchCount  int
	retryConfig RetryConfig
}

// New creates a chat Service.
func New(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	matchCount := cfg.MatchCount
	if matchCount <= 0 {
		matchCount = 5
	}

	profile := cfg.Profile
	if profile == "" {
		profile = rag.ProfileStrict
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	return &Service{
		g:           cfg.Genkit,
		embedder:    cfg.Embedder,
		retriever:   cfg.Retriever,
		logger:      cfg.Logger,
		modelName:   cfg.ModelName,
		profile:     profile,
		threshold:   cfg.MatchThreshold,
		matchCount:  matchCount,
		retryConfig: retryConfig,
	}, nil
}

// Answer runs the full pipeline for one request and forwards each text
// delta to onChunk in production order. It returns only after the stream
// completes or fails; no part of the answer is buffered ahead of
// delivery.
func (s *Service) Answer(ctx context.Context, messages []Message, onChunk StreamFunc) error {
	// Received: the last message is the query.
	if len(messages) == 0 {
		return fmt.Errorf("%w: empty message list", ErrBadRequest)
	}
	query := messages[len(messages)-1].Content
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: last message has no content", ErrBadRequest)
	}
	history, err := toGenkitMessages(messages)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	// Embedding: fatal on failure, no retrieval without a query vector.
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return err
	}

	// Retrieving: degrade to empty context if the store is unreachable.
	matches, err := s.retriever.Search(ctx, queryVec, s.threshold, s.matchCount)
	if err != nil {
		if !errors.Is(err, knowledge.ErrStoreUnavailable) {
			// Precondition violation: misconfigured threshold or count.
			return fmt.Errorf("searching documents: %w", err)
		}
		s.logger.Warn("vector store unavailable, continuing with empty context", "error", err)
		matches = nil
	}

	// Assembling and prompt construction.
	contextStr := rag.Assemble(matches)
	systemPrompt := rag.BuildSystemPrompt(contextStr, s.profile)

	s.logger.Debug("generating answer",
		"matches", len(matches),
		"history", len(history),
		"context_length", len(contextStr))

	// Generating and streaming.
	return s.generate(ctx, systemPrompt, history, onChunk)
}

// generate invokes the model with streaming and retry. Once any chunk has
// been forwarded the attempt is no longer retryable: the client already
// holds a prefix of the answer.
func (s *Service) generate(ctx context.Context, systemPrompt string, history []*ai.Message, onChunk StreamFunc) error {
	var streamed atomic.Bool

	attempt := func(ctx context.Context) (*ai.ModelResponse, error) {
		opts := []ai.GenerateOption{
			ai.WithModelName(s.modelName),
			ai.WithSystem(systemPrompt),
			ai.WithMessages(history...),
		}
		if onChunk != nil {
			opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				for _, part := range chunk.Content {
					if part.Text == "" {
						continue
					}
					streamed.Store(true)
					if err := onChunk(ctx, part.Text); err != nil {
						return err
					}
				}
				return nil
			}))
		}

		resp, err := genkit.Generate(ctx, s.g, opts...)
		if err != nil && streamed.Load() {
			err = fmt.Errorf("%w: %w", errNonRetryable, err)
		}
		return resp, err
	}

	resp, err := generateWithRetry(ctx, s.logger, s.retryConfig, attempt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	// Some providers deliver the final text only in the response, not via
	// the stream. Forward it if nothing was streamed.
	if onChunk != nil && !streamed.Load() {
		if text := resp.Text(); text != "" {
			if err := onChunk(ctx, text); err != nil {
				return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
			}
		}
	}

	return nil
}
