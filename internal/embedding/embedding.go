// Package embedding adapts a Genkit ai.Embedder to the single operation
// this service needs: turning a query string into a 768-dimension vector.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/papercite/papercite/internal/knowledge"
	"github.com/papercite/papercite/internal/log"
)

// ErrEmbeddingFailed indicates the remote embedding service was
// unreachable or returned malformed output. Fatal to the request: no
// retrieval is possible without a query vector.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Service wraps a Genkit embedder. Stateless and safe for concurrent use.
type Service struct {
	embedder ai.Embedder
	logger   log.Logger
}

// New creates an embedding Service.
func New(embedder ai.Embedder, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{embedder: embedder, logger: logger}
}

// Embed converts text into a fixed-length vector. Text must be non-empty.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input text", ErrEmbeddingFailed)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbeddingFailed)
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != knowledge.VectorDimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d",
			ErrEmbeddingFailed, len(vec), knowledge.VectorDimension)
	}

	s.logger.Debug("embedded query", "text_length", len(text))
	return vec, nil
}
