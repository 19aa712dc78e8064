// Package knowledge is the adapter over the pgvector-backed document
// store. Similarity ranking happens server-side in the match_documents
// SQL function; this package validates inputs, executes the query and
// maps rows back to domain types.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/papercite/papercite/internal/log"
)

// ErrStoreUnavailable indicates the vector store could not be reached or
// the search query failed. The orchestrator treats this as recoverable
// and proceeds with empty context.
var ErrStoreUnavailable = errors.New("vector store unavailable")

// VectorDimension matches the vector(768) column in the documents table
// and the output dimensionality of the embedding model.
const VectorDimension = 768

// Querier is the subset of pgxpool.Pool the store needs. Defined by the
// consumer so tests can substitute a fake.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	searchQuery = `SELECT id, content, metadata, similarity FROM match_documents($1, $2, $3)`
	countQuery  = `SELECT COUNT(*) FROM documents`
)

// Store performs similarity searches against the documents table.
// Safe for concurrent use; it holds no per-request state.
type Store struct {
	db     Querier
	logger log.Logger
}

// New creates a Store. In production db is a *pgxpool.Pool.
func New(db Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Search returns the chunks most similar to queryVec, ordered by
// descending similarity. Only matches with similarity strictly above
// threshold are returned, at most limit of them. An empty result is a
// valid outcome, not an error.
//
// Precondition violations (wrong dimension, threshold outside [-1,1],
// non-positive limit) are caller bugs and reported as plain errors;
// connection and query failures wrap ErrStoreUnavailable.
func (s *Store) Search(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]Match, error) {
	if len(queryVec) != VectorDimension {
		return nil, fmt.Errorf("query vector has %d dimensions, want %d", len(queryVec), VectorDimension)
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("match threshold %v outside [-1, 1]", threshold)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("match count must be positive, got %d", limit)
	}

	rows, err := s.db.Query(ctx, searchQuery, pgvector.NewVector(queryVec), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id         int64
			content    string
			rawMeta    []byte
			similarity float64
		)
		if err := rows.Scan(&id, &content, &rawMeta, &similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning match: %w", ErrStoreUnavailable, err)
		}
		matches = append(matches, Match{
			Document: Document{
				ID:       id,
				Content:  content,
				Metadata: s.parseMetadata(id, rawMeta),
			},
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.logger.Debug("similarity search completed",
		"matches", len(matches),
		"threshold", threshold,
		"limit", limit)
	return matches, nil
}

// Count returns the number of stored document chunks. Used by the
// readiness probe.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, countQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting documents: %w", ErrStoreUnavailable, err)
	}
	return count, nil
}

// parseMetadata decodes the jsonb column. Malformed metadata degrades to
// an empty map rather than failing the search; the assembler's defaults
// take over downstream.
func (s *Store) parseMetadata(id int64, raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.logger.Warn("failed to parse document metadata", "document_id", id, "error", err)
		return map[string]any{}
	}
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
