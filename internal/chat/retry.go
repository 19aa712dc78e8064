package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/papercite/papercite/internal/log"
)

// RetryConfig configures the retry behavior for generation calls.
type RetryConfig struct {
	MaxRetries      int           // maximum number of retry attempts
	InitialInterval time.Duration // initial backoff interval
	MaxInterval     time.Duration // maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for LLM API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// errNonRetryable marks failures that must never be retried, in
// particular a stream that already delivered output to the client:
// retrying would duplicate the delivered prefix.
var errNonRetryable = errors.New("non-retryable")

// retryableError determines if an error should trigger a retry.
func retryableError(err error) bool {
	if err == nil || errors.Is(err, errNonRetryable) {
		return false
	}

	errStr := err.Error()

	// Rate limit errors - always retry
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors - retry
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network errors - retry
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// generateFunc is a single attempt at the remote model call.
type generateFunc func(ctx context.Context) (*ai.ModelResponse, error)

// generateWithRetry runs fn with exponential backoff on transient remote
// errors. Streaming only starts producing chunks once the model responds,
// so retrying a failed attempt never duplicates already-delivered output.
func generateWithRetry(ctx context.Context, logger log.Logger, cfg RetryConfig, fn generateFunc) (*ai.ModelResponse, error) {
	var lastErr error
	delay := cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return nil, err
		}

		// Last attempt - don't sleep
		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d retries (elapsed: %v): %w",
		cfg.MaxRetries, time.Since(start), lastErr)
}
