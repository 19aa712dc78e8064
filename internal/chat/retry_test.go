package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/papercite/papercite/internal/log"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"http 429", errors.New("googleapi: Error 429"), true},
		{"http 500", errors.New("500 internal server error"), true},
		{"http 503", errors.New("503 Service Unavailable"), true},
		{"unavailable", errors.New("service temporarily UNAVAILABLE"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded (timeout)"), true},
		{"bad request", errors.New("invalid argument"), false},
		{"auth", errors.New("401 unauthorized"), false},
		{"marked non-retryable", fmt.Errorf("%w: 503 unavailable", errNonRetryable), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestGenerateWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (*ai.ModelResponse, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("503 service unavailable")
		}
		return &ai.ModelResponse{}, nil
	}

	resp, err := generateWithRetry(context.Background(), log.NewNop(), fastRetryConfig(), fn)
	if err != nil {
		t.Fatalf("generateWithRetry() error = %v", err)
	}
	if resp == nil {
		t.Fatal("expected response, got nil")
	}
	if calls != 3 {
		t.Errorf("got %d calls, want 3", calls)
	}
}

func TestGenerateWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (*ai.ModelResponse, error) {
		calls++
		return nil, errors.New("invalid argument")
	}

	_, err := generateWithRetry(context.Background(), log.NewNop(), fastRetryConfig(), fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}

func TestGenerateWithRetry_MarkedNonRetryableStopsRetry(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (*ai.ModelResponse, error) {
		calls++
		// Transient-looking error, but marked as already-streamed.
		return nil, fmt.Errorf("%w: 503 unavailable", errNonRetryable)
	}

	_, err := generateWithRetry(context.Background(), log.NewNop(), fastRetryConfig(), fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}

func TestGenerateWithRetry_ExhaustsRetries(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (*ai.ModelResponse, error) {
		calls++
		return nil, errors.New("429 too many requests")
	}

	cfg := fastRetryConfig()
	_, err := generateWithRetry(context.Background(), log.NewNop(), cfg, fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != cfg.MaxRetries+1 {
		t.Errorf("got %d calls, want %d", calls, cfg.MaxRetries+1)
	}
}

func TestGenerateWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fn := func(ctx context.Context) (*ai.ModelResponse, error) {
		cancel() // cancel while the retry loop is about to back off
		return nil, errors.New("503 unavailable")
	}

	cfg := RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Minute, // forces the ctx.Done branch
		MaxInterval:     time.Minute,
	}
	_, err := generateWithRetry(ctx, log.NewNop(), cfg, fn)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}
