package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/papercite/papercite/internal/embedding"
	"github.com/papercite/papercite/internal/knowledge"
	"github.com/papercite/papercite/internal/log"
	"github.com/papercite/papercite/internal/rag"
	"github.com/papercite/papercite/internal/testutil"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return make([]float32, knowledge.VectorDimension), nil
}

type stubRetriever struct {
	matches []knowledge.Match
	err     error
}

func (s *stubRetriever) Search(ctx context.Context, queryVec []float32, threshold float64, limit int) ([]knowledge.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

// newTestService wires a Service against the mock model.
func newTestService(t *testing.T, mock *testutil.MockLLM, embedder Embedder, retriever Retriever) *Service {
	t.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}
	mock.RegisterModel(g)

	svc, err := New(Config{
		Genkit:         g,
		Embedder:       embedder,
		Retriever:      retriever,
		Logger:         log.NewNop(),
		ModelName:      testutil.ModelName,
		Profile:        rag.ProfileStrict,
		MatchThreshold: 0.5,
		MatchCount:     5,
		RetryConfig: RetryConfig{
			MaxRetries:      1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

// collectChunks returns a StreamFunc appending to chunks.
func collectChunks(chunks *[]string) StreamFunc {
	return func(_ context.Context, text string) error {
		*chunks = append(*chunks, text)
		return nil
	}
}

func paperMatch() knowledge.Match {
	return knowledge.Match{
		Document: knowledge.Document{
			ID:      1,
			Content: "The 2016 study introduces a cooperative learning method.",
			Metadata: map[string]any{
				"title": "New Cooperative Method",
				"year":  float64(2016),
				"type":  "article",
				"url":   "https://x/2016.pdf",
			},
		},
		Similarity: 0.92,
	}
}

func TestAnswer_CitedAnswerStreamed(t *testing.T) {
	answer := "The method is described in [New Cooperative Method (2016)](https://x/2016.pdf)."
	mock := testutil.NewMockLLM("unexpected fallback")
	mock.AddResponse("cooperative", answer)

	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{
		matches: []knowledge.Match{paperMatch()},
	})

	var chunks []string
	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "What is the cooperative method?"},
	}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if got := strings.Join(chunks, ""); got != answer {
		t.Errorf("streamed answer = %q, want %q", got, answer)
	}
	if len(chunks) < 2 {
		t.Errorf("expected multiple ordered chunks, got %d", len(chunks))
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d model calls, want 1", len(calls))
	}
	system := calls[0].System
	for _, want := range []string{
		"[BEGIN SOURCE]",
		"Title: New Cooperative Method",
		"Year: 2016",
		"URL: https://x/2016.pdf",
		rag.RefusalSentence,
	} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestAnswer_NoMatchesYieldsRefusal(t *testing.T) {
	mock := testutil.NewMockLLM(rag.RefusalSentence)

	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{})

	var chunks []string
	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "Tell me about quantum gravity."},
	}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if got := strings.Join(chunks, ""); got != rag.RefusalSentence {
		t.Errorf("answer = %q, want refusal sentence", got)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d model calls, want 1", len(calls))
	}
	if !strings.HasSuffix(calls[0].System, "Context:\n") {
		t.Errorf("expected empty context after marker, got:\n%s", calls[0].System)
	}
}

func TestAnswer_StoreUnavailableDegrades(t *testing.T) {
	mock := testutil.NewMockLLM(rag.RefusalSentence)

	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{
		err: fmt.Errorf("%w: dial tcp: connection refused", knowledge.ErrStoreUnavailable),
	})

	var chunks []string
	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "anything"},
	}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("Answer() should degrade, got error = %v", err)
	}

	if got := strings.Join(chunks, ""); got != rag.RefusalSentence {
		t.Errorf("answer = %q, want refusal sentence", got)
	}
}

func TestAnswer_SearchPreconditionFails(t *testing.T) {
	mock := testutil.NewMockLLM("never reached")

	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{
		err: errors.New("match threshold 7 outside [-1, 1]"),
	})

	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "anything"},
	}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrGenerationFailed) || errors.Is(err, ErrBadRequest) {
		t.Errorf("precondition failure misclassified: %v", err)
	}
	if len(mock.Calls()) != 0 {
		t.Error("model should not be called after a search precondition failure")
	}
}

func TestAnswer_EmbeddingFailureIsFatal(t *testing.T) {
	mock := testutil.NewMockLLM("never reached")

	svc := newTestService(t, mock, &stubEmbedder{
		err: fmt.Errorf("%w: 503 upstream", embedding.ErrEmbeddingFailed),
	}, &stubRetriever{})

	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "anything"},
	}, nil)
	if !errors.Is(err, embedding.ErrEmbeddingFailed) {
		t.Errorf("expected ErrEmbeddingFailed, got %v", err)
	}
	if len(mock.Calls()) != 0 {
		t.Error("model should not be called after an embedding failure")
	}
}

func TestAnswer_BadRequests(t *testing.T) {
	mock := testutil.NewMockLLM("never reached")
	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{})

	tests := []struct {
		name     string
		messages []Message
	}{
		{"empty message list", nil},
		{"blank last message", []Message{{Role: RoleUser, Content: "   "}}},
		{"unknown role", []Message{{Role: "operator", Content: "hi"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Answer(context.Background(), tt.messages, nil)
			if !errors.Is(err, ErrBadRequest) {
				t.Errorf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}

func TestAnswer_MultiTurnHistoryForwarded(t *testing.T) {
	mock := testutil.NewMockLLM("follow-up answer")
	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{
		matches: []knowledge.Match{paperMatch()},
	})

	var chunks []string
	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "What is the cooperative method?"},
		{Role: RoleAssistant, Content: "It is described in the 2016 paper."},
		{Role: RoleUser, Content: "Who were the authors?"},
	}, collectChunks(&chunks))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d model calls, want 1", len(calls))
	}
	// The mock extracts the last user message; the query must be the
	// final turn, not the first.
	if calls[0].UserMessage != "Who were the authors?" {
		t.Errorf("model saw %q as the query", calls[0].UserMessage)
	}
}

func TestNew_Validation(t *testing.T) {
	g := genkit.Init(context.Background())

	base := Config{
		Genkit:    g,
		Embedder:  &stubEmbedder{},
		Retriever: &stubRetriever{},
		Logger:    log.NewNop(),
		ModelName: "mock/m",
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing genkit", func(c *Config) { c.Genkit = nil }},
		{"missing embedder", func(c *Config) { c.Embedder = nil }},
		{"missing retriever", func(c *Config) { c.Retriever = nil }},
		{"missing logger", func(c *Config) { c.Logger = nil }},
		{"missing model name", func(c *Config) { c.ModelName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	t.Run("defaults applied", func(t *testing.T) {
		svc, err := New(base)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if svc.matchCount != 5 {
			t.Errorf("matchCount = %d, want default 5", svc.matchCount)
		}
		if svc.profile != rag.ProfileStrict {
			t.Errorf("profile = %q, want strict default", svc.profile)
		}
		if svc.retryConfig.MaxRetries == 0 {
			t.Error("retry config defaults not applied")
		}
	})
}

func TestAnswer_ChunkCallbackErrorAborts(t *testing.T) {
	mock := testutil.NewMockLLM("a long response that will stream in several chunks")
	svc := newTestService(t, mock, &stubEmbedder{}, &stubRetriever{})

	sentinel := errors.New("client went away")
	calls := 0
	err := svc.Answer(context.Background(), []Message{
		{Role: RoleUser, Content: "anything"},
	}, func(_ context.Context, _ string) error {
		calls++
		if calls >= 2 {
			return sentinel
		}
		return nil
	})

	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("streaming should stop at the failing chunk, got %d calls", calls)
	}
}
