package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/papercite/papercite/internal/chat"
	"github.com/papercite/papercite/internal/log"
)

// requestBudget is the hard wall-clock limit on one chat request,
// covering embedding, retrieval and the whole generation stream. Expiry
// surfaces as a generation failure, never a silent truncation.
const requestBudget = 30 * time.Second

// ChatService is the answer pipeline consumed by the handler.
// Satisfied by *chat.Service.
type ChatService interface {
	Answer(ctx context.Context, messages []chat.Message, onChunk chat.StreamFunc) error
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// ChatHandler handles the streaming chat endpoint.
type ChatHandler struct {
	svc    ChatService
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.svc == nil {
		h.logger.Warn("ChatHandler: chat service is nil, chat endpoint not registered")
		return
	}
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// handleChat streams the model's answer as a chunked plain-text body.
// Each delta is written and flushed as it arrives, in production order.
//
// Failure modes:
//   - before the first chunk: JSON {"error": ...} with status 400 or 500
//   - after the first chunk: the body terminates abruptly; clients must
//     treat unexpected termination as failure (a started stream cannot
//     carry an error payload)
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestBudget)
	defer cancel()

	requestID := RequestID(r.Context())
	h.logger.Info("chat request started",
		"request_id", requestID,
		"messages", len(req.Messages))

	streamed := false
	err := h.svc.Answer(ctx, req.Messages, func(_ context.Context, text string) error {
		if !streamed {
			// Headers go out with the first chunk so pre-stream failures
			// can still produce a JSON error response.
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
			w.WriteHeader(http.StatusOK)
			streamed = true
		}
		if _, werr := w.Write([]byte(text)); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})

	if err != nil {
		h.logger.Error("chat request failed",
			"request_id", requestID,
			"streamed", streamed,
			"error", err)
		if streamed {
			// The stream is already half-written. Abort the connection
			// without the terminating chunk so the client's body read
			// fails instead of looking like a short-but-complete answer.
			panic(http.ErrAbortHandler)
		}
		if errors.Is(err, chat.ErrBadRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Embedding and generation failures, timeouts and anything
		// unclassified all surface as 500 with a descriptive message.
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !streamed {
		// Model produced no output at all; deliver an empty 200 body so
		// the client does not hang on a headerless response.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
	}

	h.logger.Info("chat request completed", "request_id", requestID)
}
