package chat

import "errors"

// Error taxonomy for a chat request. Only ErrBadRequest, embedding
// failures and ErrGenerationFailed terminate the request with a
// user-visible error; a store failure degrades to empty context inside
// Answer and never propagates.
var (
	// ErrBadRequest indicates a malformed request: empty message list,
	// blank query content or an unknown role.
	ErrBadRequest = errors.New("bad request")

	// ErrGenerationFailed indicates the remote model call failed. When it
	// happens mid-stream, the client sees the stream terminate abruptly.
	ErrGenerationFailed = errors.New("generation failed")
)
