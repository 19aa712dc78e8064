package chat

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of the conversation as sent by the client. The
// ordered message list forms the history; the last user message is the
// query to answer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StreamFunc receives each text delta of the streamed answer, in
// production order. Returning an error aborts generation.
type StreamFunc func(ctx context.Context, text string) error

// toGenkitMessages maps client messages onto Genkit roles. Unknown roles
// are rejected at validation time, before this conversion runs.
func toGenkitMessages(messages []Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, 0, len(messages))
	for i, m := range messages {
		part := ai.NewTextPart(m.Content)
		switch m.Role {
		case RoleUser:
			out = append(out, ai.NewUserMessage(part))
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(part))
		case RoleSystem:
			out = append(out, &ai.Message{Role: ai.RoleSystem, Content: []*ai.Part{part}})
		default:
			return nil, fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
	}
	return out, nil
}
