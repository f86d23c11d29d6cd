// Package ai handles communication with an Azure OpenAI chat-completions
// deployment, including incremental decoding of streamed replies.
package ai

import "context"

// Message roles, matching the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation. It is marshaled
// directly into the request body, so the JSON tags are part of the wire
// contract.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is the interface any chat backend must implement.
// The abstraction keeps the turn loop independent of the concrete API
// and lets tests substitute canned responses.
type Provider interface {
	// Complete sends the conversation and returns the assistant's full
	// reply as one string.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// StreamingProvider extends Provider with token-by-token streaming.
// Providers that don't support streaming can omit this interface —
// Client falls back to Complete() automatically.
type StreamingProvider interface {
	Provider
	// CompleteStream sends the conversation and returns a channel that
	// emits reply tokens as they arrive. The channel is closed once the
	// reply is complete or the stream has failed.
	CompleteStream(ctx context.Context, messages []Message) <-chan StreamDelta
}
