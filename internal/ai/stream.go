package ai

import "context"

// StreamDelta is a single chunk of a streaming reply.
type StreamDelta struct {
	// Token is the text fragment. Empty tokens are never emitted.
	Token string
	// Done is true when the reply completed normally.
	Done bool
	// Err is non-nil if the stream failed. No further values follow.
	Err error
}

// Client drives conversational exchanges against a Provider, deciding
// between the streaming and buffered paths.
type Client struct {
	provider Provider
}

// NewClient wraps a provider.
func NewClient(p Provider) *Client {
	return &Client{provider: p}
}

// Send returns the assistant's full reply in one shot (non-streaming path).
func (c *Client) Send(ctx context.Context, messages []Message) (string, error) {
	return c.provider.Complete(ctx, messages)
}

// Stream returns a channel of reply tokens. If the provider doesn't
// implement StreamingProvider, the full reply is fetched with Complete
// and emitted as a single token, so callers can treat both paths alike.
func (c *Client) Stream(ctx context.Context, messages []Message) <-chan StreamDelta {
	if sp, ok := c.provider.(StreamingProvider); ok {
		return sp.CompleteStream(ctx, messages)
	}

	ch := make(chan StreamDelta, 2)
	go func() {
		defer close(ch)
		text, err := c.provider.Complete(ctx, messages)
		if err != nil {
			ch <- StreamDelta{Err: err}
			return
		}
		ch <- StreamDelta{Token: text}
		ch <- StreamDelta{Done: true}
	}()
	return ch
}

// collectStream reads all tokens from a stream channel and returns the
// concatenated result. Useful when the caller wants the whole reply.
func collectStream(ch <-chan StreamDelta) (string, error) {
	var result string
	for delta := range ch {
		if delta.Err != nil {
			return result, delta.Err
		}
		result += delta.Token
	}
	return result, nil
}
