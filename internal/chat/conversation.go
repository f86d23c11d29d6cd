// Package chat owns the conversation state and the interactive turn loop.
package chat

import "azchat/internal/ai"

// Conversation is the ordered, append-only message history for one
// session. The first message is always the system prompt. It lives for
// one process run and is owned exclusively by the turn loop — nothing
// accesses it concurrently.
type Conversation struct {
	system   string
	messages []ai.Message
}

// NewConversation seeds a conversation with the given system prompt.
func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{system: systemPrompt}
	c.Reset()
	return c
}

// AddUser appends a user message.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, ai.Message{Role: ai.RoleUser, Content: content})
}

// AddAssistant appends an assistant message.
func (c *Conversation) AddAssistant(content string) {
	c.messages = append(c.messages, ai.Message{Role: ai.RoleAssistant, Content: content})
}

// DropLast removes the most recently appended message. The turn loop
// uses it to roll back a user message whose turn failed, so a retry
// starts from a clean history. The system seed is never dropped.
func (c *Conversation) DropLast() {
	if len(c.messages) > 1 {
		c.messages = c.messages[:len(c.messages)-1]
	}
}

// Reset discards all history and re-seeds the system prompt.
func (c *Conversation) Reset() {
	c.messages = []ai.Message{{Role: ai.RoleSystem, Content: c.system}}
}

// Messages returns a copy of the history in chat order, safe to hand to
// a request body without aliasing the internal slice.
func (c *Conversation) Messages() []ai.Message {
	out := make([]ai.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of messages, including the system seed.
func (c *Conversation) Len() int {
	return len(c.messages)
}
