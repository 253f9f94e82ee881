// Package llm defines the provider-agnostic boundary to the generative
// text service.
package llm

import (
	"context"
	"fmt"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is the provider-agnostic message we pass around.
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Validate checks if the ChatMessage is valid.
func (m ChatMessage) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
		return nil
	}
	return fmt.Errorf("invalid message role: %s", m.Role)
}

// ValidateMessages checks every message before it crosses a provider
// boundary. Providers map roles in a switch, so an unknown role would
// otherwise be dropped silently instead of failing.
func ValidateMessages(messages []ChatMessage) error {
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// Client abstracts the chosen SDK (OpenAI, Anthropic, ...). The reply is a
// single free-form text blob; everything past this boundary treats it as
// opaque until the extractor has a go at it.
type Client interface {
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
}
