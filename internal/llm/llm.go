// Package llm provides chat-completion calls to an OpenAI-compatible
// provider. The engine makes at most one completion call per answer; a
// provider failure surfaces as ErrProviderUnavailable so callers can
// degrade instead of failing the request.
package llm

import (
	"context"
	"errors"
)

// ErrProviderUnavailable wraps transport or provider failures on the
// completion endpoint.
var ErrProviderUnavailable = errors.New("completion provider unavailable")

// Roles for chat messages.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are sampling parameters for a completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Client produces a completion for a message list.
type Client interface {
	// Complete sends the messages and returns the model's text response.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}
