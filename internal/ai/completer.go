// Package ai defines the boundary to text-generation backends.
package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Completer generates the next assistant message for a conversation.
//
// Stream yields text fragments that concatenate to the same result Complete
// would return. A non-nil error ends the sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Stream(ctx context.Context, messages []Message) iter.Seq2[string, error]
	Model() string
}

// Sink receives streamed fragments as they arrive.
type Sink func(fragment string)

// ErrEmptyResponse is returned when a provider produced no text.
var ErrEmptyResponse = errors.New("completion service returned empty response")

// Generate runs one completion. With a nil sink the provider is called in
// single-shot mode; otherwise fragments are forwarded to sink while the full
// text is accumulated. Only the trimmed, joined text is returned.
func Generate(ctx context.Context, c Completer, messages []Message, sink Sink) (string, error) {
	if c == nil {
		return "", errors.New("completion service is not configured")
	}

	if sink == nil {
		text, err := c.Complete(ctx, messages)
		if err != nil {
			return "", err
		}
		return nonEmpty(text)
	}

	var builder strings.Builder
	for fragment, err := range c.Stream(ctx, messages) {
		if err != nil {
			return "", fmt.Errorf("streaming completion: %w", err)
		}
		if fragment == "" {
			continue
		}
		builder.WriteString(fragment)
		sink(fragment)
	}

	return nonEmpty(builder.String())
}

func nonEmpty(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Without returns messages with every entry of the given role removed.
func Without(messages []Message, role Role) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != role {
			out = append(out, m)
		}
	}
	return out
}
