package llm

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

type MessageInput struct {
	ClientKey    string
	Route        string
	Text         string
	SystemPrompt string
	MaxWords     int
}

type Responder interface {
	Reply(ctx context.Context, input MessageInput) (string, error)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, input MessageInput) (string, error)

func (f ResponderFunc) Reply(ctx context.Context, input MessageInput) (string, error) {
	return f(ctx, input)
}
