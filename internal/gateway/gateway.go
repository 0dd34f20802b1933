// Package gateway defines the boundary to the multimodal model and provides
// Ollama and OpenAI-compatible implementations.
package gateway

import (
	"context"
	"errors"
)

// Gateway sends one prompt plus one image to a model and returns the model's
// text. A non-nil error means the model could not be reached or answered with
// something other than text; callers do not retry.
//
// Implementations own their timeout and must be safe for concurrent use.
type Gateway interface {
	Generate(ctx context.Context, prompt string, image []byte, model string) (string, error)
}

// Pinger reports whether the model backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrNoChoices is returned when an OpenAI-compatible backend answers with no
// completion choices.
var ErrNoChoices = errors.New("gateway: response contained no choices")

// Client is a Gateway that can also be health-checked.
type Client interface {
	Gateway
	Pinger
}
