package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback wraps two clients. Generate calls the primary first and, if that
// fails, logs the failure and tries the secondary once.
//
// The model argument is passed to the primary only. The secondary always
// runs its own configured model, since model names rarely carry across
// providers.
type Fallback struct {
	primary   Client
	secondary Client
	logger    *slog.Logger
}

// NewFallback returns a Client that calls primary and, on failure, falls back
// to secondary. If secondary is nil and primary fails, the primary error is
// returned.
func NewFallback(primary, secondary Client, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Generate implements Gateway.
func (f *Fallback) Generate(ctx context.Context, prompt string, image []byte, model string) (string, error) {
	text, err := f.primary.Generate(ctx, prompt, image, model)
	if err == nil {
		return text, nil
	}
	if f.secondary == nil {
		return "", err
	}
	// A cancelled caller gets nothing from the secondary either.
	if ctx.Err() != nil {
		return "", err
	}

	f.logger.Warn("gateway: primary failed, trying secondary",
		"error", err,
		"image_bytes", len(image),
	)
	text, secErr := f.secondary.Generate(ctx, prompt, image, "")
	if secErr != nil {
		return "", fmt.Errorf("primary: %w; secondary: %w", err, secErr)
	}
	return text, nil
}

// Ping succeeds when either backend answers.
func (f *Fallback) Ping(ctx context.Context) error {
	err := f.primary.Ping(ctx)
	if err == nil || f.secondary == nil {
		return err
	}
	if secErr := f.secondary.Ping(ctx); secErr != nil {
		return errors.Join(err, secErr)
	}
	return nil
}
