// Package strategy holds the prompt formulations the engine can run. Each
// strategy builds a prompt from request metadata, calls the model gateway and
// interprets the reply into a loosely typed field map.
//
// Strategies are independent implementations of one interface; new ones are
// added by implementing Strategy and registering it with the engine.
package strategy

import (
	"context"
	"log/slog"

	"github.com/nyashahama/multimodal-risk-engine/internal/extract"
	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
)

// Strategy is one way of asking the model for a risk assessment.
type Strategy interface {
	// Name is the registry key, e.g. "zero_shot_risk_assessment".
	Name() string

	// Description is a one-line human summary.
	Description() string

	// Schema is the output contract for this strategy's fields.
	Schema() schema.OutputSchema

	// Prompt renders the deterministic prompt for md.
	Prompt(md Metadata) string

	// Execute runs the strategy once. It never panics on model output and
	// reports transport failures through Outcome rather than an error.
	Execute(ctx context.Context, image []byte, md Metadata) Outcome
}

// Outcome is the raw result of one strategy execution, before schema repair.
type Outcome struct {
	// Success is false only when the gateway failed.
	Success bool

	// Fields is the parsed model object, or the schema's default record when
	// ParseError is set.
	Fields map[string]any

	// RawText is the model's reply; nil when the model returned nothing.
	RawText *string

	ParseError bool

	// ParseDetail explains why parsing failed.
	ParseDetail string

	// Error is set when Success is false.
	Error string
}

// Config is shared by the built-in strategies.
type Config struct {
	// Model is passed to the gateway on every call. Empty means the
	// gateway's own default.
	Model string
}

// Builtin returns the strategies that ship with the service.
func Builtin(gw gateway.Gateway, cfg Config, logger *slog.Logger) []Strategy {
	return []Strategy{
		NewZeroShot(gw, cfg, logger),
		NewFewShot(gw, cfg, logger),
	}
}

// generate calls the gateway with prompt and turns the reply into an Outcome.
// Unparsable replies degrade to the schema's default record.
func generate(ctx context.Context, gw gateway.Gateway, model, name, prompt string, image []byte, out schema.OutputSchema, logger *slog.Logger) Outcome {
	text, err := gw.Generate(ctx, prompt, image, model)
	if err != nil {
		logger.Warn("strategy: gateway call failed", "strategy", name, "error", err)
		return Outcome{Success: false, Error: err.Error()}
	}

	fields, err := extract.ParseObject(text)
	if err != nil {
		logger.Info("strategy: model reply not parsable, using defaults",
			"strategy", name,
			"error", err,
			"reply_chars", len(text),
		)
		return Outcome{
			Success:     true,
			Fields:      out.Defaults(),
			RawText:     &text,
			ParseError:  true,
			ParseDetail: err.Error(),
		}
	}

	return Outcome{Success: true, Fields: fields, RawText: &text}
}
