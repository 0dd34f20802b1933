// Package engine is the orchestration core. It owns the strategy registry,
// times every run, repairs model output against the strategy's schema and
// guarantees that Run always returns a Result, never an error or a panic.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

// Observer is notified after every run. Observers must not block; the
// engine calls them synchronously before Run returns.
type Observer interface {
	OnResult(ctx context.Context, res Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res Result)

func (f ObserverFunc) OnResult(ctx context.Context, res Result) { f(ctx, res) }

type entry struct {
	strategy  strategy.Strategy
	schema    schema.OutputSchema
	validator *schema.Validator
}

// Engine maps strategy names to strategies and their output schemas. It is
// read-only after New and safe for concurrent use.
type Engine struct {
	entries   map[string]entry
	names     []string
	observers []Observer
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers o to receive every Result.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// New builds the registry. Duplicate names and inconsistent schemas are
// rejected here so Run never meets them.
func New(strategies []strategy.Strategy, logger *slog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		entries: make(map[string]entry, len(strategies)),
		logger:  logger,
	}

	var errs []error
	for _, s := range strategies {
		name := s.Name()
		if name == "" {
			errs = append(errs, errors.New("engine: strategy with empty name"))
			continue
		}
		if _, dup := e.entries[name]; dup {
			errs = append(errs, fmt.Errorf("engine: duplicate strategy %q", name))
			continue
		}
		sch := s.Schema()
		if err := sch.Check(); err != nil {
			errs = append(errs, fmt.Errorf("engine: strategy %q: %w", name, err))
			continue
		}
		v, err := schema.NewValidator(sch)
		if err != nil {
			errs = append(errs, fmt.Errorf("engine: strategy %q: %w", name, err))
			continue
		}
		e.entries[name] = entry{strategy: s, schema: sch, validator: v}
		e.names = append(e.names, name)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(e.entries) == 0 {
		return nil, errors.New("engine: no strategies registered")
	}
	sort.Strings(e.names)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ListStrategies returns name → description for every registered strategy.
func (e *Engine) ListStrategies() map[string]string {
	out := make(map[string]string, len(e.entries))
	for name, en := range e.entries {
		out[name] = en.strategy.Description()
	}
	return out
}

// Names returns the registered strategy names, sorted.
func (e *Engine) Names() []string {
	return append([]string(nil), e.names...)
}

// Schema returns the output schema registered for name.
func (e *Engine) Schema(name string) (schema.OutputSchema, bool) {
	en, ok := e.entries[name]
	return en.schema, ok
}

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	_, ok := e.entries[name]
	return ok
}

// NotFoundMessage is the caller-facing error for an unknown strategy.
func (e *Engine) NotFoundMessage(name string) string {
	return fmt.Sprintf("strategy %q not found; available strategies: %s", name, strings.Join(e.names, ", "))
}

// Run executes the named strategy against image and md. It always returns a
// Result: validated success, degraded success, or a structured failure.
// ProcessingTime covers the whole call including failures.
func (e *Engine) Run(ctx context.Context, image []byte, md strategy.Metadata, name string) (res Result) {
	start := time.Now()
	res = Result{
		ID:        uuid.New(),
		Strategy:  name,
		CreatedAt: start.UTC(),
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("engine: recovered panic",
				"strategy", name,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			res.fail(OutcomeInternalError, fmt.Sprintf("internal engine error: %v", p))
		}
		res.ProcessingTime = time.Since(start).Seconds()
		e.finish(ctx, res)
	}()

	en, ok := e.entries[name]
	if !ok {
		res.fail(OutcomeCallerError, e.NotFoundMessage(name))
		return res
	}
	if err := md.Validate(); err != nil {
		res.fail(OutcomeCallerError, err.Error())
		return res
	}

	out := en.strategy.Execute(ctx, image, md)
	res.RawResponse = out.RawText

	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "strategy failed without an error message"
		}
		res.fail(OutcomeTransportError, msg)
		return res
	}

	fields, repairs := en.schema.Repair(out.Fields)
	if err := en.validator.Validate(fields); err != nil {
		res.fail(OutcomeInternalError, "internal engine error: "+err.Error())
		return res
	}

	res.Success = true
	res.Fields = fields
	res.ParseError = out.ParseError
	res.ParseErrorDetail = out.ParseDetail
	res.Repairs = repairs
	res.Outcome = OutcomeSuccess

	if !out.ParseError && len(repairs) == len(en.schema.Fields) {
		res.ValidationFailed = true
		res.ValidationError = "no field of the model output satisfied the schema; defaults substituted"
		res.OriginalFields = out.Fields
	}
	if res.ParseError || res.ValidationFailed {
		res.Outcome = OutcomeDegraded
	}
	return res
}

func (e *Engine) finish(ctx context.Context, res Result) {
	e.logger.Info("engine: run complete",
		"id", res.ID,
		"strategy", res.Strategy,
		"outcome", res.Outcome,
		"repairs", len(res.Repairs),
		"duration_ms", int64(res.ProcessingTime*1000),
	)
	for _, o := range e.observers {
		e.notify(ctx, o, res)
	}
}

func (e *Engine) notify(ctx context.Context, o Observer, res Result) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("engine: observer panicked", "panic", p)
		}
	}()
	o.OnResult(ctx, res)
}
