// Package api implements the HTTP layer for the risk inference engine.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
	"github.com/nyashahama/multimodal-risk-engine/internal/health"
	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
	"github.com/nyashahama/multimodal-risk-engine/internal/store"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

// Version is reported by GET /.
const Version = "1.0.0"

// Engine is the subset of *engine.Engine the handlers use.
type Engine interface {
	ListStrategies() map[string]string
	Has(name string) bool
	NotFoundMessage(name string) string
	Schema(name string) (schema.OutputSchema, bool)
	Run(ctx context.Context, image []byte, md strategy.Metadata, name string) engine.Result
}

// AnalysisStore persists and reads back executed analyses. *store.Store
// satisfies it.
type AnalysisStore interface {
	Save(ctx context.Context, a store.Analysis) error
	Get(ctx context.Context, id uuid.UUID) (store.Analysis, error)
	ListRecent(ctx context.Context, strategyName string, limit int) ([]store.Analysis, error)
}

// HealthReporter exposes the last model backend probe. *health.Monitor
// satisfies it.
type HealthReporter interface {
	Status() health.Status
}

// Config holds values read from configuration at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// MaxImageBytes caps uploaded images. Larger uploads get 413.
	MaxImageBytes int64

	// RequestTimeout bounds every request, including the model call.
	RequestTimeout time.Duration
}

// Server holds all shared dependencies.
type Server struct {
	engine Engine

	// store is nil when no database is configured; analyses are then not
	// persisted and /analyses answers 501.
	store AnalysisStore

	health HealthReporter

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. st may be nil.
func NewServer(eng Engine, st AnalysisStore, hr HealthReporter, cfg Config, logger *slog.Logger) http.Handler {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	s := &Server{
		engine: eng,
		store:  st,
		health: hr,
		cfg:    cfg,
		logger: logger,
	}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Service ───────────────────────────────────────────────────────────────
	r.Get("/", s.handleRoot)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// ── Strategies ────────────────────────────────────────────────────────────
	r.Get("/strategies", s.handleListStrategies)
	r.Get("/strategies/{name}/schema", s.handleStrategySchema)

	// ── Analysis ──────────────────────────────────────────────────────────────
	r.Post("/analyze", s.handleAnalyze)
	r.Get("/analyses", s.handleListAnalyses)
	r.Get("/analyses/{id}", s.handleGetAnalysis)

	return r
}
