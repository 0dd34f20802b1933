package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/lib/pq" // postgres driver
	"github.com/soheilhy/cmux"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/nyashahama/multimodal-risk-engine/internal/api"
	"github.com/nyashahama/multimodal-risk-engine/internal/config"
	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
	"github.com/nyashahama/multimodal-risk-engine/internal/health"
	"github.com/nyashahama/multimodal-risk-engine/internal/metrics"
	"github.com/nyashahama/multimodal-risk-engine/internal/store"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"provider", cfg.GatewayProvider,
		"model", cfg.Model(),
	)

	// Root context cancelled by OS signal. Every background goroutine respects it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Gateway ───────────────────────────────────────────────────────────────
	gw := cfg.NewGateway(logger)

	// ── Engine ────────────────────────────────────────────────────────────────
	metrics.Register()
	eng, err := engine.New(
		strategy.Builtin(gw, strategy.Config{Model: cfg.Model()}, logger),
		logger,
		engine.WithObserver(metrics.Recorder{}),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	logger.Info("engine ready", "strategies", eng.Names())

	// ── Database (optional) ───────────────────────────────────────────────────
	var analyses api.AnalysisStore
	if cfg.DatabaseURL != "" {
		pool, err := openDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		analyses = st
		logger.Info("database connected, analysis history enabled")
	} else {
		logger.Info("DATABASE_URL not set, analysis history disabled")
	}

	// ── gRPC health ───────────────────────────────────────────────────────────
	grpcHealth := grpchealth.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, grpcHealth)
	reflection.Register(grpcServer)

	monitor := health.NewMonitor(gw, grpcHealth, health.Config{
		Interval: cfg.HealthInterval,
	}, logger)
	go monitor.Start(ctx)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(eng, analyses, monitor, api.Config{
		Env:            cfg.Env,
		MaxImageBytes:  cfg.MaxImageBytes,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second, // model calls dominate
		IdleTimeout:  120 * time.Second,
	}

	// ── Listener ──────────────────────────────────────────────────────────────
	// HTTP and gRPC share one port. gRPC clients are recognised by their
	// content-type header.
	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	serverErr := make(chan error, 3)
	go func() {
		if err := grpcServer.Serve(grpcL); err != nil && ctx.Err() == nil {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := srv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("server listening", "addr", lis.Addr().String())
		if err := mux.Serve(); err != nil && ctx.Err() == nil {
			serverErr <- fmt.Errorf("cmux: %w", err)
		}
	}()

	// Block until either a signal arrives or a server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	grpcHealth.Shutdown()

	// Give in-flight requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	grpcServer.GracefulStop()
	_ = lis.Close()

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and pings it, retrying until the database
// accepts connections or the attempts run out.
func openDB(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return pool.PingContext(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("database not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
