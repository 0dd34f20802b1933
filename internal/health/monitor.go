// Package health tracks whether the model backend is reachable. A Monitor
// probes the gateway on an interval and publishes the result to the HTTP
// /health endpoint, the gRPC health service and the gateway_up gauge.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
	"github.com/nyashahama/multimodal-risk-engine/internal/metrics"
)

// Service is the gRPC health service name reported alongside the "" entry.
const Service = "risk.engine.v1.Engine"

// Config holds tuning parameters for the Monitor.
type Config struct {
	// Interval between probes. Default: 30s.
	Interval time.Duration

	// Timeout per probe. Default: 10s.
	Timeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Status is the last probe result.
type Status struct {
	Available bool      `json:"available"`
	CheckedAt time.Time `json:"checked_at"`
	LastError string    `json:"last_error,omitempty"`
}

// Monitor probes a gateway periodically. It is safe for concurrent use.
type Monitor struct {
	pinger gateway.Pinger
	grpc   *grpchealth.Server // optional
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewMonitor constructs a Monitor. grpcServer may be nil. Call Start to begin
// probing; until the first probe the backend is reported unavailable.
func NewMonitor(pinger gateway.Pinger, grpcServer *grpchealth.Server, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Monitor{
		pinger: pinger,
		grpc:   grpcServer,
		cfg:    cfg,
		logger: logger,
	}
}

// Start probes immediately and then on every Interval. It blocks until ctx is
// cancelled. Call it in a goroutine from main:
//
//	go monitor.Start(ctx)
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("health: monitor starting", "interval", m.cfg.Interval)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health: monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe, records it and returns whether the backend is up.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	err := m.pinger.Ping(probeCtx)
	cancel()

	next := Status{Available: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		next.LastError = err.Error()
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()

	switch {
	case next.Available && (!prev.Available || prev.CheckedAt.IsZero()):
		m.logger.Info("health: model backend available")
	case !next.Available && (prev.Available || prev.CheckedAt.IsZero()):
		m.logger.Warn("health: model backend unavailable", "error", err)
	}

	metrics.SetGatewayUp(next.Available)
	if m.grpc != nil {
		serving := healthpb.HealthCheckResponse_NOT_SERVING
		if next.Available {
			serving = healthpb.HealthCheckResponse_SERVING
		}
		m.grpc.SetServingStatus("", serving)
		m.grpc.SetServingStatus(Service, serving)
	}
	return next.Available
}

// Available reports the last probe result.
func (m *Monitor) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Available
}

// Status returns the last probe result.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
