// Package metrics exposes Prometheus collectors for engine runs and gateway
// health.
package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
)

var (
	once sync.Once

	// RunsTotal counts engine runs by strategy and outcome.
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Total number of engine runs, labeled by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// RunDurationSeconds is Result.ProcessingTime per run.
	RunDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "risk",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "End-to-end engine run time including the model call.",
		// Vision models on CPU routinely take tens of seconds.
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"strategy", "outcome"})

	// FieldRepairsTotal counts schema repairs per field.
	FieldRepairsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "risk",
		Subsystem: "engine",
		Name:      "field_repairs_total",
		Help:      "Total number of output fields replaced or truncated during schema repair.",
	}, []string{"strategy", "field", "reason"})

	// GatewayUp is 1 when the last health probe of the model backend passed.
	GatewayUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "risk",
		Subsystem: "engine",
		Name:      "gateway_up",
		Help:      "Whether the model backend answered the last health probe.",
	})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RunsTotal,
			RunDurationSeconds,
			FieldRepairsTotal,
			GatewayUp,
		)
	})
}

// Recorder is an engine.Observer that updates the run collectors.
type Recorder struct{}

// OnResult implements engine.Observer.
func (Recorder) OnResult(_ context.Context, res engine.Result) {
	outcome := string(res.Outcome)
	RunsTotal.WithLabelValues(res.Strategy, outcome).Inc()
	RunDurationSeconds.WithLabelValues(res.Strategy, outcome).Observe(res.ProcessingTime)
	for _, r := range res.Repairs {
		FieldRepairsTotal.WithLabelValues(res.Strategy, r.Field, r.Reason).Inc()
	}
}

// SetGatewayUp records a health probe result.
func SetGatewayUp(up bool) {
	if up {
		GatewayUp.Set(1)
		return
	}
	GatewayUp.Set(0)
}
