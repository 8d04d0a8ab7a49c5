package metrics

import (
	"time"

	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of a strategy build.
const (
	OutcomeOK      = "ok"
	OutcomeBlocked = "blocked" // built, but carrying error diagnostics
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus instruments of the decision layer.
type Metrics struct {
	// --- Strategies ---
	StrategyBuilds   *prometheus.CounterVec
	StrategyDuration *prometheus.HistogramVec
	Diagnostics      *prometheus.CounterVec

	// --- Solvers ---
	SolverRuns *prometheus.CounterVec

	// --- Snapshot cache ---
	SnapshotLookups *prometheus.CounterVec
	SnapshotsPruned prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StrategyBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dma_strategy_builds_total",
			Help: "Strategies assembled, by product, action and outcome",
		}, []string{"product", "action", "outcome"}),

		StrategyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dma_strategy_build_duration_seconds",
			Help:    "Time to simulate, validate and encode one strategy",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"product", "action"}),

		Diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dma_diagnostics_total",
			Help: "Validation findings attached to built strategies",
		}, []string{"category", "name"}),

		SolverRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dma_solver_runs_total",
			Help: "Capacity solver invocations",
		}, []string{"solver", "outcome"}),

		SnapshotLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dma_snapshot_lookups_total",
			Help: "Snapshot cache lookups (hit/miss)",
		}, []string{"result"}),

		SnapshotsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "dma_snapshots_pruned_total",
			Help: "Snapshots removed by the pruning job",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dma_http_requests_total",
			Help: "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveStrategy records one build attempt. diags is ignored when err is set.
func (m *Metrics) ObserveStrategy(product, action string, started time.Time, diags types.Diagnostics, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case diags.HasErrors():
		outcome = OutcomeBlocked
	}
	m.StrategyBuilds.WithLabelValues(product, action, outcome).Inc()
	m.StrategyDuration.WithLabelValues(product, action).Observe(time.Since(started).Seconds())
	if err != nil {
		return
	}

	for category, list := range map[string][]types.Diagnostic{
		"error":   diags.Errors,
		"warning": diags.Warnings,
		"notice":  diags.Notices,
		"success": diags.Successes,
	} {
		for _, d := range list {
			m.Diagnostics.WithLabelValues(category, d.Name).Inc()
		}
	}
}

func (m *Metrics) ObserveSolver(solver string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.SolverRuns.WithLabelValues(solver, outcome).Inc()
}

// ObserveSnapshotLookup matches the SnapshotCache lookup hook.
func (m *Metrics) ObserveSnapshotLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SnapshotLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SnapshotsPruned.Add(float64(n))
}
