package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/dma-labs/ajna-dma/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStrategyOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	ok := types.NewDiagnostics()
	ok.Successes = append(ok.Successes, types.Diagnostic{Name: "priceBetweenHtpAndLup"})
	m.ObserveStrategy("borrow", "open", time.Now(), ok, nil)

	blocked := types.NewDiagnostics()
	blocked.Errors = append(blocked.Errors, types.Diagnostic{Name: "generateAmountExceedsDebtCeiling"})
	m.ObserveStrategy("borrow", "open", time.Now(), blocked, nil)

	m.ObserveStrategy("multiply", "open", time.Now(), types.NewDiagnostics(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyBuilds.WithLabelValues("borrow", "open", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyBuilds.WithLabelValues("borrow", "open", OutcomeBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyBuilds.WithLabelValues("multiply", "open", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("success", "priceBetweenHtpAndLup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("error", "generateAmountExceedsDebtCeiling")))
}

func TestSnapshotCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSnapshotLookup(true)
	m.ObserveSnapshotLookup(false)
	m.ObserveSnapshotLookup(false)
	m.ObservePruned(3)
	m.ObservePruned(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SnapshotsPruned))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStrategy("earn", "open", time.Now(), types.NewDiagnostics(), nil)
		m.ObserveSolver("max_generate", nil)
		m.ObserveSnapshotLookup(true)
		m.ObservePruned(1)
	})
}
