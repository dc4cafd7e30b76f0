// Package metrics provides Prometheus instrumentation for backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished runs, partitioned by final state.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "argo_backtest_runs_total",
		Help: "Total number of backtest runs by final state",
	}, []string{"state"})

	// RunDuration tracks the wall time of a run.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "argo_backtest_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"strategy"})

	// ActiveRuns tracks runs currently replaying bars.
	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "argo_backtest_active_runs",
		Help: "Number of backtest runs in progress",
	})

	// BarsProcessed counts bars replayed across all runs.
	BarsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "argo_backtest_bars_processed_total",
		Help: "Total bars replayed",
	})

	// FillsTotal counts simulated fills by side.
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "argo_backtest_fills_total",
		Help: "Total simulated fills",
	}, []string{"side"})

	// DiagnosticsTotal counts non-fatal conditions by code.
	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "argo_backtest_diagnostics_total",
		Help: "Total non-fatal diagnostics recorded",
	}, []string{"code"})
)

// WriteTextfile dumps the default registry in the text exposition format, for the node
// exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
