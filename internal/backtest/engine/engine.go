package engine

import (
	"context"

	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Lifecycle callback types for a backtest run.
// Callbacks with an error return abort the run if they return an error.

// OnRunStartCallback is called once the series is validated, before the first bar.
// runID is the unique identifier reported in the result.
type OnRunStartCallback func(runID string, strategyName string, totalBars int) error

// OnProcessDataCallback is called after each bar is processed.
type OnProcessDataCallback func(current int, total int) error

// OnDiagnosticCallback is called for every non-fatal condition recorded during the run.
type OnDiagnosticCallback func(diagnostic types.Diagnostic)

// OnRunEndCallback is called when the run ends (always called via defer).
// result is nil when the run failed without a result.
type OnRunEndCallback func(result *types.BacktestResult, err error)

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnProcessData *OnProcessDataCallback
	OnDiagnostic  *OnDiagnosticCallback
	OnRunEnd      *OnRunEndCallback
}

// State is the lifecycle state of an engine instance.
type State string

const (
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Engine replays one price series through one strategy. An instance runs at most once.
type Engine interface {
	// Run replays bars through s, which must implement strategy.Strategy or strategy.BatchStrategy.
	// The context is checked between bars; a cancelled run returns its partial result together
	// with an ErrCodeRunCancelled error.
	Run(ctx context.Context, bars []types.Bar, s strategy.Named, callbacks LifecycleCallbacks) (*types.BacktestResult, error)
	// State returns the current lifecycle state.
	State() State
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
