// Package strategy defines the contracts a trading strategy implements to be replayed by the
// backtest engine, adapters for plain functions and precomputed signals, and the built-in
// strategies.
package strategy

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Context is the data visible to a streaming strategy at one bar.
type Context struct {
	// Bars is the causal prefix of the series, ending with the current bar.
	Bars []types.Bar
	// Index is the position of the current bar in the full series.
	Index int
}

// Current returns the bar the signal is generated for.
func (c Context) Current() types.Bar {
	return c.Bars[len(c.Bars)-1]
}

// Strategy produces one signal per bar from the data seen so far.
type Strategy interface {
	// Name returns the identifier reported in results.
	Name() string
	// GenerateSignal returns the signal for the last bar of ctx.Bars.
	GenerateSignal(ctx Context) (types.Signal, error)
}

// BatchStrategy produces the signals of a whole series at once. The result must hold
// exactly one signal per bar, in order.
type BatchStrategy interface {
	Name() string
	GenerateSignals(bars []types.Bar) ([]types.Signal, error)
}

type funcStrategy struct {
	name string
	fn   func(ctx Context) (types.Signal, error)
}

// Func adapts a plain function into a Strategy.
func Func(name string, fn func(ctx Context) (types.Signal, error)) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

func (f *funcStrategy) Name() string {
	return f.name
}

func (f *funcStrategy) GenerateSignal(ctx Context) (types.Signal, error) {
	return f.fn(ctx)
}

type signalsStrategy struct {
	name    string
	signals []types.Signal
}

// FromSignals wraps a precomputed signal sequence. Alignment with the series is checked by the engine.
func FromSignals(name string, signals []types.Signal) BatchStrategy {
	return &signalsStrategy{name: name, signals: append([]types.Signal(nil), signals...)}
}

func (s *signalsStrategy) Name() string {
	return s.name
}

func (s *signalsStrategy) GenerateSignals(bars []types.Bar) ([]types.Signal, error) {
	return append([]types.Signal(nil), s.signals...), nil
}

// FromTypes builds a signal sequence from bare types, leaving the times to the bar index.
func FromTypes(signalTypes ...types.SignalType) []types.Signal {
	signals := make([]types.Signal, len(signalTypes))
	for i, t := range signalTypes {
		signals[i] = types.Signal{Type: t}
	}

	return signals
}

func signal(bar types.Bar, signalType types.SignalType, reason string) types.Signal {
	return types.Signal{Time: bar.Time, Type: signalType, Reason: reason}
}

// Named is anything the engine can run: a Strategy or a BatchStrategy.
type Named interface {
	Name() string
}
