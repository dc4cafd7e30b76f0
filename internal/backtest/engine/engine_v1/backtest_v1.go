package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/performance"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

var _ engine.Engine = (*BacktestEngineV1)(nil)

// BacktestEngineV1 replays one series through one strategy. Each instance owns the ledger,
// trade log and equity curve of exactly one run.
type BacktestEngineV1 struct {
	config BacktestEngineV1Config
	log    *logger.Logger

	mu      sync.Mutex
	state   engine.State
	started bool
}

// NewBacktestEngineV1 validates config and returns an engine in the initialized state.
func NewBacktestEngineV1(config BacktestEngineV1Config, log *logger.Logger) (*BacktestEngineV1, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BacktestEngineV1{
		config: config,
		log:    log,
		state:  engine.StateInitialized,
	}, nil
}

// NewBacktestEngineV1FromYAML parses a YAML config and returns an engine.
func NewBacktestEngineV1FromYAML(data []byte, log *logger.Logger) (*BacktestEngineV1, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	return NewBacktestEngineV1(config, log)
}

// State implements engine.Engine.
func (b *BacktestEngineV1) State() engine.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Config returns the validated configuration.
func (b *BacktestEngineV1) Config() BacktestEngineV1Config {
	return b.config
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}

func (b *BacktestEngineV1) setState(state engine.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = state
}

// run holds everything that lives for the duration of one Run call.
type run struct {
	id        string
	symbol    string
	bars      []types.Bar
	strategy  strategy.Named
	streaming strategy.Strategy
	signals   []types.Signal
	callbacks engine.LifecycleCallbacks

	ledger      *PositionLedger
	simulator   *ExecutionSimulator
	equity      *EquityTracker
	diagnostics []types.Diagnostic
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, bars []types.Bar, s strategy.Named, callbacks engine.LifecycleCallbacks) (result *types.BacktestResult, err error) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()

		return nil, errors.Newf(errors.ErrCodeEngineReused, "engine already ran (state %s), create a new engine for each run", b.state)
	}

	b.started = true
	b.mu.Unlock()

	begin := time.Now()
	r := &run{id: uuid.New().String(), callbacks: callbacks}

	defer func() {
		state := engine.StateCompleted
		if err != nil {
			state = engine.StateFailed
		}

		b.setState(state)
		metrics.RunsTotal.WithLabelValues(string(state)).Inc()

		if s != nil {
			metrics.RunDuration.WithLabelValues(s.Name()).Observe(time.Since(begin).Seconds())
		}

		if callbacks.OnRunEnd != nil {
			(*callbacks.OnRunEnd)(result, err)
		}
	}()

	if err := b.prepare(r, bars, s); err != nil {
		b.log.Error("Backtest failed before running", zap.String("run_id", r.id), zap.Error(err))

		return nil, err
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(r.id, s.Name(), len(r.bars)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCallbackFailed, "OnRunStart callback failed", err)
		}
	}

	b.setState(engine.StateRunning)
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	b.log.Info("Backtest started",
		zap.String("run_id", r.id),
		zap.String("strategy", s.Name()),
		zap.String("symbol", r.symbol),
		zap.Int("bars", len(r.bars)),
		zap.String("fill_timing", string(b.config.FillTiming)),
	)

	completed, err := b.replay(ctx, r)
	if err != nil && !errors.HasCode(err, errors.ErrCodeRunCancelled) {
		b.log.Error("Backtest failed", zap.String("run_id", r.id), zap.Int("bar", completed), zap.Error(err))

		return nil, err
	}

	cancelled := err != nil
	result = b.buildResult(r, completed, cancelled)

	if cancelled {
		b.log.Warn("Backtest cancelled",
			zap.String("run_id", r.id),
			zap.Int("bars_processed", completed),
			zap.Int("bars_total", len(r.bars)),
		)

		return result, err
	}

	b.log.Info("Backtest completed",
		zap.String("run_id", r.id),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Float64("total_return", result.TotalReturn),
		zap.Float64("peak_equity", r.equity.Peak()),
		zap.Float64("max_drawdown", result.MaxDrawdown),
		zap.Float64("sharpe_ratio", result.SharpeRatio),
		zap.Int("trades", result.TradeCount),
		zap.Int("diagnostics", len(result.Diagnostics)),
	)

	return result, nil
}

// prepare validates the series, resolves the strategy contract and evaluates batch strategies.
func (b *BacktestEngineV1) prepare(r *run, bars []types.Bar, s strategy.Named) error {
	if s == nil {
		return errors.New(errors.ErrCodeUnsupportedStrategy, "strategy is nil")
	}

	r.strategy = s

	if err := types.ValidateSeries(bars); err != nil {
		return err
	}

	series := b.window(bars)
	if len(series) == 0 {
		return errors.New(errors.ErrCodeDataIntegrity, "no bars inside the configured time range")
	}

	symbol, err := b.resolveSymbol(series)
	if err != nil {
		return err
	}

	r.symbol = symbol
	// the engine never writes to the caller's slice
	r.bars = append([]types.Bar(nil), series...)

	switch impl := s.(type) {
	case strategy.BatchStrategy:
		signals, err := impl.GenerateSignals(append([]types.Bar(nil), r.bars...))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "strategy %s failed to generate signals", s.Name())
		}

		if len(signals) != len(r.bars) {
			return errors.Newf(errors.ErrCodeSignalAlignment, "strategy %s returned %d signals for %d bars", s.Name(), len(signals), len(r.bars))
		}

		for i, signal := range signals {
			if err := checkAlignment(i, signal, r.bars[i]); err != nil {
				return err
			}
		}

		r.signals = signals
	case strategy.Strategy:
		r.streaming = impl
	default:
		return errors.Newf(errors.ErrCodeUnsupportedStrategy, "%s implements neither Strategy nor BatchStrategy", s.Name())
	}

	r.ledger = NewPositionLedger(r.symbol, b.config.InitialCapital, b.config.CommissionFee(), b.config.QuantityPrecision)
	r.simulator = NewExecutionSimulator(r.ledger, b.config, r.symbol, b.log)
	r.equity = NewEquityTracker(len(r.bars))

	return nil
}

// window keeps the bars inside the configured time range, bounds inclusive.
func (b *BacktestEngineV1) window(bars []types.Bar) []types.Bar {
	start, end := 0, len(bars)

	if b.config.StartTime.IsSome() {
		from := b.config.StartTime.Unwrap()
		for start < end && bars[start].Time.Before(from) {
			start++
		}
	}

	if b.config.EndTime.IsSome() {
		to := b.config.EndTime.Unwrap()
		for end > start && bars[end-1].Time.After(to) {
			end--
		}
	}

	return bars[start:end]
}

func (b *BacktestEngineV1) resolveSymbol(bars []types.Bar) (string, error) {
	symbol := b.config.Symbol

	for i, bar := range bars {
		if bar.Symbol == "" {
			continue
		}

		if symbol == "" {
			symbol = bar.Symbol
		}

		if bar.Symbol != symbol {
			return "", errors.Wrap(errors.ErrCodeDataIntegrity, "series must hold a single instrument",
				errors.NewBarError(i, "symbol", "symbol %s differs from %s", bar.Symbol, symbol))
		}
	}

	return symbol, nil
}

func checkAlignment(index int, signal types.Signal, bar types.Bar) error {
	if !signal.Time.IsZero() && !signal.Time.Equal(bar.Time) {
		return errors.Newf(errors.ErrCodeSignalAlignment, "signal %d has time %s, bar has %s",
			index, signal.Time.Format(time.RFC3339Nano), bar.Time.Format(time.RFC3339Nano))
	}

	if !signal.Type.Valid() {
		return errors.Newf(errors.ErrCodeSignalAlignment, "signal %d has unknown type %q", index, signal.Type)
	}

	return nil
}

// replay runs the bar loop and returns how many bars were fully processed.
func (b *BacktestEngineV1) replay(ctx context.Context, r *run) (int, error) {
	total := len(r.bars)
	last := total - 1

	var pending *types.Signal

	for i, bar := range r.bars {
		if err := ctx.Err(); err != nil {
			return i, errors.Wrapf(errors.ErrCodeRunCancelled, err, "run cancelled after %d of %d bars", i, total)
		}

		if pending != nil {
			if err := b.execute(r, pending.Type, bar.Open, bar.Time); err != nil {
				return i, err
			}

			pending = nil
		}

		signal, err := b.signalAt(r, i)
		if err != nil {
			return i, err
		}

		switch {
		case signal.Type == types.SignalTypeHold:
		case b.config.FillTiming == FillNextBarOpen && i == last:
			b.record(r, types.NewDiagnostic(errors.ErrCodeUnfilledSignal, bar.Time,
				fmt.Sprintf("%s signal on the last bar has no next bar to fill at", signal.Type)))
		case b.config.FillTiming == FillNextBarOpen:
			pending = &signal
		default:
			if err := b.execute(r, signal.Type, bar.Close, bar.Time); err != nil {
				return i, err
			}
		}

		if i == last && b.config.EndOfRunPolicy == EndOfRunForceClose && r.ledger.IsOpen() {
			execution, err := r.simulator.ForceClose(bar.Close, bar.Time)
			if err != nil {
				return i, err
			}

			b.observe(r, execution)
		}

		r.equity.Record(bar.Time, r.ledger.Snapshot(bar.Close))
		metrics.BarsProcessed.Inc()

		if r.callbacks.OnProcessData != nil {
			if err := (*r.callbacks.OnProcessData)(i+1, total); err != nil {
				return i, errors.Wrap(errors.ErrCodeCallbackFailed, "OnProcessData callback failed", err)
			}
		}
	}

	return total, nil
}

// signalAt returns the aligned signal for bar i.
func (b *BacktestEngineV1) signalAt(r *run, i int) (types.Signal, error) {
	bar := r.bars[i]

	var signal types.Signal

	if r.streaming == nil {
		signal = r.signals[i]
	} else {
		// capacity is capped so a strategy cannot append into later bars
		prefix := r.bars[: i+1 : i+1]

		generated, err := r.streaming.GenerateSignal(strategy.Context{Bars: prefix, Index: i})
		if err != nil {
			return types.Signal{}, errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err, "strategy %s failed at bar %d", r.streaming.Name(), i)
		}

		if err := checkAlignment(i, generated, bar); err != nil {
			return types.Signal{}, err
		}

		signal = generated
	}

	if signal.Time.IsZero() {
		signal.Time = bar.Time
	}

	return signal, nil
}

func (b *BacktestEngineV1) execute(r *run, signalType types.SignalType, refPrice float64, t time.Time) error {
	execution, err := r.simulator.Execute(signalType, refPrice, t)
	if err != nil {
		return err
	}

	b.observe(r, execution)

	return nil
}

func (b *BacktestEngineV1) observe(r *run, execution Execution) {
	if execution.Fill.IsSome() {
		fill := execution.Fill.Unwrap()
		metrics.FillsTotal.WithLabelValues(string(fill.Side)).Inc()
	}

	for _, d := range execution.Diagnostics {
		b.record(r, d)
	}
}

func (b *BacktestEngineV1) record(r *run, diagnostic types.Diagnostic) {
	r.diagnostics = append(r.diagnostics, diagnostic)
	metrics.DiagnosticsTotal.WithLabelValues(diagnostic.Code.String()).Inc()

	b.log.Warn("Backtest diagnostic",
		zap.String("run_id", r.id),
		zap.String("code", diagnostic.Code.String()),
		zap.Time("time", diagnostic.Time),
		zap.String("message", diagnostic.Message),
	)

	if r.callbacks.OnDiagnostic != nil {
		(*r.callbacks.OnDiagnostic)(diagnostic)
	}
}

// buildResult assembles the result from the first completed bars. Nothing in it aliases engine state.
func (b *BacktestEngineV1) buildResult(r *run, completed int, partial bool) *types.BacktestResult {
	curve := r.equity.Points()
	trades := r.simulator.Trades()
	processed := r.bars[:completed]

	result := &types.BacktestResult{
		ID:             r.id,
		Symbol:         r.symbol,
		StrategyName:   r.strategy.Name(),
		InitialCapital: b.config.InitialCapital,
		FinalEquity:    b.config.InitialCapital,
		Partial:        partial,
		Trades:         trades,
		EquityCurve:    curve,
	}

	var unrealized float64

	if completed > 0 {
		first, lastBar := processed[0], processed[completed-1]
		result.StartTime = first.Time
		result.EndTime = lastBar.Time

		if point, ok := r.equity.Last(); ok {
			result.FinalEquity = point.TotalEquity
		}

		if r.ledger.IsOpen() {
			position := r.ledger.Position()
			result.OpenPosition = &position
			_, unrealized = r.ledger.MarkToMarket(lastBar.Close)
		}

		if first.Close > 0 {
			result.BuyAndHoldReturn = lastBar.Close/first.Close - 1
		} else {
			b.record(r, types.NewDiagnostic(errors.ErrCodeMetricUndefined, first.Time, "buy and hold return undefined: first close is zero"))
		}
	}

	m, diagnostics := performance.Analyze(performance.Input{
		EquityCurve:    curve,
		Trades:         trades,
		InitialCapital: b.config.InitialCapital,
		BarDuration:    types.BarDuration(processed),
		RiskFreeRate:   b.config.RiskFreeRate,
		PeriodsPerYear: b.config.PeriodsPerYear,
		UnrealizedPnL:  unrealized,
		RunningMax:     r.equity.RunningMax(),
	})

	for _, d := range diagnostics {
		b.record(r, d)
	}

	result.Metrics = m
	result.TotalReturn = m.TotalReturn
	result.MaxDrawdown = m.MaxDrawdown
	result.Volatility = m.Volatility
	result.SharpeRatio = m.SharpeRatio
	result.WinRate = m.WinRate
	result.TradeCount = m.TradeCount
	result.Diagnostics = append([]types.Diagnostic(nil), r.diagnostics...)

	return result
}
