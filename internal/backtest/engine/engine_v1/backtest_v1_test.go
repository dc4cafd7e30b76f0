package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const day = 24 * time.Hour

type BacktestEngineV1TestSuite struct {
	suite.Suite
	t0 time.Time
}

func TestBacktestEngineV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestEngineV1TestSuite))
}

func (suite *BacktestEngineV1TestSuite) SetupTest() {
	suite.t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *BacktestEngineV1TestSuite) bars(closes ...float64) []types.Bar {
	return mocks.BarsFromCloses("AAPL", suite.t0, day, closes...)
}

func (suite *BacktestEngineV1TestSuite) newEngine(config BacktestEngineV1Config) *BacktestEngineV1 {
	e, err := NewBacktestEngineV1(config, logger.NewNopLogger())
	suite.Require().NoError(err)

	return e
}

func (suite *BacktestEngineV1TestSuite) fixedQuantity(capital, quantity float64) BacktestEngineV1Config {
	config := TestConfig(capital)
	config.PositionSizing = PositionSizing{Policy: SizingFixedQuantity, Value: quantity}

	return config
}

func (suite *BacktestEngineV1TestSuite) run(config BacktestEngineV1Config, bars []types.Bar, signals ...types.SignalType) (*types.BacktestResult, error) {
	e := suite.newEngine(config)

	return e.Run(context.Background(), bars, strategy.FromSignals("test", strategy.FromTypes(signals...)), engine.LifecycleCallbacks{})
}

func hasDiagnostic(result *types.BacktestResult, code errors.ErrorCode) bool {
	for _, d := range result.Diagnostics {
		if d.Code == code {
			return true
		}
	}

	return false
}

func (suite *BacktestEngineV1TestSuite) TestSingleRoundTrip() {
	result, err := suite.run(suite.fixedQuantity(10000, 10), suite.bars(100, 110), types.SignalTypeBuy, types.SignalTypeSell)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]
	suite.InDelta(100, trade.PnL(), 1e-9)
	suite.Equal(types.ExitReasonSignal, trade.ExitReason)
	suite.Equal(suite.t0, trade.EntryTime)
	suite.Equal(suite.t0.Add(day), trade.ExitTime.Unwrap())

	suite.InDelta(10100, result.FinalEquity, 1e-9)
	suite.InDelta(0.01, result.TotalReturn, 1e-12)
	suite.Equal(1, result.TradeCount)
	suite.Equal(1.0, result.WinRate)
	suite.InDelta(0.1, result.BuyAndHoldReturn, 1e-12)
	suite.False(result.Partial)
	suite.Nil(result.OpenPosition)
	suite.NotEmpty(result.ID)
	suite.Equal("AAPL", result.Symbol)
	suite.Equal("test", result.StrategyName)
	suite.Equal(suite.t0, result.StartTime)
	suite.Equal(suite.t0.Add(day), result.EndTime)
}

func (suite *BacktestEngineV1TestSuite) TestAllHold() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 101, 99, 102, 100),
		types.SignalTypeHold, types.SignalTypeHold, types.SignalTypeHold, types.SignalTypeHold, types.SignalTypeHold)
	suite.Require().NoError(err)

	suite.Empty(result.Trades)
	suite.Require().Len(result.EquityCurve, 5)

	for _, point := range result.EquityCurve {
		suite.Equal(10000.0, point.TotalEquity)
	}

	suite.Equal(0.0, result.SharpeRatio)
	suite.Equal(0.0, result.MaxDrawdown)
	suite.Equal(0.0, result.Volatility)
	suite.Equal(0.0, result.TotalReturn)
	suite.True(hasDiagnostic(result, errors.ErrCodeMetricUndefined))
}

func (suite *BacktestEngineV1TestSuite) TestCrashToZero() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 50, 0), types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeHold)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]
	suite.True(trade.IsClosed())
	suite.Equal(types.ExitReasonEndOfRun, trade.ExitReason)
	suite.InDelta(-trade.EntryPrice*trade.Quantity, trade.PnL(), 1e-9)
	suite.InDelta(-10000, trade.PnL(), 1e-9)

	suite.InDelta(0, result.FinalEquity, 1e-9)
	suite.InDelta(1, result.MaxDrawdown, 1e-12)
	suite.InDelta(-1, result.BuyAndHoldReturn, 1e-12)
	suite.Nil(result.OpenPosition)
}

func (suite *BacktestEngineV1TestSuite) TestRepeatedBuyIsIdempotent() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 105, 110, 120),
		types.SignalTypeBuy, types.SignalTypeBuy, types.SignalTypeBuy, types.SignalTypeSell)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(100.0, result.Trades[0].Quantity)
	suite.Equal(100.0, result.Trades[0].EntryPrice)
	suite.InDelta(2000, result.Trades[0].PnL(), 1e-9)
}

func (suite *BacktestEngineV1TestSuite) TestSellWhileFlatIsIgnored() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 105), types.SignalTypeSell, types.SignalTypeSell)
	suite.Require().NoError(err)

	suite.Empty(result.Trades)
	suite.Equal(10000.0, result.FinalEquity)
}

func (suite *BacktestEngineV1TestSuite) TestZeroCostRoundTrip() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 100, 100), types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeSell)
	suite.Require().NoError(err)

	suite.InDelta(10000, result.FinalEquity, 1e-9)
	suite.InDelta(0, result.Metrics.RealizedPnL, 1e-9)
}

func (suite *BacktestEngineV1TestSuite) TestCommissionAndSlippage() {
	config := suite.fixedQuantity(10000, 10)
	config.CommissionRate = 0.001
	config.SlippageRate = 0.01

	result, err := suite.run(config, suite.bars(100, 110), types.SignalTypeBuy, types.SignalTypeSell)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]
	suite.InDelta(101, trade.EntryPrice, 1e-9)
	suite.InDelta(108.9, trade.ExitPrice.Unwrap(), 1e-9)
	suite.InDelta(1.01, trade.EntryCommission, 1e-9)
	suite.InDelta(1.089, trade.ExitCommission, 1e-9)
	// (108.9 - 101) * 10 - 1.01 - 1.089
	suite.InDelta(76.901, trade.PnL(), 1e-9)
	suite.InDelta(10076.901, result.FinalEquity, 1e-9)
	suite.InDelta(2.099, result.Metrics.TotalFees, 1e-9)
}

func (suite *BacktestEngineV1TestSuite) TestNextBarOpen() {
	config := suite.fixedQuantity(10000, 10)
	config.FillTiming = FillNextBarOpen

	bars := []types.Bar{
		{Time: suite.t0, Symbol: "AAPL", Open: 100, High: 100, Low: 100, Close: 100},
		{Time: suite.t0.Add(day), Symbol: "AAPL", Open: 105, High: 110, Low: 105, Close: 110},
		{Time: suite.t0.Add(2 * day), Symbol: "AAPL", Open: 111, High: 120, Low: 111, Close: 120},
	}

	result, err := suite.run(config, bars, types.SignalTypeBuy, types.SignalTypeSell, types.SignalTypeBuy)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]
	suite.Equal(105.0, trade.EntryPrice)
	suite.Equal(suite.t0.Add(day), trade.EntryTime)
	suite.Equal(111.0, trade.ExitPrice.Unwrap())
	suite.InDelta(60, trade.PnL(), 1e-9)

	suite.Require().Len(result.EquityCurve, 3)
	suite.InDelta(10050, result.EquityCurve[1].TotalEquity, 1e-9)
	suite.InDelta(10060, result.FinalEquity, 1e-9)
	suite.True(hasDiagnostic(result, errors.ErrCodeUnfilledSignal))
}

func (suite *BacktestEngineV1TestSuite) TestLeaveOpen() {
	config := TestConfig(10000)
	config.EndOfRunPolicy = EndOfRunLeaveOpen

	result, err := suite.run(config, suite.bars(100, 120), types.SignalTypeBuy, types.SignalTypeHold)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.False(result.Trades[0].IsClosed())
	suite.Require().NotNil(result.OpenPosition)
	suite.Equal(100.0, result.OpenPosition.Quantity)
	suite.InDelta(2000, result.Metrics.UnrealizedPnL, 1e-9)
	suite.InDelta(12000, result.FinalEquity, 1e-9)
	suite.Equal(0, result.Metrics.ClosedTradeCount)
}

func (suite *BacktestEngineV1TestSuite) TestInsufficientCapital() {
	result, err := suite.run(suite.fixedQuantity(500, 10), suite.bars(100, 100), types.SignalTypeBuy, types.SignalTypeHold)
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(5.0, result.Trades[0].Quantity)
	suite.True(hasDiagnostic(result, errors.ErrCodeInsufficientCapital))
}

func (suite *BacktestEngineV1TestSuite) TestLargeCapitalAllIn() {
	for _, closes := range [][]float64{
		{1.74226, 1.80001},
		{3.14159, 2.71828},
		{123.456789, 130.01},
		{0.0731, 0.0733},
	} {
		suite.Run(fmt.Sprintf("%v", closes[0]), func() {
			config := TestConfig(1e9)
			config.CommissionRate = 0.001

			result, err := suite.run(config, suite.bars(closes...), types.SignalTypeBuy, types.SignalTypeHold)
			suite.Require().NoError(err)
			suite.Require().Len(result.Trades, 1)
			suite.False(hasDiagnostic(result, errors.ErrCodeInsufficientCapital))

			for _, point := range result.EquityCurve {
				suite.GreaterOrEqual(point.Cash, 0.0)
			}
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestCompletionLogsPeakEquity() {
	core, logs := observer.New(zapcore.InfoLevel)

	e, err := NewBacktestEngineV1(suite.fixedQuantity(1000, 5), &logger.Logger{Logger: zap.New(core)})
	suite.Require().NoError(err)

	s := strategy.FromSignals("test", strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeHold))
	result, err := e.Run(context.Background(), suite.bars(100, 140, 120), s, engine.LifecycleCallbacks{})
	suite.Require().NoError(err)

	// cash 500 + 5 * 140 at the peak
	completed := logs.FilterMessage("Backtest completed").All()
	suite.Require().Len(completed, 1)
	suite.Equal(1200.0, completed[0].ContextMap()["peak_equity"])
	suite.InDelta((1200.0-1100.0)/1200.0, result.MaxDrawdown, 1e-12)
}

func (suite *BacktestEngineV1TestSuite) TestInvariantsOnGeneratedData() {
	gen := mocks.NewDataGenerator(7)
	genConfig := mocks.DefaultConfig()
	genConfig.Count = 500
	genConfig.Interval = time.Hour
	genConfig.Volatility = 0.01
	bars := gen.Generate(genConfig)

	config := TestConfig(10000)
	config.CommissionRate = 0.001
	config.SlippageRate = 0.0005

	s, err := strategy.New(strategy.KindMovingAverage, []byte("short_window: 3\nlong_window: 8\n"))
	suite.Require().NoError(err)

	e := suite.newEngine(config)
	result, err := e.Run(context.Background(), bars, s, engine.LifecycleCallbacks{})
	suite.Require().NoError(err)

	suite.Require().Len(result.EquityCurve, len(bars))
	suite.NotEmpty(result.Trades)

	for i, point := range result.EquityCurve {
		tolerance := 1e-9 * math.Max(1, math.Abs(point.TotalEquity))
		suite.InDelta(point.Cash+point.PositionValue, point.TotalEquity, tolerance)
		suite.GreaterOrEqual(point.Cash, 0.0)
		suite.Equal(bars[i].Time, point.Time)
	}

	suite.GreaterOrEqual(result.MaxDrawdown, 0.0)
	suite.LessOrEqual(result.MaxDrawdown, 1.0)

	for i, trade := range result.Trades {
		suite.True(trade.IsClosed())
		suite.False(trade.ExitTime.Unwrap().Before(trade.EntryTime))

		if i > 0 {
			previous := result.Trades[i-1]
			suite.False(trade.EntryTime.Before(previous.ExitTime.Unwrap()), "trade %d overlaps the previous one", i)
		}
	}

	var pnl float64
	for _, trade := range result.Trades {
		pnl += trade.PnL()
	}

	suite.InDelta(result.FinalEquity-config.InitialCapital, pnl, 1e-6)
}

func (suite *BacktestEngineV1TestSuite) TestBuiltinStrategies() {
	bars := mocks.NewDataGenerator(11).Generate(mocks.GeneratorConfig{
		Symbol:         "BTCUSDT",
		StartTime:      suite.t0,
		Interval:       time.Hour,
		Count:          300,
		InitialPrice:   100,
		Volatility:     0.02,
		VolumeBase:     100,
		VolumeVariance: 0.2,
	})

	for _, kind := range strategy.AllKinds {
		suite.Run(string(kind), func() {
			s, err := strategy.New(kind, nil)
			suite.Require().NoError(err)

			result, err := suite.newEngine(TestConfig(10000)).Run(context.Background(), bars, s, engine.LifecycleCallbacks{})
			suite.Require().NoError(err)
			suite.Equal(string(kind), result.StrategyName)
			suite.Len(result.EquityCurve, len(bars))
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestStreamingSeesCausalPrefix() {
	bars := suite.bars(100, 101, 102, 103)
	original := append([]types.Bar(nil), bars...)

	s := strategy.Func("prefix", func(ctx strategy.Context) (types.Signal, error) {
		suite.Len(ctx.Bars, ctx.Index+1)
		suite.Equal(len(ctx.Bars), cap(ctx.Bars))
		suite.Equal(bars[ctx.Index].Time, ctx.Current().Time)

		// appending must not leak into the bars the engine has not replayed yet
		_ = append(ctx.Bars, types.Bar{Time: ctx.Current().Time.Add(time.Minute), Close: 1})

		if ctx.Index == 0 {
			return types.Signal{Type: types.SignalTypeBuy}, nil
		}

		return types.Hold(ctx.Current().Time), nil
	})

	result, err := suite.newEngine(TestConfig(10000)).Run(context.Background(), bars, s, engine.LifecycleCallbacks{})
	suite.Require().NoError(err)

	suite.Equal(original, bars)
	suite.InDelta(10300, result.FinalEquity, 1e-9)
}

func (suite *BacktestEngineV1TestSuite) TestTimeWindow() {
	config := TestConfig(10000)
	config.StartTime = optional.Some(suite.t0.Add(day))
	config.EndTime = optional.Some(suite.t0.Add(3 * day))

	s := strategy.Func("hold", func(ctx strategy.Context) (types.Signal, error) {
		return types.Hold(ctx.Current().Time), nil
	})

	result, err := suite.newEngine(config).Run(context.Background(), suite.bars(100, 101, 102, 103, 104), s, engine.LifecycleCallbacks{})
	suite.Require().NoError(err)

	suite.Len(result.EquityCurve, 3)
	suite.Equal(suite.t0.Add(day), result.StartTime)
	suite.Equal(suite.t0.Add(3*day), result.EndTime)
	suite.InDelta(103.0/101.0-1, result.BuyAndHoldReturn, 1e-12)
}

func (suite *BacktestEngineV1TestSuite) TestDataIntegrity() {
	valid := suite.bars(100, 101, 102)

	tests := []struct {
		name   string
		bars   func() []types.Bar
		config func(config *BacktestEngineV1Config)
	}{
		{
			name: "empty series",
			bars: func() []types.Bar { return nil },
		},
		{
			name: "non increasing time",
			bars: func() []types.Bar {
				bars := append([]types.Bar(nil), valid...)
				bars[2].Time = bars[1].Time

				return bars
			},
		},
		{
			name: "high below low",
			bars: func() []types.Bar {
				bars := append([]types.Bar(nil), valid...)
				bars[1].High = 50

				return bars
			},
		},
		{
			name: "negative close",
			bars: func() []types.Bar {
				bars := append([]types.Bar(nil), valid...)
				bars[0].Close = -1
				bars[0].Low = -1

				return bars
			},
		},
		{
			name: "mixed symbols",
			bars: func() []types.Bar {
				bars := append([]types.Bar(nil), valid...)
				bars[1].Symbol = "MSFT"

				return bars
			},
		},
		{
			name:   "configured symbol mismatch",
			bars:   func() []types.Bar { return valid },
			config: func(config *BacktestEngineV1Config) { config.Symbol = "MSFT" },
		},
		{
			name: "time range excludes every bar",
			bars: func() []types.Bar { return valid },
			config: func(config *BacktestEngineV1Config) {
				config.StartTime = optional.Some(suite.t0.Add(100 * day))
			},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := TestConfig(10000)
			if tc.config != nil {
				tc.config(&config)
			}

			e := suite.newEngine(config)

			var (
				ended     bool
				endResult *types.BacktestResult
			)

			onRunEnd := engine.OnRunEndCallback(func(result *types.BacktestResult, err error) {
				ended = true
				endResult = result

				suite.Error(err)
			})

			result, err := e.Run(context.Background(), tc.bars(), strategy.FromSignals("test", nil), engine.LifecycleCallbacks{OnRunEnd: &onRunEnd})
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeDataIntegrity), "unexpected error %v", err)
			suite.Nil(result)
			suite.Equal(engine.StateFailed, e.State())
			suite.True(ended)
			suite.Nil(endResult)
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestBatchSignalAlignment() {
	bars := suite.bars(100, 101, 102)

	tests := []struct {
		name    string
		signals []types.Signal
	}{
		{
			name:    "too few signals",
			signals: strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold),
		},
		{
			name:    "too many signals",
			signals: strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeHold, types.SignalTypeSell),
		},
		{
			name: "wrong time",
			signals: []types.Signal{
				{Time: bars[0].Time, Type: types.SignalTypeBuy},
				{Time: bars[2].Time, Type: types.SignalTypeHold},
				{Time: bars[2].Time, Type: types.SignalTypeHold},
			},
		},
		{
			name:    "unknown type",
			signals: strategy.FromTypes(types.SignalTypeBuy, types.SignalType("SHORT"), types.SignalTypeHold),
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			e := suite.newEngine(TestConfig(10000))

			result, err := e.Run(context.Background(), bars, strategy.FromSignals("test", tc.signals), engine.LifecycleCallbacks{})
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeSignalAlignment), "unexpected error %v", err)
			suite.Nil(result)
			suite.Equal(engine.StateFailed, e.State())
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestStreamingSignalAlignment() {
	tests := []struct {
		name   string
		signal types.Signal
	}{
		{name: "wrong time", signal: types.Signal{Time: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Type: types.SignalTypeBuy}},
		{name: "unknown type", signal: types.Signal{Type: types.SignalType("SHORT")}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			ctrl := gomock.NewController(suite.T())
			defer ctrl.Finish()

			s := mocks.NewMockStrategy(ctrl)
			s.EXPECT().Name().Return("mock").AnyTimes()
			s.EXPECT().GenerateSignal(gomock.Any()).Return(tc.signal, nil).Times(1)

			result, err := suite.newEngine(TestConfig(10000)).Run(context.Background(), suite.bars(100, 101), s, engine.LifecycleCallbacks{})
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeSignalAlignment), "unexpected error %v", err)
			suite.Nil(result)
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestStrategyRuntimeError() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	boom := fmt.Errorf("boom")

	s := mocks.NewMockStrategy(ctrl)
	s.EXPECT().Name().Return("mock").AnyTimes()
	gomock.InOrder(
		s.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{Type: types.SignalTypeBuy}, nil),
		s.EXPECT().GenerateSignal(gomock.Any()).Return(types.Signal{}, boom),
	)

	e := suite.newEngine(TestConfig(10000))

	result, err := e.Run(context.Background(), suite.bars(100, 101, 102), s, engine.LifecycleCallbacks{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyRuntimeError))
	suite.ErrorIs(err, boom)
	suite.Nil(result)
	suite.Equal(engine.StateFailed, e.State())
}

func (suite *BacktestEngineV1TestSuite) TestBatchStrategyError() {
	ctrl := gomock.NewController(suite.T())
	defer ctrl.Finish()

	s := mocks.NewMockBatchStrategy(ctrl)
	s.EXPECT().Name().Return("mock").AnyTimes()
	s.EXPECT().GenerateSignals(gomock.Any()).Return(nil, fmt.Errorf("boom"))

	started := false
	onRunStart := engine.OnRunStartCallback(func(string, string, int) error {
		started = true

		return nil
	})

	result, err := suite.newEngine(TestConfig(10000)).Run(context.Background(), suite.bars(100, 101), s, engine.LifecycleCallbacks{OnRunStart: &onRunStart})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyRuntimeError))
	suite.Nil(result)
	suite.False(started)
}

type nameOnly struct{}

func (nameOnly) Name() string { return "name-only" }

func (suite *BacktestEngineV1TestSuite) TestUnsupportedStrategy() {
	tests := []struct {
		name     string
		strategy strategy.Named
	}{
		{name: "nil strategy", strategy: nil},
		{name: "no signal method", strategy: nameOnly{}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := suite.newEngine(TestConfig(10000)).Run(context.Background(), suite.bars(100), tc.strategy, engine.LifecycleCallbacks{})
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedStrategy))
			suite.Nil(result)
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestEngineReuse() {
	e := suite.newEngine(TestConfig(10000))
	suite.Equal(engine.StateInitialized, e.State())

	s := strategy.FromSignals("test", strategy.FromTypes(types.SignalTypeHold))

	_, err := e.Run(context.Background(), suite.bars(100), s, engine.LifecycleCallbacks{})
	suite.Require().NoError(err)
	suite.Equal(engine.StateCompleted, e.State())

	result, err := e.Run(context.Background(), suite.bars(100), s, engine.LifecycleCallbacks{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineReused))
	suite.Nil(result)
	suite.Equal(engine.StateCompleted, e.State())
}

func (suite *BacktestEngineV1TestSuite) TestCallbacks() {
	var (
		runID      string
		totalBars  int
		strategyID string
		progress   []int
		seen       []types.Diagnostic
		ended      *types.BacktestResult
		endCalls   int
	)

	onRunStart := engine.OnRunStartCallback(func(id string, name string, total int) error {
		runID, strategyID, totalBars = id, name, total

		return nil
	})
	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		suite.Equal(3, total)

		progress = append(progress, current)

		return nil
	})
	onDiagnostic := engine.OnDiagnosticCallback(func(d types.Diagnostic) {
		seen = append(seen, d)
	})
	onRunEnd := engine.OnRunEndCallback(func(result *types.BacktestResult, err error) {
		suite.NoError(err)

		ended = result
		endCalls++
	})

	callbacks := engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnProcessData: &onProcessData,
		OnDiagnostic:  &onDiagnostic,
		OnRunEnd:      &onRunEnd,
	}

	e := suite.newEngine(suite.fixedQuantity(500, 10))
	s := strategy.FromSignals("callbacks", strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeHold))

	result, err := e.Run(context.Background(), suite.bars(100, 100, 100), s, callbacks)
	suite.Require().NoError(err)

	suite.Equal(result.ID, runID)
	suite.Equal("callbacks", strategyID)
	suite.Equal(3, totalBars)
	suite.Equal([]int{1, 2, 3}, progress)
	suite.Equal(result.Diagnostics, seen)
	suite.True(hasDiagnostic(result, errors.ErrCodeInsufficientCapital))
	suite.Same(result, ended)
	suite.Equal(1, endCalls)
}

func (suite *BacktestEngineV1TestSuite) TestCallbackErrors() {
	boom := fmt.Errorf("boom")

	onRunStart := engine.OnRunStartCallback(func(string, string, int) error { return boom })
	onProcessData := engine.OnProcessDataCallback(func(current int, _ int) error {
		if current == 2 {
			return boom
		}

		return nil
	})

	tests := []struct {
		name      string
		callbacks engine.LifecycleCallbacks
	}{
		{name: "run start", callbacks: engine.LifecycleCallbacks{OnRunStart: &onRunStart}},
		{name: "process data", callbacks: engine.LifecycleCallbacks{OnProcessData: &onProcessData}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			e := suite.newEngine(TestConfig(10000))
			s := strategy.FromSignals("test", strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeHold))

			result, err := e.Run(context.Background(), suite.bars(100, 101, 102), s, tc.callbacks)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeCallbackFailed))
			suite.ErrorIs(err, boom)
			suite.Nil(result)
			suite.Equal(engine.StateFailed, e.State())
		})
	}
}

func (suite *BacktestEngineV1TestSuite) TestCancellation() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onProcessData := engine.OnProcessDataCallback(func(current int, _ int) error {
		if current == 2 {
			cancel()
		}

		return nil
	})

	var ended *types.BacktestResult

	onRunEnd := engine.OnRunEndCallback(func(result *types.BacktestResult, err error) {
		suite.True(errors.HasCode(err, errors.ErrCodeRunCancelled))

		ended = result
	})

	e := suite.newEngine(TestConfig(10000))
	s := strategy.Func("buy-first", func(ctx strategy.Context) (types.Signal, error) {
		if ctx.Index == 0 {
			return types.Signal{Type: types.SignalTypeBuy}, nil
		}

		return types.Hold(ctx.Current().Time), nil
	})

	result, err := e.Run(ctx, suite.bars(100, 110, 120, 130, 140), s, engine.LifecycleCallbacks{
		OnProcessData: &onProcessData,
		OnRunEnd:      &onRunEnd,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRunCancelled))
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(engine.StateFailed, e.State())

	suite.Require().NotNil(result)
	suite.True(result.Partial)
	suite.Len(result.EquityCurve, 2)
	suite.Equal(suite.t0.Add(day), result.EndTime)
	suite.InDelta(11000, result.FinalEquity, 1e-9)
	suite.Require().NotNil(result.OpenPosition)
	suite.Require().Len(result.Trades, 1)
	suite.False(result.Trades[0].IsClosed())
	suite.InDelta(1000, result.Metrics.UnrealizedPnL, 1e-9)
	suite.Same(result, ended)
}

func (suite *BacktestEngineV1TestSuite) TestResultIsIndependent() {
	result, err := suite.run(TestConfig(10000), suite.bars(100, 110), types.SignalTypeBuy, types.SignalTypeSell)
	suite.Require().NoError(err)

	clone := result.Clone()
	clone.Trades[0].Quantity = 0
	clone.EquityCurve[0].TotalEquity = 0

	suite.Equal(100.0, result.Trades[0].Quantity)
	suite.Equal(10000.0, result.EquityCurve[0].TotalEquity)
}

func (suite *BacktestEngineV1TestSuite) TestNewBacktestEngineV1FromYAML() {
	e, err := NewBacktestEngineV1FromYAML([]byte("initial_capital: 5000\nfill_timing: next_bar_open\n"), nil)
	suite.Require().NoError(err)
	suite.Equal(5000.0, e.Config().InitialCapital)
	suite.Equal(FillNextBarOpen, e.Config().FillTiming)

	_, err = NewBacktestEngineV1FromYAML([]byte("unknown_key: 1\n"), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewBacktestEngineV1(TestConfig(-1), nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestEngineV1TestSuite) TestGetConfigSchema() {
	schema, err := suite.newEngine(TestConfig(10000)).GetConfigSchema()
	suite.Require().NoError(err)
	suite.True(strings.Contains(schema, "initial_capital"))
}

func (suite *BacktestEngineV1TestSuite) TestRunMany() {
	bars := suite.bars(100, 110, 120)

	jobs := []Job{
		{
			Config:   TestConfig(10000),
			Bars:     bars,
			Strategy: strategy.FromSignals("first", strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeSell)),
		},
		{
			Config:   TestConfig(-1),
			Bars:     bars,
			Strategy: strategy.FromSignals("invalid", strategy.FromTypes(types.SignalTypeBuy, types.SignalTypeHold, types.SignalTypeSell)),
		},
		{
			Config:   TestConfig(10000),
			Bars:     bars,
			Strategy: strategy.FromSignals("third", strategy.FromTypes(types.SignalTypeHold, types.SignalTypeHold, types.SignalTypeHold)),
		},
		{
			Config:   TestConfig(10000),
			Bars:     bars,
			Strategy: strategy.FromSignals("misaligned", strategy.FromTypes(types.SignalTypeHold)),
		},
	}

	outcomes := RunMany(context.Background(), jobs, 2, logger.NewNopLogger())
	suite.Require().Len(outcomes, 4)

	suite.Require().NoError(outcomes[0].Err)
	suite.Equal("first", outcomes[0].Result.StrategyName)
	suite.InDelta(12000, outcomes[0].Result.FinalEquity, 1e-9)

	suite.Require().Error(outcomes[1].Err)
	suite.True(errors.HasCode(outcomes[1].Err, errors.ErrCodeInvalidConfiguration))
	suite.Nil(outcomes[1].Result)

	suite.Require().NoError(outcomes[2].Err)
	suite.Equal("third", outcomes[2].Result.StrategyName)
	suite.Equal(10000.0, outcomes[2].Result.FinalEquity)

	suite.True(errors.HasCode(outcomes[3].Err, errors.ErrCodeSignalAlignment))
	suite.NotEqual(outcomes[0].Result.ID, outcomes[2].Result.ID)
}

func (suite *BacktestEngineV1TestSuite) TestRunManyUnbounded() {
	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = Job{
			Config:   TestConfig(float64(1000 * (i + 1))),
			Bars:     suite.bars(100, 100),
			Strategy: strategy.FromSignals(fmt.Sprintf("job-%d", i), strategy.FromTypes(types.SignalTypeHold, types.SignalTypeHold)),
		}
	}

	outcomes := RunMany(context.Background(), jobs, 0, nil)

	for i, outcome := range outcomes {
		suite.Require().NoError(outcome.Err)
		suite.Equal(float64(1000*(i+1)), outcome.Result.InitialCapital)
	}
}
