package engine

import (
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ExecutionTestSuite struct {
	suite.Suite
	t0 time.Time
}

func TestExecutionSuite(t *testing.T) {
	suite.Run(t, new(ExecutionTestSuite))
}

func (suite *ExecutionTestSuite) SetupTest() {
	suite.t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *ExecutionTestSuite) newSimulator(config BacktestEngineV1Config) (*ExecutionSimulator, *PositionLedger) {
	ledger := NewPositionLedger("BTCUSDT", config.InitialCapital, config.CommissionFee(), config.QuantityPrecision)

	return NewExecutionSimulator(ledger, config, "BTCUSDT", nil), ledger
}

func (suite *ExecutionTestSuite) TestBuySellRoundTrip() {
	simulator, ledger := suite.newSimulator(TestConfig(10000))

	execution, err := simulator.Execute(types.SignalTypeBuy, 100, suite.t0)
	suite.Require().NoError(err)
	suite.Require().True(execution.Fill.IsSome())
	suite.Empty(execution.Diagnostics)
	suite.Equal(100.0, execution.Fill.Unwrap().Quantity)

	execution, err = simulator.Execute(types.SignalTypeSell, 110, suite.t0.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Require().True(execution.Fill.IsSome())
	suite.InDelta(11000, ledger.Cash(), 1e-9)

	trades := simulator.Trades()
	suite.Require().Len(trades, 1)
	suite.True(trades[0].IsClosed())
	suite.Equal(types.TradeSideLong, trades[0].Side)
	suite.Equal(types.ExitReasonSignal, trades[0].ExitReason)
	suite.InDelta(1000, trades[0].RealizedPnL.Unwrap(), 1e-9)
	suite.Equal(time.Hour, trades[0].HoldingPeriod())
	suite.NotEmpty(trades[0].ID)
}

func (suite *ExecutionTestSuite) TestIdempotentSignals() {
	tests := []struct {
		name    string
		signals []types.SignalType
		open    bool
		trades  int
	}{
		{name: "sell while flat", signals: []types.SignalType{types.SignalTypeSell}, open: false, trades: 0},
		{name: "hold while flat", signals: []types.SignalType{types.SignalTypeHold}, open: false, trades: 0},
		{name: "buy twice", signals: []types.SignalType{types.SignalTypeBuy, types.SignalTypeBuy}, open: true, trades: 1},
		{name: "sell twice", signals: []types.SignalType{types.SignalTypeBuy, types.SignalTypeSell, types.SignalTypeSell}, open: false, trades: 1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			simulator, ledger := suite.newSimulator(TestConfig(10000))

			for i, signalType := range tc.signals {
				_, err := simulator.Execute(signalType, 100, suite.t0.Add(time.Duration(i)*time.Hour))
				suite.Require().NoError(err)
			}

			suite.Equal(tc.open, ledger.IsOpen())
			suite.Len(simulator.Trades(), tc.trades)
		})
	}
}

func (suite *ExecutionTestSuite) TestUnknownSignal() {
	simulator, _ := suite.newSimulator(TestConfig(10000))

	_, err := simulator.Execute(types.SignalType("SHORT"), 100, suite.t0)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidType))
}

func (suite *ExecutionTestSuite) TestSlippage() {
	config := TestConfig(10000)
	config.SlippageRate = 0.01
	simulator, _ := suite.newSimulator(config)

	suite.InDelta(101, simulator.BuyPrice(100), 1e-9)
	suite.InDelta(99, simulator.SellPrice(100), 1e-9)

	execution, err := simulator.Execute(types.SignalTypeBuy, 100, suite.t0)
	suite.Require().NoError(err)
	suite.InDelta(101, execution.Fill.Unwrap().Price, 1e-9)

	execution, err = simulator.Execute(types.SignalTypeSell, 100, suite.t0.Add(time.Hour))
	suite.Require().NoError(err)
	suite.InDelta(99, execution.Fill.Unwrap().Price, 1e-9)
	suite.Less(execution.Fill.Unwrap().RealizedPnL, 0.0)
}

func (suite *ExecutionTestSuite) TestSizingPolicies() {
	tests := []struct {
		name     string
		sizing   PositionSizing
		price    float64
		expected float64
	}{
		{name: "full equity", sizing: PositionSizing{Policy: SizingPercentOfEquity, Value: 1}, price: 100, expected: 100},
		{name: "half equity", sizing: PositionSizing{Policy: SizingPercentOfEquity, Value: 0.5}, price: 100, expected: 50},
		{name: "fixed notional", sizing: PositionSizing{Policy: SizingFixedNotional, Value: 2500}, price: 100, expected: 25},
		{name: "fixed quantity", sizing: PositionSizing{Policy: SizingFixedQuantity, Value: 3.5}, price: 100, expected: 3.5},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			config := TestConfig(10000)
			config.PositionSizing = tc.sizing
			simulator, _ := suite.newSimulator(config)

			suite.InDelta(tc.expected, simulator.Quantity(tc.price), 1e-9)
		})
	}
}

func (suite *ExecutionTestSuite) TestInsufficientCapital() {
	config := TestConfig(1000)
	config.PositionSizing = PositionSizing{Policy: SizingFixedQuantity, Value: 20}
	simulator, ledger := suite.newSimulator(config)

	execution, err := simulator.Execute(types.SignalTypeBuy, 100, suite.t0)
	suite.Require().NoError(err)
	suite.Require().True(execution.Fill.IsSome())
	suite.InDelta(10, execution.Fill.Unwrap().Quantity, 1e-9)
	suite.Require().Len(execution.Diagnostics, 1)
	suite.Equal(errors.ErrCodeInsufficientCapital, execution.Diagnostics[0].Code)
	suite.GreaterOrEqual(ledger.Cash(), 0.0)
}

func (suite *ExecutionTestSuite) TestBuyAtZeroPrice() {
	simulator, ledger := suite.newSimulator(TestConfig(10000))

	execution, err := simulator.Execute(types.SignalTypeBuy, 0, suite.t0)
	suite.Require().NoError(err)
	suite.True(execution.Fill.IsNone())
	suite.Require().Len(execution.Diagnostics, 1)
	suite.Equal(errors.ErrCodeUnfillablePrice, execution.Diagnostics[0].Code)
	suite.False(ledger.IsOpen())
	suite.Empty(simulator.Trades())
}

func (suite *ExecutionTestSuite) TestForceClose() {
	simulator, ledger := suite.newSimulator(TestConfig(10000))

	execution, err := simulator.ForceClose(100, suite.t0)
	suite.Require().NoError(err)
	suite.True(execution.Fill.IsNone())

	_, err = simulator.Execute(types.SignalTypeBuy, 100, suite.t0)
	suite.Require().NoError(err)

	execution, err = simulator.ForceClose(90, suite.t0.Add(time.Hour))
	suite.Require().NoError(err)
	suite.True(execution.Fill.IsSome())
	suite.False(ledger.IsOpen())

	trades := simulator.Trades()
	suite.Require().Len(trades, 1)
	suite.Equal(types.ExitReasonEndOfRun, trades[0].ExitReason)
	suite.InDelta(-1000, trades[0].PnL(), 1e-9)
}

func (suite *ExecutionTestSuite) TestTradesAreCopies() {
	simulator, _ := suite.newSimulator(TestConfig(10000))

	_, err := simulator.Execute(types.SignalTypeBuy, 100, suite.t0)
	suite.Require().NoError(err)

	trades := simulator.Trades()
	trades[0].Quantity = 0

	suite.Equal(100.0, simulator.Trades()[0].Quantity)
}
