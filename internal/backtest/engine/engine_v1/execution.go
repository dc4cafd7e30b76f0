package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/utils"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Execution is what one signal did to the ledger.
type Execution struct {
	Fill        optional.Option[Fill]
	Diagnostics []types.Diagnostic
}

// ExecutionSimulator turns signals into ledger mutations using the cost model of the config.
// It owns the trade log of the run.
type ExecutionSimulator struct {
	ledger *PositionLedger
	config BacktestEngineV1Config
	symbol string
	log    *logger.Logger

	trades    []types.Trade
	openTrade int
}

func NewExecutionSimulator(ledger *PositionLedger, config BacktestEngineV1Config, symbol string, log *logger.Logger) *ExecutionSimulator {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &ExecutionSimulator{
		ledger:    ledger,
		config:    config,
		symbol:    symbol,
		log:       log,
		openTrade: -1,
	}
}

// Execute applies signalType at reference price refPrice. BUY while open, SELL while flat and HOLD
// leave the ledger untouched.
func (s *ExecutionSimulator) Execute(signalType types.SignalType, refPrice float64, t time.Time) (Execution, error) {
	switch signalType {
	case types.SignalTypeBuy:
		if s.ledger.IsOpen() {
			return Execution{Fill: optional.None[Fill]()}, nil
		}

		return s.buy(refPrice, t)
	case types.SignalTypeSell:
		if !s.ledger.IsOpen() {
			return Execution{Fill: optional.None[Fill]()}, nil
		}

		return s.sell(refPrice, t, types.ExitReasonSignal)
	case types.SignalTypeHold:
		return Execution{Fill: optional.None[Fill]()}, nil
	default:
		return Execution{}, errors.Newf(errors.ErrCodeInvalidType, "unknown signal type %q", signalType)
	}
}

// ForceClose sells the open position with exit reason end_of_run. It is a no-op when flat.
func (s *ExecutionSimulator) ForceClose(refPrice float64, t time.Time) (Execution, error) {
	if !s.ledger.IsOpen() {
		return Execution{Fill: optional.None[Fill]()}, nil
	}

	return s.sell(refPrice, t, types.ExitReasonEndOfRun)
}

// BuyPrice is the fill price of a buy at refPrice after slippage.
func (s *ExecutionSimulator) BuyPrice(refPrice float64) float64 {
	return refPrice * (1 + s.config.SlippageRate)
}

// SellPrice is the fill price of a sell at refPrice after slippage.
func (s *ExecutionSimulator) SellPrice(refPrice float64) float64 {
	return refPrice * (1 - s.config.SlippageRate)
}

// Quantity sizes an entry at fillPrice from the current total equity.
func (s *ExecutionSimulator) Quantity(fillPrice float64) float64 {
	sizing := s.config.PositionSizing
	precision := s.config.QuantityPrecision

	switch sizing.Policy {
	case SizingFixedQuantity:
		return utils.RoundToDecimalPrecision(sizing.Value, precision)
	case SizingFixedNotional:
		return utils.RoundToDecimalPrecision(sizing.Value/fillPrice, precision)
	default:
		budget := s.ledger.equity(fillPrice).Mul(decimal.NewFromFloat(sizing.Value))
		qty, _ := utils.MaxAffordableQuantity(budget, fillPrice, s.ledger.commissionFee, precision).Float64()

		return qty
	}
}

// Trades returns a copy of the trade log.
func (s *ExecutionSimulator) Trades() []types.Trade {
	trades := make([]types.Trade, len(s.trades))
	for i, trade := range s.trades {
		trades[i] = trade.Clone()
	}

	return trades
}

func (s *ExecutionSimulator) buy(refPrice float64, t time.Time) (Execution, error) {
	price := s.BuyPrice(refPrice)
	if price <= 0 {
		diagnostic := types.NewDiagnostic(errors.ErrCodeUnfillablePrice, t,
			fmt.Sprintf("buy skipped: fill price %v is not positive", price))

		return Execution{Fill: optional.None[Fill](), Diagnostics: []types.Diagnostic{diagnostic}}, nil
	}

	requested := s.Quantity(price)

	fill, err := s.ledger.OpenPosition(price, requested, t)
	if err != nil {
		return Execution{}, err
	}

	var diagnostics []types.Diagnostic

	if fill.Skipped {
		diagnostics = append(diagnostics, types.NewDiagnostic(errors.ErrCodeInsufficientCapital, t,
			fmt.Sprintf("buy skipped: cash %v cannot pay for the minimum quantity at %v (requested %v)", s.ledger.Cash(), price, requested)))

		return Execution{Fill: optional.None[Fill](), Diagnostics: diagnostics}, nil
	}

	if fill.Adjusted {
		diagnostics = append(diagnostics, types.NewDiagnostic(errors.ErrCodeInsufficientCapital, t,
			fmt.Sprintf("buy sized down from %v to %v at %v", fill.RequestedQuantity, fill.Quantity, price)))
	}

	s.trades = append(s.trades, types.Trade{
		ID:              uuid.New().String(),
		Symbol:          s.symbol,
		Side:            types.TradeSideLong,
		EntryTime:       t,
		EntryPrice:      fill.Price,
		Quantity:        fill.Quantity,
		EntryCommission: fill.Commission,
		CommissionPaid:  fill.Commission,
		ExitTime:        optional.None[time.Time](),
		ExitPrice:       optional.None[float64](),
		RealizedPnL:     optional.None[float64](),
	})
	s.openTrade = len(s.trades) - 1

	s.log.Debug("Opened position",
		zap.String("symbol", s.symbol),
		zap.Time("time", t),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("commission", fill.Commission),
	)

	return Execution{Fill: optional.Some(fill), Diagnostics: diagnostics}, nil
}

func (s *ExecutionSimulator) sell(refPrice float64, t time.Time, reason types.ExitReason) (Execution, error) {
	price := s.SellPrice(refPrice)

	fill, err := s.ledger.ClosePosition(price, t)
	if err != nil {
		return Execution{}, err
	}

	if s.openTrade < 0 {
		return Execution{}, errors.New(errors.ErrCodeInvalidState, "closed a position with no open trade record")
	}

	trade := &s.trades[s.openTrade]
	trade.ExitTime = optional.Some(t)
	trade.ExitPrice = optional.Some(fill.Price)
	trade.ExitCommission = fill.Commission
	trade.CommissionPaid = trade.EntryCommission + fill.Commission
	trade.RealizedPnL = optional.Some(fill.RealizedPnL)
	trade.ExitReason = reason
	s.openTrade = -1

	s.log.Debug("Closed position",
		zap.String("symbol", s.symbol),
		zap.Time("time", t),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("pnl", fill.RealizedPnL),
		zap.String("reason", string(reason)),
	)

	return Execution{Fill: optional.Some(fill)}, nil
}
