package engine

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/utils"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/shopspring/decimal"
)

// cashEpsilon absorbs float noise left by fee rounding when a position is closed.
var cashEpsilon = decimal.New(1, -9)

// Fill is the outcome of one ledger mutation.
type Fill struct {
	Side       types.SignalType
	Time       time.Time
	Price      float64
	Quantity   float64
	Commission float64
	// RequestedQuantity is the quantity asked for before any clamping
	RequestedQuantity float64
	// Adjusted is set when the quantity was sized down to the available cash
	Adjusted bool
	// Skipped is set when nothing was filled
	Skipped bool
	// RealizedPnL is only set on a closing fill
	RealizedPnL float64
}

// PositionLedger owns the cash and the single long position of a run.
type PositionLedger struct {
	symbol            string
	commissionFee     commission_fee.CommissionFee
	quantityPrecision int

	cash        decimal.Decimal
	realizedPnL decimal.Decimal
	totalFees   decimal.Decimal
	position    types.Position
}

func NewPositionLedger(symbol string, initialCapital float64, commissionFee commission_fee.CommissionFee, quantityPrecision int) *PositionLedger {
	return &PositionLedger{
		symbol:            symbol,
		commissionFee:     commissionFee,
		quantityPrecision: quantityPrecision,
		cash:              decimal.NewFromFloat(initialCapital),
		realizedPnL:       decimal.Zero,
		totalFees:         decimal.Zero,
		position:          types.Position{Symbol: symbol},
	}
}

// OpenPosition buys quantity at price. The quantity is rounded down to the ledger precision and
// clamped to what the cash can pay for including commission. A fill below the minimum quantity is skipped.
func (l *PositionLedger) OpenPosition(price, quantity float64, t time.Time) (Fill, error) {
	if l.position.IsOpen {
		return Fill{}, errors.Newf(errors.ErrCodeInvalidState, "cannot open position at %s: position already open", t.Format(time.RFC3339))
	}

	if price <= 0 {
		return Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "cannot open position at non-positive price %v", price)
	}

	fill := Fill{
		Side:              types.SignalTypeBuy,
		Time:              t,
		Price:             price,
		RequestedQuantity: quantity,
	}

	precision := int32(l.quantityPrecision)
	qty := decimal.NewFromFloat(quantity).RoundDown(precision)

	if utils.OrderCost(price, qty, l.commissionFee).GreaterThan(l.cash) {
		qty = utils.MaxAffordableQuantity(l.cash, price, l.commissionFee, l.quantityPrecision)

		// large quantities lose their last places in float64, only report a visible cut
		clamped, _ := qty.Float64()
		fill.Adjusted = clamped < quantity
	}

	if qty.LessThan(decimal.New(1, -precision)) {
		fill.Skipped = true

		return fill, nil
	}

	qtyFloat, _ := qty.Float64()
	commission := l.commissionFee.Calculate(price, qtyFloat)

	// never below zero: qty was clamped against the exact cost
	l.cash = l.cash.Sub(utils.OrderCost(price, qty, l.commissionFee))
	l.totalFees = l.totalFees.Add(decimal.NewFromFloat(commission))
	l.position = types.Position{
		Symbol:            l.symbol,
		Quantity:          qtyFloat,
		AverageEntryPrice: price,
		EntryCommission:   commission,
		OpenTimestamp:     t,
		IsOpen:            true,
	}

	fill.Quantity = qtyFloat
	fill.Commission = commission

	return fill, nil
}

// ClosePosition sells the whole position at price.
// realized pnl = (exit - entry) * quantity - (entry commission + exit commission).
func (l *PositionLedger) ClosePosition(price float64, t time.Time) (Fill, error) {
	if !l.position.IsOpen {
		return Fill{}, errors.Newf(errors.ErrCodeInvalidState, "cannot close position at %s: no position open", t.Format(time.RFC3339))
	}

	if price < 0 {
		return Fill{}, errors.Newf(errors.ErrCodeInvalidParameter, "cannot close position at negative price %v", price)
	}

	qty := l.position.Quantity
	commission := l.commissionFee.Calculate(price, qty)

	priceDec := decimal.NewFromFloat(price)
	qtyDec := decimal.NewFromFloat(qty)
	commissionDec := decimal.NewFromFloat(commission)

	proceeds := priceDec.Mul(qtyDec).Sub(commissionDec)
	pnl := priceDec.Sub(decimal.NewFromFloat(l.position.AverageEntryPrice)).
		Mul(qtyDec).
		Sub(decimal.NewFromFloat(l.position.EntryCommission)).
		Sub(commissionDec)

	l.cash = l.cash.Add(proceeds)
	if l.cash.IsNegative() && l.cash.Neg().LessThanOrEqual(cashEpsilon) {
		l.cash = decimal.Zero
	}

	l.realizedPnL = l.realizedPnL.Add(pnl)
	l.totalFees = l.totalFees.Add(commissionDec)
	l.position = types.Position{Symbol: l.symbol}

	realized, _ := pnl.Float64()

	return Fill{
		Side:              types.SignalTypeSell,
		Time:              t,
		Price:             price,
		Quantity:          qty,
		RequestedQuantity: qty,
		Commission:        commission,
		RealizedPnL:       realized,
	}, nil
}

// MarkToMarket returns the position value and unrealized pnl at price without mutating the ledger.
func (l *PositionLedger) MarkToMarket(price float64) (positionValue float64, unrealizedPnL float64) {
	return l.position.MarketValue(price), l.position.UnrealizedPnL(price)
}

// Snapshot returns the account state marked at price.
func (l *PositionLedger) Snapshot(price float64) types.AccountInfo {
	positionValue, unrealized := l.MarkToMarket(price)
	cash := l.Cash()

	return types.AccountInfo{
		Cash:          cash,
		PositionValue: positionValue,
		Equity:        cash + positionValue,
		RealizedPnL:   l.RealizedPnL(),
		UnrealizedPnL: unrealized,
		TotalFees:     l.TotalFees(),
	}
}

// equity is cash plus the position marked at price, in exact decimal.
func (l *PositionLedger) equity(price float64) decimal.Decimal {
	if !l.position.IsOpen {
		return l.cash
	}

	return l.cash.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(l.position.Quantity)))
}

func (l *PositionLedger) Cash() float64 {
	cash, _ := l.cash.Float64()

	return cash
}

func (l *PositionLedger) RealizedPnL() float64 {
	pnl, _ := l.realizedPnL.Float64()

	return pnl
}

func (l *PositionLedger) TotalFees() float64 {
	fees, _ := l.totalFees.Float64()

	return fees
}

// Position returns a copy of the current position.
func (l *PositionLedger) Position() types.Position {
	return l.position
}

func (l *PositionLedger) IsOpen() bool {
	return l.position.IsOpen
}
