package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type TradeSide string

const (
	// TradeSideLong is the only side the engine opens; short selling is not supported.
	TradeSideLong TradeSide = "long"
)

type ExitReason string

const (
	// ExitReasonSignal means the position was closed by a SELL signal.
	ExitReasonSignal ExitReason = "signal"
	// ExitReasonEndOfRun means the engine closed the position at the last bar.
	ExitReasonEndOfRun ExitReason = "end_of_run"
)

// Trade is one round trip: created on the BUY fill, closed on the matching SELL fill.
type Trade struct {
	ID         string    `json:"id" csv:"id"`
	Symbol     string    `json:"symbol" csv:"symbol"`
	Side       TradeSide `json:"side" csv:"side"`
	EntryTime  time.Time `json:"entry_time" csv:"entry_time"`
	EntryPrice float64   `json:"entry_price" csv:"entry_price"`
	Quantity   float64   `json:"quantity" csv:"quantity"`
	// EntryCommission is the commission paid on the BUY fill
	EntryCommission float64 `json:"entry_commission" csv:"entry_commission"`
	// ExitCommission is the commission paid on the SELL fill, zero while open
	ExitCommission float64 `json:"exit_commission" csv:"exit_commission"`
	// CommissionPaid is EntryCommission + ExitCommission
	CommissionPaid float64 `json:"commission_paid" csv:"commission_paid"`
	// ExitTime, ExitPrice and RealizedPnL are present only once the trade is closed.
	ExitTime    optional.Option[time.Time] `json:"exit_time" csv:"exit_time"`
	ExitPrice   optional.Option[float64]   `json:"exit_price" csv:"exit_price"`
	RealizedPnL optional.Option[float64]   `json:"realized_pnl" csv:"realized_pnl"`
	ExitReason  ExitReason                 `json:"exit_reason,omitempty" csv:"exit_reason"`
}

// IsClosed reports whether the trade has an exit fill.
func (t Trade) IsClosed() bool {
	return t.ExitTime.IsSome()
}

// HoldingPeriod returns exit time minus entry time. Open trades report zero.
func (t Trade) HoldingPeriod() time.Duration {
	if t.ExitTime.IsNone() {
		return 0
	}

	return t.ExitTime.Unwrap().Sub(t.EntryTime)
}

// PnL returns the realized pnl, or zero while the trade is open.
func (t Trade) PnL() float64 {
	if t.RealizedPnL.IsNone() {
		return 0
	}

	return t.RealizedPnL.Unwrap()
}

// Clone returns a copy that shares no memory with t.
func (t Trade) Clone() Trade {
	c := t
	c.ExitTime = cloneOption(t.ExitTime)
	c.ExitPrice = cloneOption(t.ExitPrice)
	c.RealizedPnL = cloneOption(t.RealizedPnL)

	return c
}

func cloneOption[T any](o optional.Option[T]) optional.Option[T] {
	if o.IsNone() {
		return optional.None[T]()
	}

	return optional.Some(o.Unwrap())
}

// Position is the single long position of a run.
type Position struct {
	Symbol            string    `json:"symbol" yaml:"symbol"`
	Quantity          float64   `json:"quantity" yaml:"quantity"`
	AverageEntryPrice float64   `json:"average_entry_price" yaml:"average_entry_price"`
	EntryCommission   float64   `json:"entry_commission" yaml:"entry_commission"`
	OpenTimestamp     time.Time `json:"open_timestamp" yaml:"open_timestamp"`
	IsOpen            bool      `json:"is_open" yaml:"is_open"`
}

// MarketValue returns the value of the position at the given price.
func (p Position) MarketValue(price float64) float64 {
	if !p.IsOpen {
		return 0
	}

	return p.Quantity * price
}

// UnrealizedPnL is the gain since entry at the given price, net of the entry commission.
func (p Position) UnrealizedPnL(price float64) float64 {
	if !p.IsOpen {
		return 0
	}

	return (price-p.AverageEntryPrice)*p.Quantity - p.EntryCommission
}
