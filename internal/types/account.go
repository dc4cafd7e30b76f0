package types

// AccountInfo is the ledger state observed at a given price.
type AccountInfo struct {
	// Cash is the current cash balance
	Cash float64 `json:"cash" yaml:"cash"`
	// PositionValue is the marked value of the open position
	PositionValue float64 `json:"position_value" yaml:"position_value"`
	// Equity is Cash + PositionValue
	Equity float64 `json:"equity" yaml:"equity"`
	// RealizedPnL is the total realized profit/loss from closed positions
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// UnrealizedPnL is the profit/loss of the open position
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// TotalFees is the total commission paid
	TotalFees float64 `json:"total_fees" yaml:"total_fees"`
}
