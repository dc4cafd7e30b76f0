package types

import "time"

// EquityPoint is a snapshot of the account at the close of one bar.
type EquityPoint struct {
	Time          time.Time `json:"time" yaml:"time" csv:"time"`
	Cash          float64   `json:"cash" yaml:"cash" csv:"cash"`
	PositionValue float64   `json:"position_value" yaml:"position_value" csv:"position_value"`
	TotalEquity   float64   `json:"total_equity" yaml:"total_equity" csv:"total_equity"`
}
