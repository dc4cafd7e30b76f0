package engine

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// EquityTracker is the append-only equity curve of a run.
type EquityTracker struct {
	points []types.EquityPoint
	peak   float64
}

func NewEquityTracker(capacity int) *EquityTracker {
	return &EquityTracker{points: make([]types.EquityPoint, 0, capacity)}
}

// Record appends a snapshot of the ledger marked at price.
func (e *EquityTracker) Record(t time.Time, account types.AccountInfo) types.EquityPoint {
	point := types.EquityPoint{
		Time:          t,
		Cash:          account.Cash,
		PositionValue: account.PositionValue,
		TotalEquity:   account.Cash + account.PositionValue,
	}

	e.Append(point)

	return point
}

func (e *EquityTracker) Append(point types.EquityPoint) {
	if len(e.points) == 0 || point.TotalEquity > e.peak {
		e.peak = point.TotalEquity
	}

	e.points = append(e.points, point)
}

// Points returns a copy of the curve.
func (e *EquityTracker) Points() []types.EquityPoint {
	return append([]types.EquityPoint(nil), e.points...)
}

func (e *EquityTracker) Len() int {
	return len(e.points)
}

// Last returns the latest point and false when the curve is empty.
func (e *EquityTracker) Last() (types.EquityPoint, bool) {
	if len(e.points) == 0 {
		return types.EquityPoint{}, false
	}

	return e.points[len(e.points)-1], true
}

// Peak is the highest total equity seen so far.
func (e *EquityTracker) Peak() float64 {
	return e.peak
}

// RunningMax returns the peak-to-date equity for every point.
func (e *EquityTracker) RunningMax() []float64 {
	running := make([]float64, len(e.points))

	for i, p := range e.points {
		if i == 0 || p.TotalEquity > running[i-1] {
			running[i] = p.TotalEquity
		} else {
			running[i] = running[i-1]
		}
	}

	return running
}
