// Package indicator implements the technical indicators used by the built-in strategies.
// Every function works on a closing-price window and only looks at the values it is given.
package indicator

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Closes extracts the closing prices of bars.
func Closes(bars []types.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return closes
}

// TrailingCloses extracts the closing prices of at most the last n bars.
func TrailingCloses(bars []types.Bar, n int) []float64 {
	if n >= 0 && n < len(bars) {
		bars = bars[len(bars)-n:]
	}

	return Closes(bars)
}

// IsWarmingUp reports whether err only means the window is shorter than the indicator period.
func IsWarmingUp(err error) bool {
	return errors.HasCode(err, errors.ErrCodeInsufficientData)
}

func checkWindow(name string, values []float64, period, required int) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "%s: period must be a positive integer, got %d", name, period)
	}

	if len(values) < required {
		return errors.Newf(errors.ErrCodeInsufficientData, "%s: need %d values, got %d", name, required, len(values))
	}

	return nil
}
