package types

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Bar is a single OHLCV observation of one instrument.
type Bar struct {
	Time   time.Time `json:"time" yaml:"time" csv:"time"`
	Symbol string    `json:"symbol" yaml:"symbol" csv:"symbol"`
	Open   float64   `json:"open" yaml:"open" csv:"open"`
	High   float64   `json:"high" yaml:"high" csv:"high"`
	Low    float64   `json:"low" yaml:"low" csv:"low"`
	Close  float64   `json:"close" yaml:"close" csv:"close"`
	Volume float64   `json:"volume" yaml:"volume" csv:"volume"`
}

// Validate checks that every value of the bar is finite and non-negative and that
// high and low bound the open and close.
func (b Bar) Validate(index int) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
		{"volume", b.Volume},
	}

	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return errors.NewBarError(index, f.name, "value is not finite")
		}

		if f.value < 0 {
			return errors.NewBarError(index, f.name, "value %v is negative", f.value)
		}
	}

	if b.High < b.Low {
		return errors.NewBarError(index, "high", "high %v is below low %v", b.High, b.Low)
	}

	if b.High < b.Open || b.High < b.Close {
		return errors.NewBarError(index, "high", "high %v is below open %v or close %v", b.High, b.Open, b.Close)
	}

	if b.Low > b.Open || b.Low > b.Close {
		return errors.NewBarError(index, "low", "low %v is above open %v or close %v", b.Low, b.Open, b.Close)
	}

	if b.Time.IsZero() {
		return errors.NewBarError(index, "time", "timestamp is missing")
	}

	return nil
}

// ValidateSeries checks a price series before it is replayed.
// Timestamps must be strictly increasing and every bar must be valid.
// The returned error carries ErrCodeDataIntegrity and wraps a *errors.BarError.
func ValidateSeries(bars []Bar) error {
	if len(bars) == 0 {
		return errors.New(errors.ErrCodeDataIntegrity, "price series is empty")
	}

	for i, bar := range bars {
		if err := bar.Validate(i); err != nil {
			return errors.Wrap(errors.ErrCodeDataIntegrity, "invalid price series", err)
		}

		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return errors.Wrap(errors.ErrCodeDataIntegrity, "invalid price series",
				errors.NewBarError(i, "time", "timestamp %s is not after %s",
					bar.Time.Format(time.RFC3339Nano), bars[i-1].Time.Format(time.RFC3339Nano)))
		}
	}

	return nil
}

// BarDuration returns the mean spacing between consecutive bars, or zero when
// the series has fewer than two bars.
func BarDuration(bars []Bar) time.Duration {
	if len(bars) < 2 {
		return 0
	}

	span := bars[len(bars)-1].Time.Sub(bars[0].Time)

	return span / time.Duration(len(bars)-1)
}
