package indicator

import "github.com/rxtech-lab/argo-backtest/pkg/errors"

type MAType string

const (
	MATypeSimple      MAType = "sma"
	MATypeExponential MAType = "ema"
)

// SMA is the mean of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if err := checkWindow("SMA", values, period, period); err != nil {
		return 0, err
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period), nil
}

// EMA seeds with the SMA of the first period values and smooths the rest with 2/(period+1).
func EMA(values []float64, period int) (float64, error) {
	if err := checkWindow("EMA", values, period, period); err != nil {
		return 0, err
	}

	ema, _ := SMA(values[:period], period)
	multiplier := 2.0 / float64(period+1)

	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}

	return ema, nil
}

// MovingAverage dispatches to SMA or EMA.
func MovingAverage(maType MAType, values []float64, period int) (float64, error) {
	switch maType {
	case MATypeSimple, "":
		return SMA(values, period)
	case MATypeExponential:
		return EMA(values, period)
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidType, "unknown moving average type %q", maType)
	}
}

// EMATracker updates an EMA one value at a time. After n updates its value equals
// EMA over those n values.
type EMATracker struct {
	period int
	count  int
	sum    float64
	value  float64
}

func NewEMATracker(period int) *EMATracker {
	return &EMATracker{period: period}
}

// Update feeds the next value and returns the EMA, or false while fewer than period values were seen.
func (t *EMATracker) Update(v float64) (float64, bool) {
	t.count++

	if t.count < t.period {
		t.sum += v

		return 0, false
	}

	if t.count == t.period {
		t.sum += v
		t.value = t.sum / float64(t.period)

		return t.value, true
	}

	t.value = (v-t.value)*(2.0/float64(t.period+1)) + t.value

	return t.value, true
}

// Count is the number of values fed so far.
func (t *EMATracker) Count() int {
	return t.count
}
