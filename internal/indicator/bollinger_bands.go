package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands returns the SMA of the last period values and the bands stdDev sample
// standard deviations above and below it.
func BollingerBands(values []float64, period int, stdDev float64) (Bands, error) {
	if err := checkWindow("BollingerBands", values, period, period); err != nil {
		return Bands{}, err
	}

	if period < 2 {
		return Bands{}, errors.Newf(errors.ErrCodeInvalidPeriod, "BollingerBands: period must be at least 2, got %d", period)
	}

	if stdDev <= 0 {
		return Bands{}, errors.Newf(errors.ErrCodeInvalidParameter, "BollingerBands: std dev multiplier must be positive, got %v", stdDev)
	}

	middle, _ := SMA(values, period)
	window := values[len(values)-period:]

	sum := 0.0
	for _, v := range window {
		sum += (v - middle) * (v - middle)
	}

	deviation := math.Sqrt(sum/float64(period-1)) * stdDev

	return Bands{
		Upper:  middle + deviation,
		Middle: middle,
		Lower:  middle - deviation,
	}, nil
}
