package indicator

// RSI is the relative strength index over the last period price changes, using the
// simple mean of gains and losses. A window without any losses is 100, a window without
// any movement is 50.
func RSI(values []float64, period int) (float64, error) {
	if err := checkWindow("RSI", values, period, period+1); err != nil {
		return 0, err
	}

	window := values[len(values)-period-1:]
	gain, loss := 0.0, 0.0

	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}

	if gain == 0 && loss == 0 {
		return 50, nil
	}

	if loss == 0 {
		return 100, nil
	}

	rs := (gain / float64(period)) / (loss / float64(period))

	return 100 - 100/(1+rs), nil
}
