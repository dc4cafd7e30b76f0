package strategy

import (
	"fmt"
	"testing"
)

// BenchmarkReplay streams every causal prefix of a series through each built-in strategy.
// The time per bar should stay flat as the series grows.
func BenchmarkReplay(b *testing.B) {
	strategies := map[string]func() Strategy{
		"sma":             func() Strategy { return NewMovingAverageStrategy(DefaultMovingAverageConfig()) },
		"ema":             func() Strategy { return NewMovingAverageStrategy(MovingAverageConfig{ShortWindow: 12, LongWindow: 26, Type: "ema"}) },
		"rsi":             func() Strategy { return NewRSIStrategy(DefaultRSIConfig()) },
		"bollinger_bands": func() Strategy { return NewBollingerBandsStrategy(DefaultBollingerBandsConfig()) },
	}

	for _, n := range []int{10000, 40000} {
		series := wave(n)

		for name, newStrategy := range strategies {
			b.Run(fmt.Sprintf("%s/%d", name, n), func(b *testing.B) {
				b.ReportAllocs()

				for i := 0; i < b.N; i++ {
					if _, err := replay(newStrategy(), series); err != nil {
						b.Fatal(err)
					}
				}

				b.ReportMetric(float64(b.Elapsed().Nanoseconds())/float64(b.N*n), "ns/bar")
			})
		}
	}
}
