package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type MovingAverageConfig struct {
	ShortWindow int              `yaml:"short_window" json:"short_window" jsonschema:"title=Short Window,description=Period of the fast moving average,minimum=1,default=5" validate:"gt=0"`
	LongWindow  int              `yaml:"long_window" json:"long_window" jsonschema:"title=Long Window,description=Period of the slow moving average,minimum=2,default=20" validate:"gtfield=ShortWindow"`
	Type        indicator.MAType `yaml:"type" json:"type" jsonschema:"title=Type,description=Moving average type,enum=sma,enum=ema,default=sma" validate:"omitempty,oneof=sma ema"`
}

func DefaultMovingAverageConfig() MovingAverageConfig {
	return MovingAverageConfig{ShortWindow: 5, LongWindow: 20, Type: indicator.MATypeSimple}
}

// MovingAverageStrategy buys when the short average crosses above the long average and
// sells when it crosses below.
//
// With the ema type the averages are carried from bar to bar, so an instance follows one
// series at a time. A call that does not extend the previous prefix by one bar replays the
// prefix from its start.
type MovingAverageStrategy struct {
	config MovingAverageConfig

	mu       sync.Mutex
	short    *indicator.EMATracker
	long     *indicator.EMATracker
	lastTime time.Time
	current  averages
	previous averages
}

type averages struct {
	short float64
	long  float64
}

func NewMovingAverageStrategy(config MovingAverageConfig) *MovingAverageStrategy {
	return &MovingAverageStrategy{config: config}
}

func (s *MovingAverageStrategy) Name() string {
	return string(KindMovingAverage)
}

func (s *MovingAverageStrategy) GenerateSignal(ctx Context) (types.Signal, error) {
	bar := ctx.Current()

	var (
		current, previous averages
		err               error
	)

	if s.config.Type == indicator.MATypeExponential {
		if s.config.ShortWindow <= 0 || s.config.LongWindow <= 0 {
			return types.Signal{}, errors.Newf(errors.ErrCodeInvalidPeriod,
				"EMA: periods must be positive integers, got %d and %d", s.config.ShortWindow, s.config.LongWindow)
		}

		current, previous = s.exponential(ctx.Bars)
	}

	// the crossover needs the long average on this bar and the previous one
	if len(ctx.Bars) < s.config.LongWindow+1 {
		return types.Hold(bar.Time), nil
	}

	if s.config.Type != indicator.MATypeExponential {
		current, previous, err = s.trailing(ctx.Bars)
		if err != nil {
			return types.Signal{}, err
		}
	}

	switch {
	case previous.short <= previous.long && current.short > current.long:
		return signal(bar, types.SignalTypeBuy, fmt.Sprintf("golden cross: short MA %.2f > long MA %.2f", current.short, current.long)), nil
	case previous.short >= previous.long && current.short < current.long:
		return signal(bar, types.SignalTypeSell, fmt.Sprintf("death cross: short MA %.2f < long MA %.2f", current.short, current.long)), nil
	default:
		return types.Hold(bar.Time), nil
	}
}

// trailing computes both averages from the last LongWindow+1 closes.
func (s *MovingAverageStrategy) trailing(bars []types.Bar) (averages, averages, error) {
	closes := indicator.TrailingCloses(bars, s.config.LongWindow+1)

	current, err := s.averagesOf(closes)
	if err != nil {
		return averages{}, averages{}, err
	}

	previous, err := s.averagesOf(closes[:len(closes)-1])
	if err != nil {
		return averages{}, averages{}, err
	}

	return current, previous, nil
}

func (s *MovingAverageStrategy) averagesOf(closes []float64) (averages, error) {
	short, err := indicator.MovingAverage(s.config.Type, closes, s.config.ShortWindow)
	if err != nil {
		return averages{}, err
	}

	long, err := indicator.MovingAverage(s.config.Type, closes, s.config.LongWindow)
	if err != nil {
		return averages{}, err
	}

	return averages{short: short, long: long}, nil
}

// exponential advances the EMA trackers to the last bar of bars.
func (s *MovingAverageStrategy) exponential(bars []types.Bar) (averages, averages) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(bars)
	extends := s.short != nil && s.short.Count() == n-1 && n > 1 && bars[n-2].Time.Equal(s.lastTime)

	if !extends {
		s.short = indicator.NewEMATracker(s.config.ShortWindow)
		s.long = indicator.NewEMATracker(s.config.LongWindow)
		s.current = averages{}

		for _, bar := range bars[:n-1] {
			s.advance(bar.Close)
		}
	}

	s.advance(bars[n-1].Close)
	s.lastTime = bars[n-1].Time

	return s.current, s.previous
}

func (s *MovingAverageStrategy) advance(price float64) {
	s.previous = s.current
	s.current.short, _ = s.short.Update(price)
	s.current.long, _ = s.long.Update(price)
}
