package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type RSIConfig struct {
	Period     int     `yaml:"period" json:"period" jsonschema:"title=Period,minimum=1,default=14" validate:"gt=0"`
	Oversold   float64 `yaml:"oversold" json:"oversold" jsonschema:"title=Oversold,description=Buy below this RSI,minimum=0,maximum=100,default=30" validate:"gte=0,lte=100"`
	Overbought float64 `yaml:"overbought" json:"overbought" jsonschema:"title=Overbought,description=Sell above this RSI,minimum=0,maximum=100,default=70" validate:"gtfield=Oversold,lte=100"`
}

func DefaultRSIConfig() RSIConfig {
	return RSIConfig{Period: 14, Oversold: 30, Overbought: 70}
}

// RSIStrategy buys when the RSI drops below the oversold level and sells when it rises
// above the overbought level.
type RSIStrategy struct {
	config RSIConfig
}

func NewRSIStrategy(config RSIConfig) *RSIStrategy {
	return &RSIStrategy{config: config}
}

func (s *RSIStrategy) Name() string {
	return string(KindRSI)
}

func (s *RSIStrategy) GenerateSignal(ctx Context) (types.Signal, error) {
	bar := ctx.Current()

	rsi, err := indicator.RSI(indicator.TrailingCloses(ctx.Bars, s.config.Period+1), s.config.Period)
	if indicator.IsWarmingUp(err) {
		return types.Hold(bar.Time), nil
	}

	if err != nil {
		return types.Signal{}, err
	}

	switch {
	case rsi < s.config.Oversold:
		return signal(bar, types.SignalTypeBuy, fmt.Sprintf("oversold: RSI %.2f < %.2f", rsi, s.config.Oversold)), nil
	case rsi > s.config.Overbought:
		return signal(bar, types.SignalTypeSell, fmt.Sprintf("overbought: RSI %.2f > %.2f", rsi, s.config.Overbought)), nil
	default:
		return types.Hold(bar.Time), nil
	}
}
