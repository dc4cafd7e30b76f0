package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

type BollingerBandsConfig struct {
	Period int     `yaml:"period" json:"period" jsonschema:"title=Period,minimum=2,default=20" validate:"gte=2"`
	StdDev float64 `yaml:"std_dev" json:"std_dev" jsonschema:"title=Standard Deviations,description=Band width in sample standard deviations,exclusiveMinimum=0,default=2" validate:"gt=0"`
}

func DefaultBollingerBandsConfig() BollingerBandsConfig {
	return BollingerBandsConfig{Period: 20, StdDev: 2}
}

// BollingerBandsStrategy buys when the close touches the lower band and sells when it
// touches the upper band.
type BollingerBandsStrategy struct {
	config BollingerBandsConfig
}

func NewBollingerBandsStrategy(config BollingerBandsConfig) *BollingerBandsStrategy {
	return &BollingerBandsStrategy{config: config}
}

func (s *BollingerBandsStrategy) Name() string {
	return string(KindBollingerBands)
}

func (s *BollingerBandsStrategy) GenerateSignal(ctx Context) (types.Signal, error) {
	bar := ctx.Current()

	bands, err := indicator.BollingerBands(indicator.TrailingCloses(ctx.Bars, s.config.Period), s.config.Period, s.config.StdDev)
	if indicator.IsWarmingUp(err) {
		return types.Hold(bar.Time), nil
	}

	if err != nil {
		return types.Signal{}, err
	}

	// a flat window has no band to touch
	if bands.Upper == bands.Lower {
		return types.Hold(bar.Time), nil
	}

	switch {
	case bar.Close <= bands.Lower:
		return signal(bar, types.SignalTypeBuy, fmt.Sprintf("touched lower band: close %.2f <= %.2f", bar.Close, bands.Lower)), nil
	case bar.Close >= bands.Upper:
		return signal(bar, types.SignalTypeSell, fmt.Sprintf("touched upper band: close %.2f >= %.2f", bar.Close, bands.Upper)), nil
	default:
		return types.Hold(bar.Time), nil
	}
}
