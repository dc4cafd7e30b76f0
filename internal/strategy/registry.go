package strategy

import (
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Kind names a built-in strategy.
type Kind string

const (
	KindMovingAverage  Kind = "moving_average"
	KindRSI            Kind = "rsi"
	KindBollingerBands Kind = "bollinger_bands"
	KindBuyAndHold     Kind = "buy_and_hold"
)

// AllKinds lists the built-in strategies in a stable order.
var AllKinds = []Kind{
	KindMovingAverage,
	KindRSI,
	KindBollingerBands,
	KindBuyAndHold,
}

type builtin struct {
	construct func(config []byte) (Strategy, error)
	schema    func() (string, error)
}

var builtins = map[Kind]builtin{
	KindMovingAverage: {
		construct: func(config []byte) (Strategy, error) {
			c, err := decodeConfig(config, DefaultMovingAverageConfig())
			if err != nil {
				return nil, err
			}

			return NewMovingAverageStrategy(c), nil
		},
		schema: func() (string, error) { return ToJSONSchema(MovingAverageConfig{}) },
	},
	KindRSI: {
		construct: func(config []byte) (Strategy, error) {
			c, err := decodeConfig(config, DefaultRSIConfig())
			if err != nil {
				return nil, err
			}

			return NewRSIStrategy(c), nil
		},
		schema: func() (string, error) { return ToJSONSchema(RSIConfig{}) },
	},
	KindBollingerBands: {
		construct: func(config []byte) (Strategy, error) {
			c, err := decodeConfig(config, DefaultBollingerBandsConfig())
			if err != nil {
				return nil, err
			}

			return NewBollingerBandsStrategy(c), nil
		},
		schema: func() (string, error) { return ToJSONSchema(BollingerBandsConfig{}) },
	},
	KindBuyAndHold: {
		construct: func(config []byte) (Strategy, error) {
			if _, err := decodeConfig(config, BuyAndHoldConfig{}); err != nil {
				return nil, err
			}

			return NewBuyAndHoldStrategy(), nil
		},
		schema: func() (string, error) { return ToJSONSchema(BuyAndHoldConfig{}) },
	},
}

// ParseKind resolves a strategy name.
func ParseKind(name string) (Kind, error) {
	kind := Kind(name)
	if _, ok := builtins[kind]; !ok {
		return "", errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy %q", name)
	}

	return kind, nil
}

// New builds the strategy of kind from its YAML config. An empty config uses the defaults.
func New(kind Kind, config []byte) (Strategy, error) {
	b, ok := builtins[kind]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy %q", kind)
	}

	return b.construct(config)
}

// Schema returns the JSON schema of the config of kind.
func Schema(kind Kind) (string, error) {
	b, ok := builtins[kind]
	if !ok {
		return "", errors.Newf(errors.ErrCodeUnsupportedStrategy, "unsupported strategy %q", kind)
	}

	return b.schema()
}
