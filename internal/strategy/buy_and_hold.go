package strategy

import "github.com/rxtech-lab/argo-backtest/internal/types"

type BuyAndHoldConfig struct{}

// BuyAndHoldStrategy buys on the first bar and never sells.
type BuyAndHoldStrategy struct{}

func NewBuyAndHoldStrategy() *BuyAndHoldStrategy {
	return &BuyAndHoldStrategy{}
}

func (s *BuyAndHoldStrategy) Name() string {
	return string(KindBuyAndHold)
}

func (s *BuyAndHoldStrategy) GenerateSignal(ctx Context) (types.Signal, error) {
	bar := ctx.Current()
	if ctx.Index == 0 {
		return signal(bar, types.SignalTypeBuy, "initial buy"), nil
	}

	return types.Hold(bar.Time), nil
}
