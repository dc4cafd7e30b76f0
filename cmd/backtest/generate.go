package main

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/urfave/cli/v3"
)

const (
	defaultGenerateInterval   = time.Minute
	defaultGenerateVolatility = 0.002
)

// generateAction writes a reproducible synthetic series, handy for trying strategies without
// downloaded data.
func generateAction(_ context.Context, cmd *cli.Command) error {
	count := int(cmd.Int("count"))
	if count <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "count must be positive, got %d", count)
	}

	config := mocks.DefaultConfig()
	config.Symbol = cmd.String("symbol")
	config.Count = count
	config.Interval = cmd.Duration("interval")
	config.Volatility = cmd.Float("volatility")
	config.Trend = cmd.Float("trend")

	bars := mocks.NewDataGenerator(int64(cmd.Int("seed"))).Generate(config)

	return datasource.WriteParquet(cmd.String("output"), bars)
}
