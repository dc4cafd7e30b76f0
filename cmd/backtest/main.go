package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/urfave/cli/v3"
)

func strategyNames() string {
	names := make([]string, len(strategy.AllKinds))
	for i, kind := range strategy.AllKinds {
		names[i] = string(kind)
	}

	return strings.Join(names, ", ")
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "backtest",
		Usage:   "Replay historical bars through trading strategies",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Backtest one or more strategies against a bar file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar file (`.parquet` or `.csv`)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the backtest engine config (YAML). Defaults apply when omitted",
					},
					&cli.StringSliceFlag{
						Name:     "strategy",
						Aliases:  []string{"s"},
						Usage:    fmt.Sprintf("Strategy to run, repeatable (one of %s)", strategyNames()),
						Required: true,
					},
					&cli.StringFlag{
						Name:  "strategy-config",
						Usage: "YAML file keyed by strategy name holding each strategy's config",
					},
					&cli.StringFlag{
						Name:    "results",
						Aliases: []string{"r"},
						Usage:   "Root folder of the written results",
						Value:   "results",
					},
					&cli.StringFlag{
						Name:  "metrics-file",
						Usage: "Write Prometheus metrics in text format to this file after the runs",
					},
					&cli.IntFlag{
						Name:    "parallelism",
						Aliases: []string{"p"},
						Usage:   "Maximum number of strategies run at the same time (0 means unbounded)",
						Value:   0,
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Hide the progress bar",
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Write the JSON schemas of the engine and strategy configs",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
			{
				Name:  "generate",
				Usage: "Write a synthetic bar series to a parquet file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Path of the parquet file to write",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "symbol",
						Usage: "Symbol of the generated bars",
						Value: "TEST",
					},
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of bars",
						Value:   10000,
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "Random seed",
						Value: 42,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Spacing between bars",
						Value: defaultGenerateInterval,
					},
					&cli.FloatFlag{
						Name:  "volatility",
						Usage: "Per-bar volatility (0.01 = 1%)",
						Value: defaultGenerateVolatility,
					},
					&cli.FloatFlag{
						Name:  "trend",
						Usage: "Total drift over the series",
					},
				},
				Action: generateAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
