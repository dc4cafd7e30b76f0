package main

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/results"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// runAction loads the bars once and backtests every requested strategy against them.
func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	dataPath := cmd.String("data")
	configPath := cmd.String("config")

	config := engine_v1.DefaultConfig()
	if configPath != "" {
		config, err = engine_v1.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}

	strategyConfigs, err := loadStrategyConfigs(cmd.String("strategy-config"))
	if err != nil {
		return err
	}

	strategies, err := buildStrategies(cmd.StringSlice("strategy"), strategyConfigs)
	if err != nil {
		return err
	}

	ds, err := datasource.NewDataSource(":memory:", log)
	if err != nil {
		return err
	}
	defer ds.Close()

	bars, err := loadBars(ds, dataPath, config, log)
	if err != nil {
		return err
	}

	var callbacks engine.LifecycleCallbacks

	if !cmd.Bool("quiet") {
		bar := progressbar.NewOptions(len(bars)*len(strategies),
			progressbar.OptionSetDescription("Backtesting"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)
		defer bar.Finish()

		onProcessData := engine.OnProcessDataCallback(func(_ int, _ int) error {
			return bar.Add(1)
		})
		callbacks.OnProcessData = &onProcessData
	}

	jobs := make([]engine_v1.Job, len(strategies))
	for i, s := range strategies {
		jobs[i] = engine_v1.Job{
			Config:    config,
			Bars:      bars,
			Strategy:  s,
			Callbacks: callbacks,
		}
	}

	outcomes := engine_v1.RunMany(ctx, jobs, int(cmd.Int("parallelism")), log)

	writer := results.NewWriter(log)
	resultsRoot := cmd.String("results")

	var failures []error

	for i, outcome := range outcomes {
		name := strategies[i].Name()

		if outcome.Result != nil {
			folder := results.Folder(resultsRoot, name, configPath, dataPath, config.StartTime, config.EndTime)
			if _, err := writer.Write(folder, outcome.Result, dataPath); err != nil {
				failures = append(failures, err)
			}

			logSummary(log, outcome.Result)
		}

		if outcome.Err != nil {
			failures = append(failures, errors.Wrapf(errors.GetCode(outcome.Err), outcome.Err, "strategy %s failed", name))
		}
	}

	if metricsFile := cmd.String("metrics-file"); metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			failures = append(failures, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write metrics", err))
		}
	}

	return stderrors.Join(failures...)
}

// loadStrategyConfigs reads a YAML document mapping strategy names to their config.
// An empty path means every strategy uses its defaults.
func loadStrategyConfigs(path string) (map[strategy.Kind][]byte, error) {
	configs := make(map[strategy.Kind][]byte)
	if path == "" {
		return configs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to read strategy config %s", path)
	}

	var documents map[string]yaml.Node
	if err := yaml.Unmarshal(data, &documents); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfigError, "failed to parse strategy config", err)
	}

	for name, node := range documents {
		kind, err := strategy.ParseKind(name)
		if err != nil {
			return nil, err
		}

		section, err := yaml.Marshal(&node)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to read config of %s", name)
		}

		configs[kind] = section
	}

	return configs, nil
}

func buildStrategies(names []string, configs map[strategy.Kind][]byte) ([]strategy.Strategy, error) {
	seen := make(map[strategy.Kind]bool, len(names))
	strategies := make([]strategy.Strategy, 0, len(names))

	for _, name := range names {
		kind, err := strategy.ParseKind(name)
		if err != nil {
			return nil, err
		}

		// results are written per strategy name
		if seen[kind] {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "strategy %s given more than once", name)
		}
		seen[kind] = true

		s, err := strategy.New(kind, configs[kind])
		if err != nil {
			return nil, err
		}

		strategies = append(strategies, s)
	}

	return strategies, nil
}

// loadBars reads the bar file at path, restricted to the configured symbol and time window.
// Without a configured symbol the file must hold a single one.
func loadBars(ds datasource.DataSource, path string, config engine_v1.BacktestEngineV1Config, log *logger.Logger) ([]types.Bar, error) {
	if err := ds.Initialize(path); err != nil {
		return nil, err
	}

	symbol := config.Symbol
	if symbol == "" {
		symbols, err := ds.GetAllSymbols()
		if err != nil {
			return nil, err
		}

		if len(symbols) > 1 {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
				"%s holds %d symbols, set symbol in the backtest config", path, len(symbols))
		}
	}

	bars, err := datasource.Collect(ds, symbol, config.StartTime, config.EndTime)
	if err != nil {
		return nil, err
	}

	log.Info("Loaded bars",
		zap.String("path", path),
		zap.String("symbol", bars[0].Symbol),
		zap.Int("bars", len(bars)),
	)

	return bars, nil
}

func logSummary(log *logger.Logger, result *types.BacktestResult) {
	log.Info("Backtest summary",
		zap.String("strategy", result.StrategyName),
		zap.String("symbol", result.Symbol),
		zap.Bool("partial", result.Partial),
		zap.Float64("final_equity", result.FinalEquity),
		zap.Float64("total_return", result.TotalReturn),
		zap.Float64("buy_and_hold_return", result.BuyAndHoldReturn),
		zap.Float64("max_drawdown", result.MaxDrawdown),
		zap.Float64("sharpe_ratio", result.SharpeRatio),
		zap.Float64("win_rate", result.WinRate),
		zap.Int("trades", result.TradeCount),
		zap.Int("diagnostics", len(result.Diagnostics)),
	)
}
