package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	engine_v1 "github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	engineSchemaName = "backtest-engine-v1-config.json"
	sampleConfigName = "backtest-engine-v1-config.yaml"
)

// sampleConfig mirrors the keys of the engine config with their defaults.
type sampleConfig struct {
	InitialCapital    float64                  `yaml:"initial_capital"`
	CommissionRate    float64                  `yaml:"commission_rate"`
	SlippageRate      float64                  `yaml:"slippage_rate"`
	PositionSizing    engine_v1.PositionSizing `yaml:"position_sizing"`
	FillTiming        engine_v1.FillTiming     `yaml:"fill_timing"`
	EndOfRunPolicy    engine_v1.EndOfRunPolicy `yaml:"end_of_run_policy"`
	RiskFreeRate      float64                  `yaml:"risk_free_rate"`
	PeriodsPerYear    float64                  `yaml:"periods_per_year"`
	QuantityPrecision int                      `yaml:"quantity_precision"`
}

func newSampleConfig() sampleConfig {
	defaults := engine_v1.DefaultConfig()

	return sampleConfig{
		InitialCapital:    defaults.InitialCapital,
		CommissionRate:    defaults.CommissionRate,
		SlippageRate:      defaults.SlippageRate,
		PositionSizing:    defaults.PositionSizing,
		FillTiming:        defaults.FillTiming,
		EndOfRunPolicy:    defaults.EndOfRunPolicy,
		RiskFreeRate:      defaults.RiskFreeRate,
		PeriodsPerYear:    defaults.PeriodsPerYear,
		QuantityPrecision: defaults.QuantityPrecision,
	}
}

// schemaAction writes the engine config schema, a sample engine config (if none exists yet)
// and one schema per built-in strategy into the output directory.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	output := cmd.String("output")

	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := engine_v1.DefaultConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	schemaPath := filepath.Join(output, engineSchemaName)
	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	sampleConfigPath := filepath.Join(output, sampleConfigName)
	if _, err := os.Stat(sampleConfigPath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(newSampleConfig())
		if err != nil {
			return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
		}

		yamlBytes = append([]byte("# yaml-language-server: $schema="+engineSchemaName+"\n"), yamlBytes...)
		if err := os.WriteFile(sampleConfigPath, yamlBytes, 0644); err != nil {
			return fmt.Errorf("failed to write sample config to file: %w", err)
		}
	}

	for _, kind := range strategy.AllKinds {
		schema, err := strategy.Schema(kind)
		if err != nil {
			return err
		}

		path := filepath.Join(output, fmt.Sprintf("strategy-%s-config.json", kind))
		if err := os.WriteFile(path, []byte(schema), 0644); err != nil {
			return fmt.Errorf("failed to write strategy schema to file: %w", err)
		}
	}

	return nil
}
