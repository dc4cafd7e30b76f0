package engine

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

type SizingPolicy string

const (
	// SizingPercentOfEquity spends Value (a fraction in (0, 1]) of total equity on each entry
	SizingPercentOfEquity SizingPolicy = "percent_of_equity"
	// SizingFixedNotional spends Value units of quote currency on each entry
	SizingFixedNotional SizingPolicy = "fixed_notional"
	// SizingFixedQuantity buys Value units of the instrument on each entry
	SizingFixedQuantity SizingPolicy = "fixed_quantity"
)

type FillTiming string

const (
	// FillSameBarClose fills a signal at the close of the bar that produced it
	FillSameBarClose FillTiming = "same_bar_close"
	// FillNextBarOpen fills a signal at the open of the following bar
	FillNextBarOpen FillTiming = "next_bar_open"
)

type EndOfRunPolicy string

const (
	// EndOfRunForceClose closes any open position at the last close
	EndOfRunForceClose EndOfRunPolicy = "force_close"
	// EndOfRunLeaveOpen reports the open position and its unrealized pnl
	EndOfRunLeaveOpen EndOfRunPolicy = "leave_open"
)

const (
	DefaultInitialCapital    = 10000.0
	DefaultQuantityPrecision = 8
	MaxQuantityPrecision     = 12
)

type PositionSizing struct {
	Policy SizingPolicy `yaml:"policy" json:"policy" jsonschema:"title=Policy,description=How the quantity of an entry is computed,enum=percent_of_equity,enum=fixed_notional,enum=fixed_quantity" validate:"required,oneof=percent_of_equity fixed_notional fixed_quantity"`
	Value  float64      `yaml:"value" json:"value" jsonschema:"title=Value,description=Fraction of equity / notional / quantity depending on the policy,exclusiveMinimum=0" validate:"gt=0"`
}

type BacktestEngineV1Config struct {
	InitialCapital    float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital for the backtest,exclusiveMinimum=0" validate:"gt=0"`
	CommissionRate    float64                    `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Fraction of notional charged on every fill,minimum=0" validate:"gte=0"`
	Broker            commission_fee.Broker      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=Commission model. Defaults to percentage using commission_rate" validate:"omitempty,oneof=percentage interactive_broker zero_commission"`
	SlippageRate      float64                    `yaml:"slippage_rate" json:"slippage_rate" jsonschema:"title=Slippage Rate,description=Buys fill at price*(1+rate) and sells at price*(1-rate),minimum=0,exclusiveMaximum=1" validate:"gte=0,lt=1"`
	PositionSizing    PositionSizing             `yaml:"position_sizing" json:"position_sizing" jsonschema:"title=Position Sizing"`
	FillTiming        FillTiming                 `yaml:"fill_timing" json:"fill_timing" jsonschema:"title=Fill Timing,enum=same_bar_close,enum=next_bar_open" validate:"required,oneof=same_bar_close next_bar_open"`
	EndOfRunPolicy    EndOfRunPolicy             `yaml:"end_of_run_policy" json:"end_of_run_policy" jsonschema:"title=End Of Run Policy,enum=force_close,enum=leave_open" validate:"required,oneof=force_close leave_open"`
	RiskFreeRate      float64                    `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk Free Rate,description=Annualized risk-free rate used by the Sharpe ratio"`
	PeriodsPerYear    float64                    `yaml:"periods_per_year" json:"periods_per_year" jsonschema:"title=Periods Per Year,description=Annualization factor. Zero infers it from the bar spacing,minimum=0" validate:"gte=0"`
	QuantityPrecision int                        `yaml:"quantity_precision" json:"quantity_precision" jsonschema:"title=Quantity Precision,description=Decimal places kept when sizing an order,minimum=0,maximum=12" validate:"gte=0,lte=12"`
	Symbol            string                     `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Symbol to backtest. Empty uses the symbol of the data"`
	StartTime         optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime           optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
}

// UnmarshalYAML fills missing keys with defaults and turns the time bounds into options.
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type positionSizing struct {
		Policy *SizingPolicy `yaml:"policy"`
		Value  *float64      `yaml:"value"`
	}

	type Config struct {
		InitialCapital    *float64              `yaml:"initial_capital"`
		CommissionRate    float64               `yaml:"commission_rate"`
		Broker            commission_fee.Broker `yaml:"broker"`
		SlippageRate      float64               `yaml:"slippage_rate"`
		PositionSizing    *positionSizing       `yaml:"position_sizing"`
		FillTiming        FillTiming            `yaml:"fill_timing"`
		EndOfRunPolicy    EndOfRunPolicy        `yaml:"end_of_run_policy"`
		RiskFreeRate      float64               `yaml:"risk_free_rate"`
		PeriodsPerYear    float64               `yaml:"periods_per_year"`
		QuantityPrecision *int                  `yaml:"quantity_precision"`
		Symbol            string                `yaml:"symbol"`
		StartTime         *time.Time            `yaml:"start_time"`
		EndTime           *time.Time            `yaml:"end_time"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	*c = DefaultConfig()

	if config.InitialCapital != nil {
		c.InitialCapital = *config.InitialCapital
	}

	c.CommissionRate = config.CommissionRate
	c.Broker = config.Broker
	c.SlippageRate = config.SlippageRate
	c.RiskFreeRate = config.RiskFreeRate
	c.PeriodsPerYear = config.PeriodsPerYear
	c.Symbol = config.Symbol

	if config.PositionSizing != nil {
		if config.PositionSizing.Policy != nil {
			c.PositionSizing.Policy = *config.PositionSizing.Policy
		}

		if config.PositionSizing.Value != nil {
			c.PositionSizing.Value = *config.PositionSizing.Value
		}
	}

	if config.FillTiming != "" {
		c.FillTiming = config.FillTiming
	}

	if config.EndOfRunPolicy != "" {
		c.EndOfRunPolicy = config.EndOfRunPolicy
	}

	if config.QuantityPrecision != nil {
		c.QuantityPrecision = *config.QuantityPrecision
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks every field and the cross-field rules.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if c.PositionSizing.Policy == SizingPercentOfEquity && c.PositionSizing.Value > 1 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"position_sizing.value must be in (0, 1] for percent_of_equity, got %v", c.PositionSizing.Value)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time must not be before start_time")
	}

	return nil
}

// CommissionFee returns the fee model selected by the config.
func (c *BacktestEngineV1Config) CommissionFee() commission_fee.CommissionFee {
	return commission_fee.GetCommissionFeeHandler(c.Broker, c.CommissionRate)
}

// ParseConfig decodes a YAML document, rejecting unknown keys, and validates it.
func ParseConfig(data []byte) (BacktestEngineV1Config, error) {
	config := DefaultConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		// an empty document keeps the defaults
		if !errors.Is(err, io.EOF) {
			return BacktestEngineV1Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
		}
	}

	if err := config.Validate(); err != nil {
		return BacktestEngineV1Config{}, err
	}

	return config, nil
}

// LoadConfig reads and parses the YAML config at path.
func LoadConfig(path string) (BacktestEngineV1Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestEngineV1Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return ParseConfig(data)
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a config with every optional key at its default.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital: DefaultInitialCapital,
		PositionSizing: PositionSizing{
			Policy: SizingPercentOfEquity,
			Value:  1,
		},
		FillTiming:        FillSameBarClose,
		EndOfRunPolicy:    EndOfRunForceClose,
		QuantityPrecision: DefaultQuantityPrecision,
		StartTime:         optional.None[time.Time](),
		EndTime:           optional.None[time.Time](),
	}
}

// TestConfig returns a frictionless config used by tests.
func TestConfig(initialCapital float64) BacktestEngineV1Config {
	config := DefaultConfig()
	config.InitialCapital = initialCapital

	return config
}
