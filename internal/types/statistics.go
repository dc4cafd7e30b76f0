package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Metrics is the standardized performance summary of one run.
type Metrics struct {
	TotalReturn      float64 `json:"total_return" yaml:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return" yaml:"annualized_return"`
	// MaxDrawdown is a fraction of the running peak, in [0, 1]
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
	// Volatility is the annualized sample standard deviation of periodic returns
	Volatility  float64 `json:"volatility" yaml:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	// WinRate is winning closed trades over closed trades
	WinRate          float64 `json:"win_rate" yaml:"win_rate"`
	TradeCount       int     `json:"trade_count" yaml:"trade_count"`
	ClosedTradeCount int     `json:"closed_trade_count" yaml:"closed_trade_count"`
	WinningTrades    int     `json:"winning_trades" yaml:"winning_trades"`
	LosingTrades     int     `json:"losing_trades" yaml:"losing_trades"`

	AvgHoldingPeriod time.Duration `json:"avg_holding_period" yaml:"avg_holding_period"`
	MinHoldingPeriod time.Duration `json:"min_holding_period" yaml:"min_holding_period"`
	MaxHoldingPeriod time.Duration `json:"max_holding_period" yaml:"max_holding_period"`

	RealizedPnL   float64 `json:"realized_pnl" yaml:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	TotalFees     float64 `json:"total_fees" yaml:"total_fees"`
	// MaximumProfit is the largest realized pnl of a single trade
	MaximumProfit float64 `json:"maximum_profit" yaml:"maximum_profit"`
	// MaximumLoss is the smallest realized pnl of a single trade
	MaximumLoss float64 `json:"maximum_loss" yaml:"maximum_loss"`
	// ProfitFactor is gross profit over gross loss, zero when there is no loss
	ProfitFactor float64 `json:"profit_factor" yaml:"profit_factor"`
}

// BacktestResult is everything a run produces. It shares no memory with the engine.
type BacktestResult struct {
	ID               string    `json:"id"`
	Symbol           string    `json:"symbol"`
	StrategyName     string    `json:"strategy_name"`
	InitialCapital   float64   `json:"initial_capital"`
	FinalEquity      float64   `json:"final_equity"`
	TotalReturn      float64   `json:"total_return"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	Volatility       float64   `json:"volatility"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	WinRate          float64   `json:"win_rate"`
	TradeCount       int       `json:"trade_count"`
	BuyAndHoldReturn float64   `json:"buy_and_hold_return"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	// Partial is set when the run was cancelled before the last bar.
	Partial bool    `json:"partial"`
	Metrics Metrics `json:"metrics"`

	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	// OpenPosition is set when the run ended with a position still open.
	OpenPosition *Position   `json:"open_position,omitempty"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
}

// Clone returns a deep copy of the result.
func (r *BacktestResult) Clone() *BacktestResult {
	if r == nil {
		return nil
	}

	c := *r

	c.Trades = make([]Trade, len(r.Trades))
	for i, t := range r.Trades {
		c.Trades[i] = t.Clone()
	}

	c.EquityCurve = append([]EquityPoint(nil), r.EquityCurve...)
	c.Diagnostics = append([]Diagnostic(nil), r.Diagnostics...)

	if r.OpenPosition != nil {
		position := *r.OpenPosition
		c.OpenPosition = &position
	}

	return &c
}

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg"`
}

type TradePnl struct {
	RealizedPnL   float64 `yaml:"realized_pnl"`
	UnrealizedPnL float64 `yaml:"unrealized_pnl"`
	// Total PnL. By adding RealizedPnL and UnrealizedPnL.
	TotalPnL      float64 `yaml:"total_pnl"`
	MaximumLoss   float64 `yaml:"maximum_loss"`
	MaximumProfit float64 `yaml:"maximum_profit"`
	ProfitFactor  float64 `yaml:"profit_factor"`
}

type TradeResult struct {
	NumberOfTrades        int     `yaml:"number_of_trades"`
	NumberOfClosedTrades  int     `yaml:"number_of_closed_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades"`
	WinRate               float64 `yaml:"win_rate"`
}

type RiskResult struct {
	TotalReturn      float64 `yaml:"total_return"`
	AnnualizedReturn float64 `yaml:"annualized_return"`
	MaxDrawdown      float64 `yaml:"max_drawdown"`
	Volatility       float64 `yaml:"volatility"`
	SharpeRatio      float64 `yaml:"sharpe_ratio"`
}

// BacktestStats is the stats.yaml document written for each run.
type BacktestStats struct {
	ID               string           `yaml:"id"`
	EngineVersion    string           `yaml:"engine_version"`
	Timestamp        time.Time        `yaml:"timestamp"`
	Symbol           string           `yaml:"symbol"`
	Strategy         string           `yaml:"strategy"`
	StartTime        time.Time        `yaml:"start_time"`
	EndTime          time.Time        `yaml:"end_time"`
	Partial          bool             `yaml:"partial"`
	InitialCapital   float64          `yaml:"initial_capital"`
	FinalEquity      float64          `yaml:"final_equity"`
	Risk             RiskResult       `yaml:"risk"`
	TradeResult      TradeResult      `yaml:"trade_result"`
	TotalFees        float64          `yaml:"total_fees"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time"`
	TradePnl         TradePnl         `yaml:"trade_pnl"`
	BuyAndHoldReturn float64          `yaml:"buy_and_hold_return"`
	OpenPosition     *Position        `yaml:"open_position,omitempty"`
	Diagnostics      []Diagnostic     `yaml:"diagnostics,omitempty"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path,omitempty"`
	// EquityFilePath is the path to the equity curve parquet file.
	EquityFilePath string `yaml:"equity_file_path,omitempty"`
	// DataPath is the path to the market data file used for this backtest.
	DataPath string `yaml:"data_path,omitempty"`
}

// NewBacktestStats flattens a result into its stats document.
func NewBacktestStats(result *BacktestResult, timestamp time.Time) BacktestStats {
	m := result.Metrics

	return BacktestStats{
		ID:             result.ID,
		Timestamp:      timestamp,
		Symbol:         result.Symbol,
		Strategy:       result.StrategyName,
		StartTime:      result.StartTime,
		EndTime:        result.EndTime,
		Partial:        result.Partial,
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		Risk: RiskResult{
			TotalReturn:      m.TotalReturn,
			AnnualizedReturn: m.AnnualizedReturn,
			MaxDrawdown:      m.MaxDrawdown,
			Volatility:       m.Volatility,
			SharpeRatio:      m.SharpeRatio,
		},
		TradeResult: TradeResult{
			NumberOfTrades:        m.TradeCount,
			NumberOfClosedTrades:  m.ClosedTradeCount,
			NumberOfWinningTrades: m.WinningTrades,
			NumberOfLosingTrades:  m.LosingTrades,
			WinRate:               m.WinRate,
		},
		TotalFees: m.TotalFees,
		TradeHoldingTime: TradeHoldingTime{
			Min: int(m.MinHoldingPeriod.Seconds()),
			Max: int(m.MaxHoldingPeriod.Seconds()),
			Avg: int(m.AvgHoldingPeriod.Seconds()),
		},
		TradePnl: TradePnl{
			RealizedPnL:   m.RealizedPnL,
			UnrealizedPnL: m.UnrealizedPnL,
			TotalPnL:      m.RealizedPnL + m.UnrealizedPnL,
			MaximumLoss:   m.MaximumLoss,
			MaximumProfit: m.MaximumProfit,
			ProfitFactor:  m.ProfitFactor,
		},
		BuyAndHoldReturn: result.BuyAndHoldReturn,
		OpenPosition:     result.OpenPosition,
		Diagnostics:      result.Diagnostics,
	}
}

func WriteBacktestStats(path string, stats []BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}
