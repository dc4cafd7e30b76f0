// Package results persists finished backtest runs: a stats.yaml summary plus the trade log
// and the equity curve as parquet files.
package results

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	StatsFileName  = "stats.yaml"
	TradesFileName = "trades.parquet"
	EquityFileName = "equity.parquet"
)

// TradeRecord is the parquet schema of trades.parquet. Exit columns are zero while Closed is false.
type TradeRecord struct {
	ID              string  `parquet:"id"`
	Symbol          string  `parquet:"symbol"`
	Side            string  `parquet:"side"`
	EntryTime       int64   `parquet:"entry_time,timestamp(microsecond)"`
	EntryPrice      float64 `parquet:"entry_price"`
	Quantity        float64 `parquet:"quantity"`
	EntryCommission float64 `parquet:"entry_commission"`
	Closed          bool    `parquet:"closed"`
	ExitTime        int64   `parquet:"exit_time,timestamp(microsecond)"`
	ExitPrice       float64 `parquet:"exit_price"`
	ExitCommission  float64 `parquet:"exit_commission"`
	CommissionPaid  float64 `parquet:"commission_paid"`
	RealizedPnL     float64 `parquet:"realized_pnl"`
	ExitReason      string  `parquet:"exit_reason"`
}

// EquityRecord is the parquet schema of equity.parquet.
type EquityRecord struct {
	Time          int64   `parquet:"time,timestamp(microsecond)"`
	Cash          float64 `parquet:"cash"`
	PositionValue float64 `parquet:"position_value"`
	TotalEquity   float64 `parquet:"total_equity"`
}

func NewTradeRecord(trade types.Trade) TradeRecord {
	record := TradeRecord{
		ID:              trade.ID,
		Symbol:          trade.Symbol,
		Side:            string(trade.Side),
		EntryTime:       trade.EntryTime.UnixMicro(),
		EntryPrice:      trade.EntryPrice,
		Quantity:        trade.Quantity,
		EntryCommission: trade.EntryCommission,
		Closed:          trade.IsClosed(),
		ExitCommission:  trade.ExitCommission,
		CommissionPaid:  trade.CommissionPaid,
		RealizedPnL:     trade.PnL(),
		ExitReason:      string(trade.ExitReason),
	}

	if trade.IsClosed() {
		record.ExitTime = trade.ExitTime.Unwrap().UnixMicro()
		record.ExitPrice = trade.ExitPrice.Unwrap()
	}

	return record
}

func NewEquityRecord(point types.EquityPoint) EquityRecord {
	return EquityRecord{
		Time:          point.Time.UnixMicro(),
		Cash:          point.Cash,
		PositionValue: point.PositionValue,
		TotalEquity:   point.TotalEquity,
	}
}

// Writer writes run results into result folders.
type Writer struct {
	log *logger.Logger
	now func() time.Time
}

func NewWriter(log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Writer{log: log, now: time.Now}
}

// Write creates folder and writes stats.yaml, trades.parquet and equity.parquet into it.
// dataPath is recorded in the stats document.
func (w *Writer) Write(folder string, result *types.BacktestResult, dataPath string) (types.BacktestStats, error) {
	if result == nil {
		return types.BacktestStats{}, errors.New(errors.ErrCodeResultWriteFailed, "no result to write")
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return types.BacktestStats{}, errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to create result folder %s", folder)
	}

	tradesPath := filepath.Join(folder, TradesFileName)

	trades := make([]TradeRecord, len(result.Trades))
	for i, trade := range result.Trades {
		trades[i] = NewTradeRecord(trade)
	}

	if err := parquet.WriteFile(tradesPath, trades); err != nil {
		return types.BacktestStats{}, errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", tradesPath)
	}

	equityPath := filepath.Join(folder, EquityFileName)

	equity := make([]EquityRecord, len(result.EquityCurve))
	for i, point := range result.EquityCurve {
		equity[i] = NewEquityRecord(point)
	}

	if err := parquet.WriteFile(equityPath, equity); err != nil {
		return types.BacktestStats{}, errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", equityPath)
	}

	stats := types.NewBacktestStats(result, w.now())
	stats.EngineVersion = version.GetVersion()
	stats.TradesFilePath = tradesPath
	stats.EquityFilePath = equityPath
	stats.DataPath = dataPath

	statsPath := filepath.Join(folder, StatsFileName)
	if err := types.WriteBacktestStats(statsPath, []types.BacktestStats{stats}); err != nil {
		return types.BacktestStats{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write stats", err)
	}

	w.log.Info("Backtest results written",
		zap.String("run_id", result.ID),
		zap.String("folder", folder),
		zap.Int("trades", len(trades)),
		zap.Int("equity_points", len(equity)),
	)

	return stats, nil
}

// ReadTrades reads a trades.parquet file.
func ReadTrades(path string) ([]TradeRecord, error) {
	records, err := parquet.ReadFile[TradeRecord](path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}

	return records, nil
}

// ReadEquity reads an equity.parquet file.
func ReadEquity(path string) ([]EquityRecord, error) {
	records, err := parquet.ReadFile[EquityRecord](path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}

	return records, nil
}

// ReadStats reads a stats.yaml file. Documents written by an incompatible engine version are rejected.
func ReadStats(path string) ([]types.BacktestStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}

	var stats []types.BacktestStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataIntegrity, err, "failed to parse %s", path)
	}

	for _, s := range stats {
		if err := version.CheckStatsCompatibility(version.GetVersion(), s.EngineVersion); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeVersionMismatch, err, "cannot read run %s from %s", s.ID, path)
		}
	}

	return stats, nil
}
