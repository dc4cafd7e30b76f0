package datasource

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// BarRecord is the on-disk parquet schema of a bar file.
type BarRecord struct {
	Time   int64   `parquet:"time,timestamp(microsecond)"` // Unix µs
	Symbol string  `parquet:"symbol"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

func (r BarRecord) Bar() types.Bar {
	return types.Bar{
		Time:   time.UnixMicro(r.Time).UTC(),
		Symbol: r.Symbol,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

func NewBarRecord(bar types.Bar) BarRecord {
	return BarRecord{
		Time:   bar.Time.UnixMicro(),
		Symbol: bar.Symbol,
		Open:   bar.Open,
		High:   bar.High,
		Low:    bar.Low,
		Close:  bar.Close,
		Volume: bar.Volume,
	}
}

// WriteParquet writes bars to path in the BarRecord schema, creating parent directories.
func WriteParquet(path string, bars []types.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to create directory for %s", path)
	}

	records := make([]BarRecord, len(bars))
	for i, bar := range bars {
		records[i] = NewBarRecord(bar)
	}

	if err := parquet.WriteFile(path, records); err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", path)
	}

	return nil
}

// ReadParquet reads a bar file written in the BarRecord schema.
func ReadParquet(path string) ([]types.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read %s", path)
	}

	bars := make([]types.Bar, len(records))
	for i, r := range records {
		bars[i] = r.Bar()
	}

	return bars, nil
}
