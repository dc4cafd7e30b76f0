package datasource

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

var _ DataSource = (*InMemoryDataSource)(nil)

// InMemoryDataSource keeps the whole series in memory, sorted by time. It reads parquet
// files without DuckDB and is the source used by tests.
type InMemoryDataSource struct {
	bars []types.Bar
	mu   sync.RWMutex
}

// NewInMemoryDataSource creates a data source over a copy of bars.
func NewInMemoryDataSource(bars []types.Bar) *InMemoryDataSource {
	ds := &InMemoryDataSource{}
	ds.load(bars)

	return ds
}

// Initialize implements DataSource. Only parquet files are supported.
func (ds *InMemoryDataSource) Initialize(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return errors.Newf(errors.ErrCodeInvalidParameter, "in-memory data source cannot read csv file %s, use the duckdb data source", path)
	}

	bars, err := ReadParquet(path)
	if err != nil {
		return err
	}

	ds.load(bars)

	return nil
}

func (ds *InMemoryDataSource) load(bars []types.Bar) {
	sorted := append([]types.Bar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.bars = sorted
}

// ReadAll implements DataSource.
func (ds *InMemoryDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		ds.mu.RLock()
		bars := ds.bars
		ds.mu.RUnlock()

		for _, bar := range bars {
			if !inRange(bar.Time, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Count implements DataSource.
func (ds *InMemoryDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	count := 0

	for _, bar := range ds.bars {
		if inRange(bar.Time, start, end) {
			count++
		}
	}

	return count, nil
}

// GetAllSymbols implements DataSource.
func (ds *InMemoryDataSource) GetAllSymbols() ([]string, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	seen := make(map[string]struct{})

	var symbols []string

	for _, bar := range ds.bars {
		if _, ok := seen[bar.Symbol]; ok {
			continue
		}

		seen[bar.Symbol] = struct{}{}
		symbols = append(symbols, bar.Symbol)
	}

	sort.Strings(symbols)

	return symbols, nil
}

// Close implements DataSource.
func (ds *InMemoryDataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.bars = nil

	return nil
}
