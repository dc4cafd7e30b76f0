// Package datasource loads an already-downloaded bar file for a backtest. It never fetches data.
package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type DataSource interface {
	// Initialize loads the bar file at path (parquet, or CSV for sources that support it)
	Initialize(path string) error
	// ReadAll yields the bars inside [start, end] in ascending time order
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)
	// Count returns the number of bars inside [start, end]
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// GetAllSymbols returns the distinct symbols of the loaded file
	GetAllSymbols() ([]string, error)
	// Close releases any resources
	Close() error
}

// Collect materializes the bars of symbol inside [start, end]. An empty symbol keeps every bar.
func Collect(ds DataSource, symbol string, start optional.Option[time.Time], end optional.Option[time.Time]) ([]types.Bar, error) {
	var bars []types.Bar

	for bar, err := range ds.ReadAll(start, end) {
		if err != nil {
			return nil, err
		}

		if symbol != "" && bar.Symbol != symbol {
			continue
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		if symbol != "" {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "no bars found for symbol %s", symbol)
		}

		return nil, errors.New(errors.ErrCodeDataNotFound, "no bars found")
	}

	return bars, nil
}

func inRange(t time.Time, start optional.Option[time.Time], end optional.Option[time.Time]) bool {
	if start.IsSome() && t.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && t.After(end.Unwrap()) {
		return false
	}

	return true
}
