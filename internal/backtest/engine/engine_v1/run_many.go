package engine

import (
	"context"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one independent run of RunMany.
type Job struct {
	Config    BacktestEngineV1Config
	Bars      []types.Bar
	Strategy  strategy.Named
	Callbacks engine.LifecycleCallbacks
}

// Outcome is the result of one Job. Result is set on success and on cancellation.
type Outcome struct {
	Result *types.BacktestResult
	Err    error
}

// RunMany runs every job on its own engine, at most parallelism at a time (unbounded when
// parallelism <= 0). Outcomes are returned in job order. A failing job does not stop the others.
func RunMany(ctx context.Context, jobs []Job, parallelism int, log *logger.Logger) []Outcome {
	if log == nil {
		log = logger.NewNopLogger()
	}

	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, job := range jobs {
		g.Go(func() error {
			e, err := NewBacktestEngineV1(job.Config, log)
			if err != nil {
				outcomes[i] = Outcome{Err: err}

				return nil
			}

			result, err := e.Run(gctx, job.Bars, job.Strategy, job.Callbacks)
			outcomes[i] = Outcome{Result: result, Err: err}

			if err != nil {
				log.Warn("Backtest job failed", zap.Int("job", i), zap.Error(err))
			}

			return nil
		})
	}

	// jobs never return an error to the group
	_ = g.Wait()

	return outcomes
}
