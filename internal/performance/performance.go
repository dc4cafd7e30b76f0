// Package performance derives the standard statistics of a finished run from its
// equity curve and trade log.
package performance

import (
	"fmt"
	"math"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const year = 365 * 24 * time.Hour

type Input struct {
	EquityCurve    []types.EquityPoint
	Trades         []types.Trade
	InitialCapital float64
	// BarDuration is the spacing of the series, used when PeriodsPerYear is zero
	BarDuration    time.Duration
	RiskFreeRate   float64
	PeriodsPerYear float64
	// UnrealizedPnL of a position left open at the end of the run
	UnrealizedPnL float64
	// RunningMax is the peak-to-date equity of every curve point. It is derived from the
	// curve when its length does not match.
	RunningMax []float64
}

// Analyze computes the metrics of a run. Undefined quantities are reported as 0 together
// with a MetricUndefined diagnostic.
func Analyze(in Input) (types.Metrics, []types.Diagnostic) {
	var diagnostics []types.Diagnostic

	undefined := func(t time.Time, format string, args ...any) {
		diagnostics = append(diagnostics, types.NewDiagnostic(errors.ErrCodeMetricUndefined, t, fmt.Sprintf(format, args...)))
	}

	metrics := types.Metrics{UnrealizedPnL: in.UnrealizedPnL}

	var lastTime time.Time

	finalEquity := in.InitialCapital
	if n := len(in.EquityCurve); n > 0 {
		finalEquity = in.EquityCurve[n-1].TotalEquity
		lastTime = in.EquityCurve[n-1].Time
	}

	if in.InitialCapital > 0 {
		metrics.TotalReturn = finalEquity/in.InitialCapital - 1
	} else {
		undefined(lastTime, "total return undefined: initial capital %v is not positive", in.InitialCapital)
	}

	runningMax := in.RunningMax
	if len(runningMax) != len(in.EquityCurve) {
		runningMax = RunningMax(in.EquityCurve)
	}

	metrics.MaxDrawdown = DrawdownFromPeaks(in.EquityCurve, runningMax)

	returns, undefinedSteps := PeriodicReturns(in.EquityCurve)
	if len(undefinedSteps) > 0 {
		undefined(undefinedSteps[0], "%d periodic returns undefined: previous equity is zero", len(undefinedSteps))
	}

	ppy := in.PeriodsPerYear
	if ppy == 0 {
		ppy = PeriodsPerYear(in.BarDuration)
	}

	switch {
	case len(returns) < 2:
		undefined(lastTime, "volatility undefined: %d periodic returns", len(returns))
	case ppy == 0:
		undefined(lastTime, "annualization undefined: periods per year cannot be inferred")
	default:
		metrics.AnnualizedReturn = mean(returns) * ppy
		metrics.Volatility = SampleStdev(returns) * math.Sqrt(ppy)

		if metrics.Volatility == 0 {
			undefined(lastTime, "sharpe ratio undefined: volatility is zero")
		} else {
			metrics.SharpeRatio = (metrics.AnnualizedReturn - in.RiskFreeRate) / metrics.Volatility
		}
	}

	analyzeTrades(&metrics, in.Trades)

	return metrics, diagnostics
}

// PeriodsPerYear converts a bar spacing into an annualization factor.
func PeriodsPerYear(barDuration time.Duration) float64 {
	if barDuration <= 0 {
		return 0
	}

	return float64(year) / float64(barDuration)
}

// MaxDrawdown is the largest decline from the running peak as a fraction of that peak.
// Curves with fewer than two points have no drawdown.
func MaxDrawdown(curve []types.EquityPoint) float64 {
	return DrawdownFromPeaks(curve, RunningMax(curve))
}

// RunningMax returns the peak-to-date equity for every point of curve.
func RunningMax(curve []types.EquityPoint) []float64 {
	running := make([]float64, len(curve))

	for i, p := range curve {
		if i == 0 || p.TotalEquity > running[i-1] {
			running[i] = p.TotalEquity
		} else {
			running[i] = running[i-1]
		}
	}

	return running
}

// DrawdownFromPeaks is MaxDrawdown given the running max of the curve. Points whose peak is
// not positive are skipped.
func DrawdownFromPeaks(curve []types.EquityPoint, runningMax []float64) float64 {
	if len(curve) < 2 {
		return 0
	}

	maxDrawdown := 0.0

	for i, p := range curve {
		peak := runningMax[i]
		if peak <= 0 {
			continue
		}

		drawdown := (peak - p.TotalEquity) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return math.Min(maxDrawdown, 1)
}

// PeriodicReturns are the simple returns between consecutive points. A step whose previous
// equity is zero contributes a zero return and its time is listed in undefined.
func PeriodicReturns(curve []types.EquityPoint) (returns []float64, undefined []time.Time) {
	if len(curve) < 2 {
		return nil, nil
	}

	returns = make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev == 0 {
			undefined = append(undefined, curve[i].Time)
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, curve[i].TotalEquity/prev-1)
	}

	return returns, undefined
}

// SampleStdev is the standard deviation with n-1 degrees of freedom.
func SampleStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)
	sum := 0.0

	for _, v := range values {
		sum += (v - m) * (v - m)
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func analyzeTrades(metrics *types.Metrics, trades []types.Trade) {
	metrics.TradeCount = len(trades)

	var (
		holding     time.Duration
		grossProfit float64
		grossLoss   float64
	)

	for _, trade := range trades {
		metrics.TotalFees += trade.CommissionPaid

		if !trade.IsClosed() {
			continue
		}

		pnl := trade.PnL()
		period := trade.HoldingPeriod()

		if metrics.ClosedTradeCount == 0 {
			metrics.MaximumProfit = pnl
			metrics.MaximumLoss = pnl
			metrics.MinHoldingPeriod = period
			metrics.MaxHoldingPeriod = period
		}

		metrics.ClosedTradeCount++
		metrics.RealizedPnL += pnl
		metrics.MaximumProfit = math.Max(metrics.MaximumProfit, pnl)
		metrics.MaximumLoss = math.Min(metrics.MaximumLoss, pnl)

		if period < metrics.MinHoldingPeriod {
			metrics.MinHoldingPeriod = period
		}

		if period > metrics.MaxHoldingPeriod {
			metrics.MaxHoldingPeriod = period
		}

		holding += period

		switch {
		case pnl > 0:
			metrics.WinningTrades++
			grossProfit += pnl
		case pnl < 0:
			metrics.LosingTrades++
			grossLoss -= pnl
		}
	}

	if metrics.ClosedTradeCount == 0 {
		return
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.ClosedTradeCount)
	metrics.AvgHoldingPeriod = holding / time.Duration(metrics.ClosedTradeCount)

	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}
}
