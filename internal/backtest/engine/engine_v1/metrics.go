package engine

import (
	"math"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// SharpeRatio computes mean/stddev over per-trade returns, with the sample
// standard deviation (ddof=1) and no annualization. Returns 0 with fewer
// than two trades or zero deviation.
func SharpeRatio(returns []float64) float64 {
	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}

	if len(clean) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range clean {
		mean += r
	}
	mean /= float64(len(clean))

	variance := 0.0
	for _, r := range clean {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(clean) - 1)

	std := math.Sqrt(variance)
	if std <= 0 || math.IsNaN(std) {
		return 0
	}

	return mean / std
}

// MaxDrawdown returns the largest peak-to-trough drop of the equity curve,
// in the curve's own units.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	runningMax := math.Inf(-1)
	maxDD := 0.0

	for _, e := range equity {
		if e > runningMax {
			runningMax = e
		}
		if dd := runningMax - e; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// WinRate returns the fraction of trades with positive PnL.
func WinRate(trades []types.ClosedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}

	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(trades))
}

// equityFromTrades builds the cumulative-PnL curve by walking trades in
// exit order.
func equityFromTrades(trades []types.ClosedTrade) []float64 {
	equity := make([]float64, len(trades))

	cum := 0.0
	for i, t := range trades {
		cum += t.PnL
		equity[i] = cum
	}

	return equity
}
