// Package strategy scans indicator-annotated candle series for breakout,
// reversal-candle and MACD-divergence setups and emits typed signals.
package strategy

import (
	"math"
	"strings"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Params controls the breakout strategy thresholds.
type Params struct {
	// LookbackSwing is the trailing window for swing high/low levels.
	LookbackSwing int `yaml:"lookback_swing" validate:"required,gt=0"`
	// VolumeFilter requires volume above its moving average for breakouts.
	VolumeFilter bool `yaml:"volume_filter"`
	// RSIOversold is the RSI threshold below which reversal buys are considered.
	RSIOversold float64 `yaml:"rsi_oversold" validate:"gt=0,lt=100"`
	// RSIOverbought is the RSI threshold above which reversal sells are considered.
	RSIOverbought float64 `yaml:"rsi_overbought" validate:"gt=0,lt=100"`
	// MACDDivLookback is the trailing window for divergence detection.
	MACDDivLookback int `yaml:"macd_div_lookback" validate:"required,gt=0"`
	// EngulfBodyRatio is the minimum body share of the bar range for engulfing.
	EngulfBodyRatio float64 `yaml:"engulf_body_ratio" validate:"gt=0,lte=1"`
	// HammerTailRatio is the minimum lower-shadow share of the bar range for hammers.
	HammerTailRatio float64 `yaml:"hammer_tail_ratio" validate:"gt=0,lte=1"`
	// MinBarsForIndicators is the number of bars required before any signal.
	MinBarsForIndicators int `yaml:"min_bars_for_indicators" validate:"required,gt=0"`
}

// DefaultParams returns the stock GAZP intraday parameter set.
func DefaultParams() Params {
	return Params{
		LookbackSwing:        10,
		VolumeFilter:         true,
		RSIOversold:          30.0,
		RSIOverbought:        70.0,
		MACDDivLookback:      20,
		EngulfBodyRatio:      0.55,
		HammerTailRatio:      0.6,
		MinBarsForIndicators: 30,
	}
}

// Generator produces signals from an annotated candle series.
// It is pure given its inputs; no state survives across Generate calls.
type Generator struct {
	params Params
}

func NewGenerator(params Params) *Generator {
	return &Generator{params: params}
}

// swingLevels returns the rolling max(high)/min(low) over the trailing
// lookback window, shifted back one bar so the current bar cannot break
// its own level. Index 0 is NaN.
func (g *Generator) swingLevels(series []types.AnnotatedCandle) (highs, lows []float64) {
	n := len(series)
	highs = make([]float64, n)
	lows = make([]float64, n)

	for i := 0; i < n; i++ {
		if i == 0 {
			highs[i] = math.NaN()
			lows[i] = math.NaN()
			continue
		}

		start := i - g.params.LookbackSwing
		if start < 0 {
			start = 0
		}

		hi := math.Inf(-1)
		lo := math.Inf(1)
		for j := start; j < i; j++ {
			if series[j].Candle.High > hi {
				hi = series[j].Candle.High
			}
			if series[j].Candle.Low < lo {
				lo = series[j].Candle.Low
			}
		}

		highs[i] = hi
		lows[i] = lo
	}

	return highs, lows
}

// isBullishEngulfing reports whether curr engulfs a bearish prev bar with a
// body of at least minBodyRatio of the bar range.
func isBullishEngulfing(prev, curr types.Candle, minBodyRatio float64) bool {
	if !prev.IsBearish() {
		return false
	}

	fullRange := math.Max(1e-9, curr.Range())
	if curr.Body()/fullRange < minBodyRatio {
		return false
	}

	engulfs := curr.Open <= prev.Close && curr.Close >= prev.Open

	return engulfs && curr.Close > curr.Open
}

// isHammer reports whether curr has a long lower shadow, a small upper
// shadow and a close near the high.
func isHammer(curr types.Candle, minTailRatio float64) bool {
	rng := math.Max(1e-9, curr.Range())
	lowerTail := (math.Min(curr.Open, curr.Close) - curr.Low) / rng
	upperTail := (curr.High - math.Max(curr.Open, curr.Close)) / rng
	closeNearHigh := (curr.High-curr.Close)/rng <= 0.2

	return lowerTail >= minTailRatio && upperTail <= 0.3 && closeNearHigh
}

// halfWindowExtremes locates the indexes of the extreme close in each half of
// series[start:idx+1]. When min is true the extremes are minima, otherwise
// maxima. Returns ok=false when the window is too small to split.
func halfWindowExtremes(series []types.AnnotatedCandle, start, idx int, min bool) (left, right int, ok bool) {
	n := idx - start + 1
	if n < 5 {
		return 0, 0, false
	}

	mid := start + n/2

	pick := func(from, to int) int {
		best := from
		for j := from + 1; j < to; j++ {
			c := series[j].Candle.Close
			b := series[best].Candle.Close
			if (min && c < b) || (!min && c > b) {
				best = j
			}
		}
		return best
	}

	return pick(start, mid), pick(mid, idx+1), true
}

// hasPositiveDivergence reports whether price makes a lower low across the
// trailing window while the MACD histogram makes a higher low.
func (g *Generator) hasPositiveDivergence(series []types.AnnotatedCandle, idx int) bool {
	if idx < 5 {
		return false
	}

	start := idx - g.params.MACDDivLookback
	if start < 0 {
		start = 0
	}

	left, right, ok := halfWindowExtremes(series, start, idx, true)
	if !ok {
		return false
	}

	priceDiv := series[right].Candle.Close < series[left].Candle.Close
	macdDiv := series[right].Indicators.MACDHist > series[left].Indicators.MACDHist

	return priceDiv && macdDiv
}

// hasNegativeDivergence reports whether price makes a higher high across the
// trailing window while the MACD histogram makes a lower high.
func (g *Generator) hasNegativeDivergence(series []types.AnnotatedCandle, idx int) bool {
	if idx < 5 {
		return false
	}

	start := idx - g.params.MACDDivLookback
	if start < 0 {
		start = 0
	}

	left, right, ok := halfWindowExtremes(series, start, idx, false)
	if !ok {
		return false
	}

	priceDiv := series[right].Candle.Close > series[left].Candle.Close
	macdDiv := series[right].Indicators.MACDHist < series[left].Indicators.MACDHist

	return priceDiv && macdDiv
}

// Generate walks the series in chronological order and returns at most one
// signal per bar. Entry rules take priority over exit rules on the same bar,
// and every entry rule that fired is listed in the signal reason.
func (g *Generator) Generate(series []types.AnnotatedCandle) []types.Signal {
	p := g.params

	signals := make([]types.Signal, 0)
	if len(series) < p.MinBarsForIndicators {
		return signals
	}

	swingHighs, swingLows := g.swingLevels(series)

	for i := p.MinBarsForIndicators - 1; i < len(series); i++ {
		curr := series[i].Candle
		prev := series[i-1].Candle
		ind := series[i].Indicators

		volOK := true
		if p.VolumeFilter && !math.IsNaN(ind.VolSMA20) {
			volOK = curr.Volume > ind.VolSMA20
		}

		breakoutBuy := !math.IsNaN(swingHighs[i]) && curr.High > swingHighs[i] && volOK

		reversalBuy := !math.IsNaN(ind.RSI14) && ind.RSI14 < p.RSIOversold &&
			(isBullishEngulfing(prev, curr, p.EngulfBodyRatio) || isHammer(curr, p.HammerTailRatio))

		posDiv := g.hasPositiveDivergence(series, i)

		if breakoutBuy || reversalBuy || posDiv {
			reasons := make([]string, 0, 3)
			if breakoutBuy {
				reasons = append(reasons, "resistance breakout + volume")
			}
			if reversalBuy {
				reasons = append(reasons, "RSI oversold + reversal candle")
			}
			if posDiv {
				reasons = append(reasons, "positive MACD divergence")
			}

			signals = append(signals, types.Signal{
				Time:   curr.Time,
				Type:   types.SignalTypeBuy,
				Price:  curr.Close,
				Reason: strings.Join(reasons, "; "),
			})

			// entry takes priority over exit on the same bar
			continue
		}

		rsiSell := !math.IsNaN(ind.RSI14) && ind.RSI14 > p.RSIOverbought
		if rsiSell && g.hasNegativeDivergence(series, i) {
			signals = append(signals, types.Signal{
				Time:   curr.Time,
				Type:   types.SignalTypeSell,
				Price:  curr.Close,
				Reason: "RSI overbought + negative MACD divergence",
			})
			continue
		}

		if !math.IsNaN(swingLows[i]) && curr.Low < swingLows[i] && volOK {
			signals = append(signals, types.Signal{
				Time:   curr.Time,
				Type:   types.SignalTypeCloseLong,
				Price:  curr.Close,
				Reason: "support breakdown + volume",
			})
		}
	}

	return signals
}
