// Package indicator computes the technical indicators over a candle
// series. Every transform is a pure function over the full series: the
// output has one value per input point, with NaN while the corresponding
// window has not filled yet. NaN for early bars is expected and is not an
// error.
package indicator

import (
	"math"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Params configures the indicator windows attached to a candle series.
type Params struct {
	SMAWindow    int `yaml:"sma_window" validate:"gt=0"`
	EMASpan      int `yaml:"ema_span" validate:"gt=0"`
	RSIPeriod    int `yaml:"rsi_period" validate:"gt=0"`
	MACDFast     int `yaml:"macd_fast" validate:"gt=0"`
	MACDSlow     int `yaml:"macd_slow" validate:"gt=0"`
	MACDSignal   int `yaml:"macd_signal" validate:"gt=0"`
	VolSMAWindow int `yaml:"vol_sma_window" validate:"gt=0"`
}

// DefaultParams returns the standard 5-minute parameter set.
func DefaultParams() Params {
	return Params{
		SMAWindow:    20,
		EMASpan:      9,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		VolSMAWindow: 20,
	}
}

// SMA returns the simple moving average over a trailing window. The
// average is defined from the first point, using all available points
// while fewer than window exist.
func SMA(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}

		return out
	}

	sum := 0.0

	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}

		n := i + 1
		if n > window {
			n = window
		}

		out[i] = sum / float64(n)
	}

	return out
}

// EMA returns the exponential moving average with smoothing factor
// 2/(span+1), seeded by the first value. No look-ahead.
func EMA(series []float64, span int) []float64 {
	return smooth(series, 2.0/(float64(span)+1.0))
}

// smooth applies recursive exponential smoothing with factor alpha,
// seeded by the first value.
func smooth(series []float64, alpha float64) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}

	prev := series[0]
	out[0] = prev

	for i := 1; i < len(series); i++ {
		prev = alpha*series[i] + (1-alpha)*prev
		out[i] = prev
	}

	return out
}

// RSI returns the Relative Strength Index over closes. Average gain and
// loss use the same exponential smoothing as EMA with alpha = 1/period,
// seeded by the first delta. Values before period deltas have accumulated
// are NaN. RSI is 0 when the average gain is exactly zero and 100 when
// the average loss is exactly zero.
func RSI(close []float64, period int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}

	if period <= 0 || len(close) < 2 {
		return out
	}

	alpha := 1.0 / float64(period)

	var avgGain, avgLoss float64

	for i := 1; i < len(close); i++ {
		delta := close[i] - close[i-1]

		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}

		if i == 1 {
			avgGain = gain
			avgLoss = loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		// i deltas have been observed at index i
		if i < period {
			continue
		}

		switch {
		case avgGain == 0:
			out[i] = 0
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}

	return out
}

// MACD returns the MACD line, signal line and histogram for the close
// series: macd = EMA(fast) - EMA(slow), signal = EMA(macd, signalSpan),
// hist = macd - signal.
func MACD(close []float64, fast, slow, signalSpan int) (macd, signal, hist []float64) {
	emaFast := EMA(close, fast)
	emaSlow := EMA(close, slow)

	macd = make([]float64, len(close))
	for i := range close {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signal = EMA(macd, signalSpan)

	hist = make([]float64, len(close))
	for i := range close {
		hist[i] = macd[i] - signal[i]
	}

	return macd, signal, hist
}

// Attach annotates every candle with its indicator set. The volume SMA
// is computed over the candle volumes, independent of the price
// indicators.
func Attach(candles []types.Candle, params Params) []types.AnnotatedCandle {
	annotated := make([]types.AnnotatedCandle, len(candles))
	if len(candles) == 0 {
		return annotated
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))

	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	sma := SMA(closes, params.SMAWindow)
	ema := EMA(closes, params.EMASpan)
	rsi := RSI(closes, params.RSIPeriod)
	macd, macdSignal, macdHist := MACD(closes, params.MACDFast, params.MACDSlow, params.MACDSignal)
	volSMA := SMA(volumes, params.VolSMAWindow)

	for i, c := range candles {
		annotated[i] = types.AnnotatedCandle{
			Candle: c,
			Indicators: types.IndicatorSet{
				SMA20:      sma[i],
				EMA9:       ema[i],
				RSI14:      rsi[i],
				MACD:       macd[i],
				MACDSignal: macdSignal[i],
				MACDHist:   macdHist[i],
				VolSMA20:   volSMA[i],
			},
		}
	}

	return annotated
}
