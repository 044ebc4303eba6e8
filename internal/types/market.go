package types

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
)

// Candle is a single OHLCV bar for a fixed interval. Time is the period
// close. A finalized candle is immutable.
type Candle struct {
	Time   time.Time `csv:"time"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// Range returns the high-low span of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open-close distance.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// IsBearish reports whether the candle closed below its open.
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// IndicatorSet holds the derived values attached to one candle.
// Values are NaN while the corresponding window has not filled yet;
// that is expected for the first bars of a series, not an error.
type IndicatorSet struct {
	SMA20      float64 `csv:"sma20"`
	EMA9       float64 `csv:"ema9"`
	RSI14      float64 `csv:"rsi14"`
	MACD       float64 `csv:"macd"`
	MACDSignal float64 `csv:"macd_signal"`
	MACDHist   float64 `csv:"macd_hist"`
	VolSMA20   float64 `csv:"vol_sma20"`
}

// EmptyIndicatorSet returns an IndicatorSet with every value undefined.
func EmptyIndicatorSet() IndicatorSet {
	nan := math.NaN()

	return IndicatorSet{
		SMA20:      nan,
		EMA9:       nan,
		RSI14:      nan,
		MACD:       nan,
		MACDSignal: nan,
		MACDHist:   nan,
		VolSMA20:   nan,
	}
}

// AnnotatedCandle pairs a candle with its indicator values.
type AnnotatedCandle struct {
	Candle     Candle
	Indicators IndicatorSet
}

// Quote is a top-of-book L1 snapshot for the instrument.
// Last, Bid and Ask are optional because the venue omits them outside
// the trading session.
type Quote struct {
	Time      time.Time
	Last      optional.Option[float64]
	Bid       optional.Option[float64]
	Ask       optional.Option[float64]
	DayVolume float64
	DayHigh   float64
	DayLow    float64
	OpenPrice float64
}

// SecurityInfo is the instrument metadata consumed from the venue.
type SecurityInfo struct {
	Ticker    string
	ShortName string
	LotSize   int64
}
