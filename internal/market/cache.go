// Package market maintains the in-memory candle series for the live engine:
// it folds polled L1 quotes into the current fixed-interval candle and keeps
// a bounded history of finalized bars.
package market

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// building is the candle under construction for the current interval bucket.
type building struct {
	bucketStart time.Time
	open        float64
	high        float64
	low         float64
	closePx     float64
	volume      float64
}

// CandleCache builds candles from quote snapshots. Per-candle volume is
// derived from the venue's cumulative day volume, so a cache survives gaps
// in polling without double counting.
type CandleCache struct {
	interval time.Duration
	maxBars  int

	candles       []types.Candle
	current       *building
	lastDayVolume optional.Option[float64]
}

// NewCandleCache creates a cache for the given candle interval keeping at
// most maxBars finalized candles.
func NewCandleCache(interval time.Duration, maxBars int) *CandleCache {
	return &CandleCache{
		interval: interval,
		maxBars:  maxBars,
		candles:  make([]types.Candle, 0, maxBars),
	}
}

// Seed preloads finalized candles, typically from a historical fetch at
// startup. Existing contents are replaced.
func (c *CandleCache) Seed(candles []types.Candle) {
	c.candles = append(c.candles[:0], candles...)
	c.trim()
}

// Update folds a quote into the current candle. A quote without a last
// price is ignored. Returns true when the quote started a new bucket and
// the previous candle was finalized.
func (c *CandleCache) Update(quote types.Quote) bool {
	last, err := quote.Last.Take()
	if err != nil || last <= 0 {
		return false
	}

	volumeDelta := 0.0
	if prev, err := c.lastDayVolume.Take(); err == nil {
		if d := quote.DayVolume - prev; d > 0 {
			volumeDelta = d
		}
	}
	c.lastDayVolume = optional.Some(quote.DayVolume)

	bucket := quote.Time.Truncate(c.interval)

	finalized := false

	if c.current != nil && !c.current.bucketStart.Equal(bucket) {
		c.finalizeCurrent()

		finalized = true
	}

	if c.current == nil {
		c.current = &building{
			bucketStart: bucket,
			open:        last,
			high:        last,
			low:         last,
			closePx:     last,
			volume:      volumeDelta,
		}

		return finalized
	}

	if last > c.current.high {
		c.current.high = last
	}
	if last < c.current.low {
		c.current.low = last
	}
	c.current.closePx = last
	c.current.volume += volumeDelta

	return finalized
}

// FinalizeCurrent closes the candle under construction, if any. Used at
// session end so the last partial bar is not lost.
func (c *CandleCache) FinalizeCurrent() {
	if c.current != nil {
		c.finalizeCurrent()
	}
}

func (c *CandleCache) finalizeCurrent() {
	b := c.current

	c.candles = append(c.candles, types.Candle{
		// candle timestamp is the period close
		Time:   b.bucketStart.Add(c.interval),
		Open:   b.open,
		High:   b.high,
		Low:    b.low,
		Close:  b.closePx,
		Volume: b.volume,
	})
	c.current = nil

	c.trim()
}

func (c *CandleCache) trim() {
	if c.maxBars > 0 && len(c.candles) > c.maxBars {
		c.candles = append(c.candles[:0:0], c.candles[len(c.candles)-c.maxBars:]...)
	}
}

// Candles returns a copy of the finalized series in chronological order.
func (c *CandleCache) Candles() []types.Candle {
	out := make([]types.Candle, len(c.candles))
	copy(out, c.candles)

	return out
}

// Len returns the number of finalized candles.
func (c *CandleCache) Len() int {
	return len(c.candles)
}
