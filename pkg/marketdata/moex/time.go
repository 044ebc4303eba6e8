package moex

import (
	"sort"
	"sync"
	"time"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

var (
	locationOnce sync.Once
	location     *time.Location
)

// exchangeLocation returns the exchange time zone. ISS timestamps carry no
// offset and are always Moscow local time.
func exchangeLocation() *time.Location {
	locationOnce.Do(func() {
		loc, err := time.LoadLocation("Europe/Moscow")
		if err != nil {
			loc = time.FixedZone("MSK", 3*60*60)
		}
		location = loc
	})

	return location
}

func sortCandles(candles []types.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
}
