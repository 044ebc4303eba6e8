// Package session provides the exchange trading-session clock.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

var (
	locationOnce sync.Once
	location     *time.Location
)

// exchangeLocation returns the MOEX local time zone.
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

// minuteOfDay is a wall-clock time within a day, minute resolution.
type minuteOfDay int

func parseHHMM(value string) (minuteOfDay, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid session bound %q, want HH:MM", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid hour in session bound %q", value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid minute in session bound %q", value)
	}

	return minuteOfDay(hour*60 + minute), nil
}

func (m minuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Clock answers whether a given instant falls inside the exchange trading
// session. Bounds are wall-clock times in exchange local time; the session
// runs on weekdays from open inclusive to close exclusive.
type Clock struct {
	open  minuteOfDay
	close minuteOfDay
	loc   *time.Location
}

// NewClock builds a Clock from "HH:MM" session bounds.
func NewClock(open, close string) (*Clock, error) {
	openMinute, err := parseHHMM(open)
	if err != nil {
		return nil, err
	}

	closeMinute, err := parseHHMM(close)
	if err != nil {
		return nil, err
	}

	if closeMinute <= openMinute {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"session close %s is not after open %s", closeMinute, openMinute)
	}

	return &Clock{
		open:  openMinute,
		close: closeMinute,
		loc:   exchangeLocation(),
	}, nil
}

// IsTradingTime reports whether t falls inside the trading session.
func (c *Clock) IsTradingTime(t time.Time) bool {
	local := t.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
	}

	minute := minuteOfDay(local.Hour()*60 + local.Minute())

	return minute >= c.open && minute < c.close
}

// TimeUntilClose returns the duration until today's session close in
// exchange local time. The result is negative after the close.
func (c *Clock) TimeUntilClose(t time.Time) time.Duration {
	local := t.In(c.loc)

	closeAt := time.Date(local.Year(), local.Month(), local.Day(),
		int(c.close)/60, int(c.close)%60, 0, 0, c.loc)

	return closeAt.Sub(local)
}

// Location returns the exchange local time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}
