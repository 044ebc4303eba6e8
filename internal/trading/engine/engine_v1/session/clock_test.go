package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ClockTestSuite struct {
	suite.Suite

	clock *Clock
}

func TestClockSuite(t *testing.T) {
	suite.Run(t, new(ClockTestSuite))
}

func (suite *ClockTestSuite) SetupTest() {
	clock, err := NewClock("10:00", "18:45")
	suite.Require().NoError(err)

	suite.clock = clock
}

func (suite *ClockTestSuite) msk(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, suite.clock.Location())
}

func (suite *ClockTestSuite) TestNewClockRejectsBadBounds() {
	testCases := []struct {
		name  string
		open  string
		close string
	}{
		{name: "missing colon", open: "1000", close: "18:45"},
		{name: "hour out of range", open: "25:00", close: "18:45"},
		{name: "minute out of range", open: "10:61", close: "18:45"},
		{name: "close before open", open: "18:45", close: "10:00"},
		{name: "close equals open", open: "10:00", close: "10:00"},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			_, err := NewClock(tc.open, tc.close)

			suite.Error(err)
		})
	}
}

func (suite *ClockTestSuite) TestIsTradingTime() {
	// 2024-03-13 is a Wednesday
	testCases := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "mid session", t: suite.msk(2024, 3, 13, 12, 30), want: true},
		{name: "session open is inclusive", t: suite.msk(2024, 3, 13, 10, 0), want: true},
		{name: "session close is exclusive", t: suite.msk(2024, 3, 13, 18, 45), want: false},
		{name: "minute before close", t: suite.msk(2024, 3, 13, 18, 44), want: true},
		{name: "before open", t: suite.msk(2024, 3, 13, 9, 59), want: false},
		{name: "saturday", t: suite.msk(2024, 3, 16, 12, 0), want: false},
		{name: "sunday", t: suite.msk(2024, 3, 17, 12, 0), want: false},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Equal(tc.want, suite.clock.IsTradingTime(tc.t))
		})
	}
}

func (suite *ClockTestSuite) TestIsTradingTimeConvertsZones() {
	// 09:00 UTC is 12:00 MSK
	utc := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

	suite.True(suite.clock.IsTradingTime(utc))
}

func (suite *ClockTestSuite) TestTimeUntilClose() {
	suite.Equal(15*time.Minute, suite.clock.TimeUntilClose(suite.msk(2024, 3, 13, 18, 30)))
	suite.Negative(int64(suite.clock.TimeUntilClose(suite.msk(2024, 3, 13, 19, 0))))
}
