package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/iskra-lab/iskra-trading/internal/logger"
)

type TrackerTestSuite struct {
	suite.Suite

	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

func (suite *TrackerTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.tracker = NewTracker(log)
}

func (suite *TrackerTestSuite) TestCountersAccumulate() {
	suite.tracker.RecordIteration()
	suite.tracker.RecordIteration()
	suite.tracker.RecordSignal()
	suite.tracker.RecordTrade()
	suite.tracker.RecordError()

	snapshot := suite.tracker.Snapshot()

	suite.Equal(2, snapshot.Iterations)
	suite.Equal(1, snapshot.SignalsProcessed)
	suite.Equal(1, snapshot.TradesExecuted)
	suite.Equal(1, snapshot.Errors)
}

func (suite *TrackerTestSuite) TestPnLAccumulatesExactly() {
	// 0.1+0.2 style float drift must not show up in the running total
	for i := 0; i < 10; i++ {
		suite.tracker.AddPnL(0.1)
	}
	suite.tracker.AddPnL(-0.5)

	suite.InDelta(0.5, suite.tracker.Snapshot().TotalPnL, 1e-12)
}

func (suite *TrackerTestSuite) TestLastUpdateAdvances() {
	base := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)
	current := base
	suite.tracker.now = func() time.Time { return current }

	suite.tracker.RecordIteration()
	first := suite.tracker.Snapshot().LastUpdate

	current = base.Add(time.Minute)
	suite.tracker.RecordSignal()

	suite.Equal(base, first)
	suite.Equal(base.Add(time.Minute), suite.tracker.Snapshot().LastUpdate)
}

func (suite *TrackerTestSuite) TestSnapshotIsACopy() {
	suite.tracker.RecordIteration()

	snapshot := suite.tracker.Snapshot()
	snapshot.Iterations = 99

	suite.Equal(1, suite.tracker.Snapshot().Iterations)
}
