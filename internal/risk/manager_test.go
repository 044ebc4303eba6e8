package risk

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

type RiskManagerTestSuite struct {
	suite.Suite

	manager *Manager
}

func TestRiskManagerSuite(t *testing.T) {
	suite.Run(t, new(RiskManagerTestSuite))
}

func (suite *RiskManagerTestSuite) SetupTest() {
	suite.manager = NewManager(Limits{
		MaxTradesPerDay:  5,
		DailyLossLimit:   3000,
		StopLossPctMax:   0.01,
		TakeProfitPctMin: 0.02,
		TakeProfitPctMax: 0.03,
		MinRiskReward:    1.5,
	})
}

func (suite *RiskManagerTestSuite) TestAllowNewTrade() {
	testCases := []struct {
		name    string
		stats   types.DayStats
		allowed bool
	}{
		{
			name:    "fresh day",
			stats:   types.DayStats{},
			allowed: true,
		},
		{
			name:    "under both limits",
			stats:   types.DayStats{TradesCount: 4, RealizedLoss: 2999},
			allowed: true,
		},
		{
			name:    "trade count at limit",
			stats:   types.DayStats{TradesCount: 5},
			allowed: false,
		},
		{
			name:    "loss at limit",
			stats:   types.DayStats{RealizedLoss: 3000},
			allowed: false,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Equal(tc.allowed, suite.manager.AllowNewTrade(tc.stats))
		})
	}
}

func (suite *RiskManagerTestSuite) TestAssignStopsForLong() {
	pos := types.Position{EntryPrice: 100, QtyShares: 10}
	suite.manager.AssignStopsForLong(&pos)

	sl, err := pos.StopLossPrice.Take()
	suite.Require().NoError(err)
	suite.InDelta(99.0, sl, 1e-9)

	// tp pct = max(0.02, 1.5*0.01) = 0.02
	tp, err := pos.TakeProfitPrice.Take()
	suite.Require().NoError(err)
	suite.InDelta(102.0, tp, 1e-9)

	suite.Less(sl, pos.EntryPrice)
	suite.Greater(tp, pos.EntryPrice)
}

func (suite *RiskManagerTestSuite) TestAssignStopsRespectsTakeProfitCap() {
	manager := NewManager(Limits{
		MaxTradesPerDay:  5,
		DailyLossLimit:   3000,
		StopLossPctMax:   0.02,
		TakeProfitPctMin: 0.01,
		TakeProfitPctMax: 0.025,
		MinRiskReward:    2.0,
	})

	pos := types.Position{EntryPrice: 200, QtyShares: 10}
	manager.AssignStopsForLong(&pos)

	// 2.0 * 0.02 = 0.04 is capped at 0.025
	tp, err := pos.TakeProfitPrice.Take()
	suite.Require().NoError(err)
	suite.InDelta(205.0, tp, 1e-9)
}

func (suite *RiskManagerTestSuite) TestCheckExitRulesForLong() {
	pos := types.Position{
		EntryPrice:      100,
		QtyShares:       10,
		StopLossPrice:   optional.Some(99.0),
		TakeProfitPrice: optional.Some(102.0),
	}

	testCases := []struct {
		name   string
		pos    types.Position
		last   optional.Option[float64]
		action ExitAction
		price  float64
	}{
		{
			name:   "between levels",
			pos:    pos,
			last:   optional.Some(100.5),
			action: ExitActionNone,
		},
		{
			name:   "stop hit exits at stop price",
			pos:    pos,
			last:   optional.Some(98.5),
			action: ExitActionStop,
			price:  99.0,
		},
		{
			name:   "take hit exits at take price",
			pos:    pos,
			last:   optional.Some(103.0),
			action: ExitActionTake,
			price:  102.0,
		},
		{
			name:   "missing quote is no action",
			pos:    pos,
			last:   optional.None[float64](),
			action: ExitActionNone,
		},
		{
			name:   "non-positive quote is no action",
			pos:    pos,
			last:   optional.Some(0.0),
			action: ExitActionNone,
		},
		{
			name:   "empty position is no action",
			pos:    types.Position{EntryPrice: 100},
			last:   optional.Some(50.0),
			action: ExitActionNone,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			decision := suite.manager.CheckExitRulesForLong(tc.pos, tc.last)
			suite.Equal(tc.action, decision.Action)

			if tc.action != ExitActionNone {
				price, err := decision.ExitPrice.Take()
				suite.Require().NoError(err)
				suite.InDelta(tc.price, price, 1e-9)
			}
		})
	}
}

func (suite *RiskManagerTestSuite) TestUpdateDayStatsOnClose() {
	stats := types.DayStats{}

	suite.manager.UpdateDayStatsOnClose(&stats, 100, 95, 10, 5)

	suite.Equal(1, stats.TradesCount)
	suite.InDelta(-55.0, stats.RealizedPnL, 1e-9)
	suite.InDelta(55.0, stats.RealizedLoss, 1e-9)

	// a winning close adds to pnl only
	suite.manager.UpdateDayStatsOnClose(&stats, 100, 103, 10, 5)

	suite.Equal(2, stats.TradesCount)
	suite.InDelta(-30.0, stats.RealizedPnL, 1e-9)
	suite.InDelta(55.0, stats.RealizedLoss, 1e-9)
}
