package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v2"

	backtestengine "github.com/iskra-lab/iskra-trading/internal/backtest/engine"
	"github.com/iskra-lab/iskra-trading/internal/types"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

type BacktestEngineV1TestSuite struct {
	suite.Suite

	engine backtestengine.Engine
}

func TestBacktestEngineV1Suite(t *testing.T) {
	suite.Run(t, new(BacktestEngineV1TestSuite))
}

func (suite *BacktestEngineV1TestSuite) SetupTest() {
	suite.engine = NewBacktestEngineV1()
}

func defaultConfigYAML(t *testing.T) string {
	t.Helper()

	config := DefaultConfig()

	data, err := yaml.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}

	return string(data)
}

func flatBar(t time.Time, price, volume float64) types.Candle {
	return types.Candle{
		Time:   t,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: volume,
	}
}

// breakoutSeries builds 40 bars of a flat market, a volume-backed breakout
// above the prior range, a quiet plateau and a volume-backed breakdown
// through support. The run should open exactly one long and close it at a
// loss.
func breakoutSeries() []types.Candle {
	start := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	bar := func(i int) time.Time { return start.Add(time.Duration(i) * 5 * time.Minute) }

	candles := make([]types.Candle, 0, 40)

	for i := 0; i < 30; i++ {
		candles = append(candles, flatBar(bar(i), 100, 1000))
	}

	// breakout above the 100 range on heavy volume
	candles = append(candles, types.Candle{
		Time: bar(30), Open: 100, High: 105, Low: 100, Close: 104, Volume: 5000,
	})

	for i := 31; i < 37; i++ {
		candles = append(candles, flatBar(bar(i), 104, 500))
	}

	// breakdown through the 100 support on heavy volume
	candles = append(candles, types.Candle{
		Time: bar(37), Open: 104, High: 104, Low: 95, Close: 95.5, Volume: 5000,
	})

	candles = append(candles, flatBar(bar(38), 95.5, 500))
	candles = append(candles, flatBar(bar(39), 95.5, 500))

	return candles
}

func (suite *BacktestEngineV1TestSuite) TestInitializeRejectsMalformedYAML() {
	err := suite.engine.Initialize("ticker: [")

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestEngineV1TestSuite) TestInitializeRejectsInvalidConfig() {
	config := DefaultConfig()
	config.LotSize = 0

	data, err := yaml.Marshal(config)
	suite.Require().NoError(err)

	err = suite.engine.Initialize(string(data))

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestEngineV1TestSuite) TestSetCandlesRejectsEmptySeries() {
	err := suite.engine.SetCandles(nil)

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}

func (suite *BacktestEngineV1TestSuite) TestRunRequiresInitialize() {
	suite.Require().NoError(suite.engine.SetCandles(breakoutSeries()))

	err := suite.engine.Run(context.Background(), backtestengine.LifecycleCallbacks{})

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestInitFailed))
}

func (suite *BacktestEngineV1TestSuite) TestResultBeforeRunFails() {
	_, err := suite.engine.Result()

	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestRunFailed))
}

func (suite *BacktestEngineV1TestSuite) TestGetConfigSchema() {
	suite.Require().NoError(suite.engine.Initialize(defaultConfigYAML(suite.T())))

	schema, err := suite.engine.GetConfigSchema()

	suite.Require().NoError(err)
	suite.Contains(schema, "backtest-engine-v1-config")
	suite.Contains(schema, "commission_pct")
	suite.Contains(schema, "lot_size")
}

func (suite *BacktestEngineV1TestSuite) TestRunBreakoutRoundTrip() {
	suite.Require().NoError(suite.engine.Initialize(defaultConfigYAML(suite.T())))
	suite.Require().NoError(suite.engine.SetCandles(breakoutSeries()))

	suite.Require().NoError(suite.engine.Run(context.Background(), backtestengine.LifecycleCallbacks{}))

	result, err := suite.engine.Result()
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]

	// entry fills at the bar high (ask clamped), plus slippage
	suite.InDelta(105*1.0005, trade.EntryPrice, 1e-9)
	// exit fills at the bar low (bid clamped), minus slippage
	suite.InDelta(95*0.9995, trade.ExitPrice, 1e-9)
	// 100000 / 105.0525 = 951 shares, rounded down to 95 full lots
	suite.Equal(int64(950), trade.QtyShares)
	suite.Equal("resistance breakout + volume", trade.EntryReason)
	suite.Equal("support breakdown + volume", trade.ExitReason)

	priceDelta := (95*0.9995 - 105*1.0005) * 950
	suite.InDelta(priceDelta-trade.Commission, trade.PnL, 1e-6)
	suite.Less(trade.PnL, 0.0)
	suite.InDelta((95*0.9995-105*1.0005)/(105*1.0005), trade.PnLPct, 1e-9)

	stats := result.Stats
	suite.Equal(1, stats.TradesCount)
	suite.Equal("GAZP", stats.Ticker)
	suite.InDelta(trade.PnL, stats.RealizedPnL, 1e-6)
	suite.InDelta(0.0, stats.WinRate, 1e-9)
	// a single trade has no return deviation to measure
	suite.InDelta(0.0, stats.Sharpe, 1e-9)
	suite.InDelta(-trade.PnL, stats.MaxDrawdown, 1e-6)
	suite.InDelta(trade.Commission, stats.TotalCommission, 1e-6)
	suite.NotEmpty(stats.ID)
}

func (suite *BacktestEngineV1TestSuite) TestRunInvokesCallbacks() {
	suite.Require().NoError(suite.engine.Initialize(defaultConfigYAML(suite.T())))
	suite.Require().NoError(suite.engine.SetCandles(breakoutSeries()))

	var (
		startedRunID string
		startedBars  int
		processed    int
		lastCurrent  int
		endedRunID   string
		endedFolder  string
	)

	onStart := backtestengine.OnRunStartCallback(func(runID string, totalBars int) error {
		startedRunID = runID
		startedBars = totalBars
		return nil
	})
	onProcess := backtestengine.OnProcessDataCallback(func(current, total int) error {
		processed++
		lastCurrent = current
		suite.Equal(40, total)
		return nil
	})
	onEnd := backtestengine.OnRunEndCallback(func(runID, resultFolderPath string) {
		endedRunID = runID
		endedFolder = resultFolderPath
	})

	err := suite.engine.Run(context.Background(), backtestengine.LifecycleCallbacks{
		OnRunStart:    &onStart,
		OnProcessData: &onProcess,
		OnRunEnd:      &onEnd,
	})
	suite.Require().NoError(err)

	suite.NotEmpty(startedRunID)
	suite.Equal(40, startedBars)
	suite.Equal(40, processed)
	suite.Equal(40, lastCurrent)
	suite.Equal(startedRunID, endedRunID)
	suite.Empty(endedFolder)
}

func (suite *BacktestEngineV1TestSuite) TestRunWritesResultArtifacts() {
	folder := suite.T().TempDir()

	suite.Require().NoError(suite.engine.Initialize(defaultConfigYAML(suite.T())))
	suite.Require().NoError(suite.engine.SetCandles(breakoutSeries()))
	suite.Require().NoError(suite.engine.SetResultsFolder(folder))

	var endedFolder string

	onEnd := backtestengine.OnRunEndCallback(func(_, resultFolderPath string) {
		endedFolder = resultFolderPath
	})

	err := suite.engine.Run(context.Background(), backtestengine.LifecycleCallbacks{OnRunEnd: &onEnd})
	suite.Require().NoError(err)

	result, err := suite.engine.Result()
	suite.Require().NoError(err)

	suite.Require().NotEmpty(endedFolder)
	suite.True(strings.HasPrefix(endedFolder, folder))

	tradesData, err := os.ReadFile(filepath.Join(endedFolder, "trades.csv"))
	suite.Require().NoError(err)
	suite.Contains(string(tradesData), "entry_time,exit_time,entry_price")
	suite.Contains(string(tradesData), "resistance breakout + volume")

	statsData, err := os.ReadFile(filepath.Join(endedFolder, "stats.yaml"))
	suite.Require().NoError(err)
	suite.Contains(string(statsData), "ticker: GAZP")
	suite.Contains(string(statsData), "trades_count: 1")

	suite.Equal(filepath.Join(endedFolder, "trades.csv"), result.Stats.TradesFilePath)
}

func (suite *BacktestEngineV1TestSuite) TestRunStopsOnCancelledContext() {
	suite.Require().NoError(suite.engine.Initialize(defaultConfigYAML(suite.T())))
	suite.Require().NoError(suite.engine.SetCandles(breakoutSeries()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := suite.engine.Run(ctx, backtestengine.LifecycleCallbacks{})

	suite.ErrorIs(err, context.Canceled)

	_, err = suite.engine.Result()
	suite.Error(err)
}

func (suite *BacktestEngineV1TestSuite) TestBidAskFromBar() {
	testCases := []struct {
		name    string
		candle  types.Candle
		wantBid float64
		wantAsk float64
	}{
		{
			name:    "wide bar keeps quarter-range offsets",
			candle:  types.Candle{Open: 100, High: 104, Low: 96, Close: 100},
			wantBid: 98,
			wantAsk: 102,
		},
		{
			name:    "close at high clamps ask to high",
			candle:  types.Candle{Open: 100, High: 104, Low: 96, Close: 104},
			wantBid: 102,
			wantAsk: 104,
		},
		{
			name:    "close at low clamps bid to low",
			candle:  types.Candle{Open: 100, High: 104, Low: 96, Close: 96},
			wantBid: 96,
			wantAsk: 98,
		},
		{
			name:    "zero-range bar degenerates to close",
			candle:  types.Candle{Open: 100, High: 100, Low: 100, Close: 100},
			wantBid: 100,
			wantAsk: 100,
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			bid, ask := bidAskFromBar(tc.candle)

			suite.InDelta(tc.wantBid, bid, 1e-9)
			suite.InDelta(tc.wantAsk, ask, 1e-9)
		})
	}
}
