package engine

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	backtestengine "github.com/iskra-lab/iskra-trading/internal/backtest/engine"
	"github.com/iskra-lab/iskra-trading/internal/execution"
	"github.com/iskra-lab/iskra-trading/internal/indicator"
	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/internal/risk"
	"github.com/iskra-lab/iskra-trading/internal/strategy"
	"github.com/iskra-lab/iskra-trading/internal/types"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// BacktestEngineV1 replays a historical candle series through the
// indicator, signal, risk and execution pipeline, holding at most one open
// position at a time.
type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	log           *logger.Logger
	candles       []types.Candle
	resultsFolder string

	generator   *strategy.Generator
	riskManager *risk.Manager
	simulator   *execution.Simulator

	result optional.Option[backtestengine.Result]
}

func NewBacktestEngineV1() backtestengine.Engine {
	return &BacktestEngineV1{}
}

var _ backtestengine.Engine = (*BacktestEngineV1)(nil)

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse backtest config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	b.log.Debug("backtest engine initialized",
		zap.String("ticker", b.config.Ticker),
		zap.Int64("lot_size", b.config.LotSize),
	)

	b.generator = strategy.NewGenerator(b.config.Strategy)
	b.riskManager = risk.NewManager(b.config.Risk)
	b.simulator = execution.NewSimulator()

	return nil
}

// SetCandles implements engine.Engine.
func (b *BacktestEngineV1) SetCandles(candles []types.Candle) error {
	if len(candles) == 0 {
		return errors.New(errors.ErrCodeNoDataFound, "candle series is empty")
	}

	b.candles = candles

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// bidAskFromBar approximates the top of book from OHLC. Historical L1 is
// not available, so bid sits a quarter range under the close and ask a
// quarter range above, clamped into the bar.
func bidAskFromBar(c types.Candle) (bid, ask float64) {
	rng := math.Max(1e-9, c.Range())

	bid = c.Close - 0.25*rng
	if bid < c.Low {
		bid = c.Low
	}
	if bid > c.Close {
		bid = c.Close
	}

	ask = c.Close + 0.25*rng
	if ask > c.High {
		ask = c.High
	}
	if ask < c.Close {
		ask = c.Close
	}

	return bid, ask
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks backtestengine.LifecycleCallbacks) error {
	if b.generator == nil {
		return errors.New(errors.ErrCodeBacktestInitFailed, "engine is not initialized")
	}

	if len(b.candles) == 0 {
		return errors.New(errors.ErrCodeBacktestRunFailed, "no candles set")
	}

	runID := uuid.New().String()

	annotated := indicator.Attach(b.candles, b.config.Indicators)
	signals := b.generator.Generate(annotated)

	signalsByBar := make(map[time.Time]types.Signal, len(signals))
	for _, s := range signals {
		signalsByBar[s.Time] = s
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runID, len(annotated)); err != nil {
			return err
		}
	}

	b.log.Info("backtest run started",
		zap.String("run_id", runID),
		zap.Int("bars", len(annotated)),
		zap.Int("signals", len(signals)),
	)

	var (
		trades     []types.ClosedTrade
		dayStats   types.DayStats
		openPos    *types.Position
		entryTrade *types.ExecutedTrade
		commission float64
	)

	for i, bar := range annotated {
		if err := ctx.Err(); err != nil {
			return err
		}

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(i+1, len(annotated)); err != nil {
				return err
			}
		}

		sig, ok := signalsByBar[bar.Candle.Time]
		if !ok {
			continue
		}

		bid, ask := bidAskFromBar(bar.Candle)

		switch {
		case sig.IsEntry():
			if openPos != nil {
				// already long, subsequent entries are ignored
				continue
			}

			if !b.riskManager.AllowNewTrade(dayStats) {
				b.log.Debug("entry rejected by daily limits", zap.Time("bar", sig.Time))
				continue
			}

			tradeOpt, err := b.simulator.Execute(types.ExecutionRequest{
				Time:             sig.Time,
				Side:             types.SideBuy,
				BestBid:          optional.Some(bid),
				BestAsk:          optional.Some(ask),
				LotSize:          b.config.LotSize,
				MaxPositionValue: b.config.Execution.MaxPositionValue,
				CommissionPct:    b.config.Execution.CommissionPct,
				SlippagePct:      b.config.Execution.SlippagePct,
			}, sig.Reason)
			if err != nil {
				return err
			}

			trade, takeErr := tradeOpt.Take()
			if takeErr != nil {
				continue
			}

			pos := &types.Position{
				EntryPrice:      trade.ExecPrice,
				QtyShares:       trade.QtyShares,
				OpenedAt:        trade.Time,
				EntryReason:     trade.Reason,
				EntryCommission: trade.Commission,
			}
			b.riskManager.AssignStopsForLong(pos)

			openPos = pos
			entryTrade = &trade
			// the opening fill already counts against the daily limit
			dayStats.TradesCount++
			commission += trade.Commission

		case sig.IsExit():
			if openPos == nil || entryTrade == nil {
				continue
			}

			tradeOpt, err := b.simulator.Execute(types.ExecutionRequest{
				Time:             sig.Time,
				Side:             types.SideSell,
				BestBid:          optional.Some(bid),
				BestAsk:          optional.Some(ask),
				LotSize:          b.config.LotSize,
				MaxPositionValue: b.config.Execution.MaxPositionValue,
				CommissionPct:    b.config.Execution.CommissionPct,
				SlippagePct:      b.config.Execution.SlippagePct,
				DesiredShares:    optional.Some(openPos.QtyShares),
			}, sig.Reason)
			if err != nil {
				return err
			}

			exit, takeErr := tradeOpt.Take()
			if takeErr != nil {
				continue
			}

			// both sides' commissions land in the closing PnL
			commissionTotal := entryTrade.Commission + exit.Commission
			pnl := (exit.ExecPrice-openPos.EntryPrice)*float64(openPos.QtyShares) - commissionTotal
			pnlPct := (exit.ExecPrice - openPos.EntryPrice) / openPos.EntryPrice

			b.riskManager.UpdateDayStatsOnClose(&dayStats,
				openPos.EntryPrice, exit.ExecPrice, openPos.QtyShares, commissionTotal)

			trades = append(trades, types.ClosedTrade{
				EntryTime:   entryTrade.Time,
				ExitTime:    exit.Time,
				EntryPrice:  openPos.EntryPrice,
				ExitPrice:   exit.ExecPrice,
				QtyShares:   openPos.QtyShares,
				Commission:  commissionTotal,
				PnL:         pnl,
				PnLPct:      pnlPct,
				EntryReason: entryTrade.Reason,
				ExitReason:  exit.Reason,
			})

			commission += exit.Commission
			openPos = nil
			entryTrade = nil
		}
	}

	stats := b.buildStats(runID, trades, commission)

	resultFolder := ""

	if b.resultsFolder != "" {
		folder, err := b.writeResults(runID, trades, &stats)
		if err != nil {
			return err
		}

		resultFolder = folder
	}

	b.result = optional.Some(backtestengine.Result{
		Stats:  stats,
		Trades: trades,
	})

	b.log.Info("backtest run finished",
		zap.String("run_id", runID),
		zap.Int("trades", len(trades)),
		zap.Float64("pnl", stats.RealizedPnL),
	)

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(runID, resultFolder)
	}

	return nil
}

func (b *BacktestEngineV1) buildStats(runID string, trades []types.ClosedTrade, commission float64) types.BacktestStats {
	totalPnL := 0.0
	returns := make([]float64, len(trades))

	for i, t := range trades {
		totalPnL += t.PnL
		returns[i] = t.PnLPct
	}

	return types.BacktestStats{
		ID:              runID,
		Timestamp:       time.Now(),
		Ticker:          b.config.Ticker,
		TradesCount:     len(trades),
		RealizedPnL:     totalPnL,
		WinRate:         WinRate(trades),
		Sharpe:          SharpeRatio(returns),
		MaxDrawdown:     MaxDrawdown(equityFromTrades(trades)),
		TotalCommission: commission,
	}
}

func (b *BacktestEngineV1) writeResults(runID string, trades []types.ClosedTrade, stats *types.BacktestStats) (string, error) {
	folder := filepath.Join(b.resultsFolder, runID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeWriteFailed, "failed to create results folder", err)
	}

	tradesPath := filepath.Join(folder, "trades.csv")
	if err := WriteTradesCSV(tradesPath, trades); err != nil {
		return "", err
	}

	stats.TradesFilePath = tradesPath

	if err := types.WriteBacktestStats(filepath.Join(folder, "stats.yaml"), *stats); err != nil {
		return "", err
	}

	return folder, nil
}

// Result implements engine.Engine.
func (b *BacktestEngineV1) Result() (backtestengine.Result, error) {
	result, err := b.result.Take()
	if err != nil {
		return backtestengine.Result{}, errors.New(errors.ErrCodeBacktestRunFailed, "no completed run")
	}

	return result, nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}
