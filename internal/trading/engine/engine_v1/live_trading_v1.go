package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/iskra-lab/iskra-trading/internal/execution"
	"github.com/iskra-lab/iskra-trading/internal/health"
	"github.com/iskra-lab/iskra-trading/internal/indicator"
	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/internal/market"
	"github.com/iskra-lab/iskra-trading/internal/metrics"
	"github.com/iskra-lab/iskra-trading/internal/risk"
	"github.com/iskra-lab/iskra-trading/internal/strategy"
	tradingengine "github.com/iskra-lab/iskra-trading/internal/trading/engine"
	"github.com/iskra-lab/iskra-trading/internal/trading/engine/engine_v1/session"
	"github.com/iskra-lab/iskra-trading/internal/trading/engine/engine_v1/stats"
	"github.com/iskra-lab/iskra-trading/internal/types"
	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// LiveTradingEngineV1 implements the LiveTradingEngine interface: a
// polling loop that pulls quotes, builds candles, and routes signals
// through the same risk and execution pipeline the backtest uses, against
// a single persistent position and day-stats.
type LiveTradingEngineV1 struct {
	config  LiveTradingEngineV1Config
	log     *logger.Logger
	client  tradingengine.MarketDataClient
	clock   *session.Clock
	tracker *stats.Tracker
	metrics *metrics.Metrics
	health  *health.Registry

	cache       *market.CandleCache
	generator   *strategy.Generator
	riskManager *risk.Manager
	simulator   *execution.Simulator
	lotSize     int64

	callbacks tradingengine.LiveTradingCallbacks
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	now       func() time.Time

	mu               sync.Mutex
	state            types.TradingState
	position         *types.Position
	dayStats         types.DayStats
	lastSignalTime   time.Time
	lastQuoteTime    time.Time
	sessionStart     time.Time
	sessionEndWarned bool
}

// NewLiveTradingEngineV1 creates an uninitialized engine in the
// initializing state.
func NewLiveTradingEngineV1() *LiveTradingEngineV1 {
	return &LiveTradingEngineV1{
		state: types.TradingStateInitializing,
		now:   time.Now,
	}
}

var _ tradingengine.LiveTradingEngine = (*LiveTradingEngineV1)(nil)

// Initialize implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &e.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse live trading config", err)
	}

	if err := e.config.Validate(); err != nil {
		return err
	}

	var loggerError error

	e.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	clock, err := session.NewClock(e.config.SessionOpen, e.config.SessionClose)
	if err != nil {
		return err
	}

	e.clock = clock
	e.tracker = stats.NewTracker(e.log)
	e.metrics = metrics.NewMetrics()
	e.cache = market.NewCandleCache(e.config.CandleInterval(), e.config.MaxCandles)
	e.generator = strategy.NewGenerator(e.config.Strategy)
	e.riskManager = risk.NewManager(e.config.Risk)
	e.simulator = execution.NewSimulator()

	e.log.Debug("live trading engine initialized",
		zap.String("ticker", e.config.Ticker),
		zap.Int("poll_interval_sec", e.config.PollIntervalSec),
		zap.String("session", e.config.SessionOpen+"-"+e.config.SessionClose),
	)

	return nil
}

// SetMarketDataClient implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) SetMarketDataClient(client tradingengine.MarketDataClient) error {
	if client == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "market data client is nil")
	}

	e.client = client

	return nil
}

// Start implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) Start(ctx context.Context, callbacks tradingengine.LiveTradingCallbacks) error {
	e.mu.Lock()

	if e.generator == nil {
		e.mu.Unlock()

		return errors.New(errors.ErrCodeEngineStartFailed, "engine is not initialized")
	}

	if e.client == nil {
		e.mu.Unlock()

		return errors.New(errors.ErrCodeEngineStartFailed, "market data client is not set")
	}

	if e.state != types.TradingStateInitializing {
		e.mu.Unlock()

		return errors.Newf(errors.ErrCodeEngineStartFailed, "engine already started, state is %s", e.state)
	}

	e.callbacks = callbacks
	e.mu.Unlock()

	e.health = health.NewRegistry(e.log, health.NewMarketDataCheck(func(ctx context.Context) error {
		_, err := e.client.GetQuote(ctx, e.config.Ticker)

		return err
	}))

	// a critical dependency down at boot is fatal
	if err := e.health.CheckCritical(ctx); err != nil {
		e.abortStart(err)

		return err
	}

	info, err := e.client.GetSecurityInfo(ctx, e.config.Ticker)
	if err != nil {
		startErr := errors.Wrap(errors.ErrCodeEngineStartFailed, "failed to fetch security info", err)
		e.abortStart(startErr)

		return startErr
	}

	if info.LotSize <= 0 {
		startErr := errors.Newf(errors.ErrCodeEngineStartFailed, "invalid lot size %d for %s", info.LotSize, e.config.Ticker)
		e.abortStart(startErr)

		return startErr
	}

	e.lotSize = info.LotSize

	e.seedHistory(ctx)

	e.mu.Lock()

	e.sessionStart = e.now()

	if err := e.setState(types.TradingStateRunning); err != nil {
		e.mu.Unlock()

		return err
	}
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(2)
	go e.runLoop(runCtx)
	go e.healthLoop(runCtx)

	e.log.Info("live trading engine started",
		zap.String("ticker", e.config.Ticker),
		zap.Int64("lot_size", e.lotSize),
		zap.Int("seeded_candles", e.cache.Len()),
	)

	if callbacks.OnEngineStart != nil {
		if err := (*callbacks.OnEngineStart)(e.config.Ticker, e.sessionStart); err != nil {
			startErr := errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)
			_ = e.Stop()

			return startErr
		}
	}

	return nil
}

// abortStart shuts the lifecycle down after a fatal start failure.
func (e *LiveTradingEngineV1) abortStart(cause error) {
	e.log.Error("engine start aborted", zap.Error(cause))

	e.mu.Lock()
	_ = e.setState(types.TradingStateStopping)
	_ = e.setState(types.TradingStateStopped)
	e.mu.Unlock()

	if e.callbacks.OnEngineStop != nil {
		(*e.callbacks.OnEngineStop)(cause)
	}
}

// seedHistory preloads the candle cache. Failure is not fatal: the cache
// fills from polled quotes and the min-bars gate holds signals back until
// it has.
func (e *LiveTradingEngineV1) seedHistory(ctx context.Context) {
	if e.config.HistorySeedHours <= 0 {
		return
	}

	from := e.now().Add(-time.Duration(e.config.HistorySeedHours) * time.Hour)

	candles, err := e.client.GetHistoricalCandles(ctx, e.config.Ticker, from, e.config.CandleIntervalMin)
	if err != nil {
		e.log.Warn("failed to seed candle history", zap.Error(err))

		return
	}

	e.cache.Seed(candles)
}

// Stop implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) Stop() error {
	e.mu.Lock()

	switch e.state {
	case types.TradingStateStopping, types.TradingStateStopped:
		e.mu.Unlock()

		return nil
	default:
	}

	if err := e.setState(types.TradingStateStopping); err != nil {
		e.mu.Unlock()

		return err
	}
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	e.wg.Wait()

	e.finalizeSession()

	e.mu.Lock()
	_ = e.setState(types.TradingStateStopped)
	e.mu.Unlock()

	if e.callbacks.OnEngineStop != nil {
		(*e.callbacks.OnEngineStop)(nil)
	}

	return nil
}

// Pause implements engine.LiveTradingEngine. A paused engine keeps its
// loops ticking but skips iterations.
func (e *LiveTradingEngineV1) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.setState(types.TradingStatePaused)
}

// Resume implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.setState(types.TradingStateRunning)
}

// Status implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) Status() types.EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	var position *types.Position
	if e.position != nil {
		copied := *e.position
		position = &copied
	}

	var snapshot types.SessionStats
	if e.tracker != nil {
		snapshot = e.tracker.Snapshot()
	}

	return types.EngineStatus{
		State:           e.state,
		SessionStart:    e.sessionStart,
		CurrentPosition: position,
		DayStats:        e.dayStats,
		LastSignalTime:  e.lastSignalTime,
		LastQuoteTime:   e.lastQuoteTime,
		Stats:           snapshot,
	}
}

// GetConfigSchema implements engine.LiveTradingEngine.
func (e *LiveTradingEngineV1) GetConfigSchema() (string, error) {
	return e.config.GenerateSchemaJSON()
}

// setState applies a lifecycle transition. Callers hold e.mu.
func (e *LiveTradingEngineV1) setState(next types.TradingState) error {
	if !e.state.CanTransitionTo(next) {
		return errors.Newf(errors.ErrCodeEngineNotRunning,
			"invalid lifecycle transition %s -> %s", e.state, next)
	}

	e.log.Info("lifecycle transition",
		zap.String("from", string(e.state)),
		zap.String("to", string(next)),
	)

	e.state = next

	if e.callbacks.OnStateChange != nil {
		(*e.callbacks.OnStateChange)(next)
	}

	return nil
}

func (e *LiveTradingEngineV1) runLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval())
	defer ticker.Stop()

	for {
		e.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one iteration and turns its failure into a counted, alerted
// non-fatal event.
func (e *LiveTradingEngineV1) tick(ctx context.Context) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	if state != types.TradingStateRunning {
		return
	}

	if err := e.iterate(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}

		e.tracker.RecordError()
		e.metrics.IterationErrors.Inc()
		e.log.Warn("trading iteration failed", zap.Error(err))
		e.alert(types.AlertLevelError, fmt.Sprintf("trading iteration failed: %v", err))
	}
}

func (e *LiveTradingEngineV1) healthLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.HealthCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, result := range e.health.RunAll(ctx) {
			if result.Healthy || !result.Critical {
				continue
			}

			e.alert(types.AlertLevelWarning,
				fmt.Sprintf("health check %s failing: %v", result.Name, result.Err))
		}
	}
}

// iterate is one pass of the trading loop: session gate, quote fetch,
// candle update, signal processing, stop/take-profit check.
func (e *LiveTradingEngineV1) iterate(ctx context.Context) error {
	e.tracker.RecordIteration()
	e.metrics.IterationsTotal.Inc()

	now := e.now()

	if !e.clock.IsTradingTime(now) {
		e.mu.Lock()
		warn := e.position != nil && !e.sessionEndWarned
		if warn {
			e.sessionEndWarned = true
		}
		e.mu.Unlock()

		if warn {
			e.alert(types.AlertLevelWarning, "position still open outside the trading session")
		}

		return nil
	}

	quote, err := e.client.GetQuote(ctx, e.config.Ticker)
	if err != nil {
		return err
	}

	var fills []types.ExecutedTrade

	e.mu.Lock()

	e.sessionEndWarned = false
	e.lastQuoteTime = quote.Time
	e.cache.Update(quote)

	candles := e.cache.Candles()
	if len(candles) >= e.config.Strategy.MinBarsForIndicators {
		annotated := indicator.Attach(candles, e.config.Indicators)
		lastBar := candles[len(candles)-1].Time

		for _, sig := range e.generator.Generate(annotated) {
			// only the newest bar is actionable; older signals were
			// either handled on previous iterations or are stale
			if !sig.Time.Equal(lastBar) || !sig.Time.After(e.lastSignalTime) {
				continue
			}

			e.lastSignalTime = sig.Time

			fill, sigErr := e.processSignal(sig, quote)
			if sigErr != nil {
				e.mu.Unlock()

				return sigErr
			}

			if trade, takeErr := fill.Take(); takeErr == nil {
				fills = append(fills, trade)
			}
		}
	}

	// stop/take-profit is checked against the latest quote on every
	// iteration, not only on signal bars
	if e.position != nil {
		decision := e.riskManager.CheckExitRulesForLong(*e.position, quote.Last)
		if decision.Action != risk.ExitActionNone {
			sig := types.Signal{
				Time:   now,
				Type:   types.SignalTypeCloseLong,
				Price:  decision.ExitPrice.TakeOr(quote.Last.TakeOr(0)),
				Reason: decision.Reason,
			}

			fill, exitErr := e.processSignal(sig, quote)
			if exitErr != nil {
				e.mu.Unlock()

				return exitErr
			}

			if trade, takeErr := fill.Take(); takeErr == nil {
				fills = append(fills, trade)
			}
		}
	}

	e.mu.Unlock()

	for _, fill := range fills {
		e.tracker.RecordTrade()
		e.metrics.TradesTotal.WithLabelValues(string(fill.Side)).Inc()

		if e.callbacks.OnTradeExecuted != nil {
			(*e.callbacks.OnTradeExecuted)(fill)
		}
	}

	return nil
}

// processSignal routes one signal through the risk gate and the execution
// simulator. Callers hold e.mu.
func (e *LiveTradingEngineV1) processSignal(sig types.Signal, quote types.Quote) (optional.Option[types.ExecutedTrade], error) {
	e.tracker.RecordSignal()
	e.metrics.SignalsTotal.WithLabelValues(string(sig.Type)).Inc()

	switch sig.Type {
	case types.SignalTypeBuy:
		return e.openPosition(sig, quote)
	case types.SignalTypeSell, types.SignalTypeCloseLong:
		return e.closePosition(sig, quote)
	default:
		return optional.None[types.ExecutedTrade](), errors.Newf(errors.ErrCodeInvalidParameter, "unknown signal type %s", sig.Type)
	}
}

func (e *LiveTradingEngineV1) openPosition(sig types.Signal, quote types.Quote) (optional.Option[types.ExecutedTrade], error) {
	none := optional.None[types.ExecutedTrade]()

	if e.position != nil {
		e.log.Debug("entry signal ignored, position already open", zap.Time("bar", sig.Time))

		return none, nil
	}

	if !e.riskManager.AllowNewTrade(e.dayStats) {
		e.log.Debug("entry rejected by daily limits", zap.Time("bar", sig.Time))

		return none, nil
	}

	fill, err := e.simulator.Execute(types.ExecutionRequest{
		Time:             sig.Time,
		Side:             types.SideBuy,
		BestBid:          quote.Bid,
		BestAsk:          quote.Ask,
		LotSize:          e.lotSize,
		MaxPositionValue: e.config.Execution.MaxPositionValue,
		CommissionPct:    e.config.Execution.CommissionPct,
		SlippagePct:      e.config.Execution.SlippagePct,
	}, sig.Reason)
	if err != nil {
		return none, err
	}

	trade, takeErr := fill.Take()
	if takeErr != nil {
		e.log.Debug("entry produced no fill", zap.Time("bar", sig.Time))

		return none, nil
	}

	pos := &types.Position{
		EntryPrice:      trade.ExecPrice,
		QtyShares:       trade.QtyShares,
		OpenedAt:        trade.Time,
		EntryReason:     trade.Reason,
		EntryCommission: trade.Commission,
	}
	e.riskManager.AssignStopsForLong(pos)

	e.position = pos
	e.dayStats.TradesCount++

	e.log.Info("position opened",
		zap.Float64("entry_price", trade.ExecPrice),
		zap.Int64("qty_shares", trade.QtyShares),
		zap.String("reason", trade.Reason),
	)

	return optional.Some(trade), nil
}

func (e *LiveTradingEngineV1) closePosition(sig types.Signal, quote types.Quote) (optional.Option[types.ExecutedTrade], error) {
	none := optional.None[types.ExecutedTrade]()

	if e.position == nil {
		e.log.Debug("exit signal ignored, no open position", zap.Time("bar", sig.Time))

		return none, nil
	}

	fill, err := e.simulator.Execute(types.ExecutionRequest{
		Time:             sig.Time,
		Side:             types.SideSell,
		BestBid:          quote.Bid,
		BestAsk:          quote.Ask,
		LotSize:          e.lotSize,
		MaxPositionValue: e.config.Execution.MaxPositionValue,
		CommissionPct:    e.config.Execution.CommissionPct,
		SlippagePct:      e.config.Execution.SlippagePct,
		DesiredShares:    optional.Some(e.position.QtyShares),
	}, sig.Reason)
	if err != nil {
		return none, err
	}

	trade, takeErr := fill.Take()
	if takeErr != nil {
		e.log.Warn("exit produced no fill, position stays open", zap.Time("bar", sig.Time))

		return none, nil
	}

	pnl := (trade.ExecPrice-e.position.EntryPrice)*float64(e.position.QtyShares) - trade.Commission

	e.riskManager.UpdateDayStatsOnClose(&e.dayStats,
		e.position.EntryPrice, trade.ExecPrice, e.position.QtyShares, trade.Commission)
	e.tracker.AddPnL(pnl)

	e.log.Info("position closed",
		zap.Float64("exit_price", trade.ExecPrice),
		zap.Float64("pnl", pnl),
		zap.String("reason", trade.Reason),
	)

	e.position = nil

	return optional.Some(trade), nil
}

// alert emits an operator alert through the callback hook.
func (e *LiveTradingEngineV1) alert(level types.AlertLevel, message string) {
	e.metrics.AlertsTotal.Inc()

	alert := types.Alert{
		Time:    e.now(),
		Level:   level,
		Message: message,
	}

	switch level {
	case types.AlertLevelError:
		e.log.Error("alert", zap.String("message", message))
	case types.AlertLevelWarning:
		e.log.Warn("alert", zap.String("message", message))
	default:
		e.log.Info("alert", zap.String("message", message))
	}

	if e.callbacks.OnAlert != nil {
		(*e.callbacks.OnAlert)(alert)
	}
}

// finalizeSession logs and alerts the session summary.
func (e *LiveTradingEngineV1) finalizeSession() {
	if e.tracker == nil {
		return
	}

	snapshot := e.tracker.Snapshot()

	e.log.Info("session finished",
		zap.Int("iterations", snapshot.Iterations),
		zap.Int("signals", snapshot.SignalsProcessed),
		zap.Int("trades", snapshot.TradesExecuted),
		zap.Int("errors", snapshot.Errors),
		zap.Float64("total_pnl", snapshot.TotalPnL),
	)

	e.alert(types.AlertLevelInfo, fmt.Sprintf(
		"session finished: trades=%d pnl=%.2f errors=%d",
		snapshot.TradesExecuted, snapshot.TotalPnL, snapshot.Errors))
}
