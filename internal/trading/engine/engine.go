// Package engine defines the live trading engine interface. Versioned
// implementations live in subpackages.
package engine

import (
	"context"
	"time"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Lifecycle callback types for live trading phases.
// All callbacks with an error return can abort the engine start if they
// return an error.

// OnEngineStartCallback is called once the engine has transitioned to
// running and the background loops are live.
type OnEngineStartCallback func(ticker string, sessionStart time.Time) error

// OnEngineStopCallback is called when the engine finishes stopping.
// err is the fatal error that forced the stop, or nil on a clean stop.
type OnEngineStopCallback func(err error)

// OnAlertCallback receives operator alerts: session anomalies, iteration
// failures, the session summary. Delivery is owned by the subscriber.
type OnAlertCallback func(alert types.Alert)

// OnStateChangeCallback is called on every lifecycle transition.
type OnStateChangeCallback func(state types.TradingState)

// OnTradeExecutedCallback is called after each simulated fill.
type OnTradeExecutedCallback func(trade types.ExecutedTrade)

// LiveTradingCallbacks holds the lifecycle callbacks for the live engine.
// Nil fields are skipped. Callbacks are invoked from engine goroutines and
// must not call back into the engine.
type LiveTradingCallbacks struct {
	OnEngineStart   *OnEngineStartCallback
	OnEngineStop    *OnEngineStopCallback
	OnAlert         *OnAlertCallback
	OnStateChange   *OnStateChangeCallback
	OnTradeExecuted *OnTradeExecutedCallback
}

// MarketDataClient is the quote and candle feed the engine polls. The
// MOEX ISS client in pkg/marketdata/moex satisfies it; tests substitute
// fakes.
type MarketDataClient interface {
	// GetHistoricalCandles returns finalized candles for the ticker from
	// the given time, in chronological order. interval is in minutes.
	GetHistoricalCandles(ctx context.Context, ticker string, from time.Time, interval int) ([]types.Candle, error)
	// GetQuote returns the latest L1 snapshot for the ticker.
	GetQuote(ctx context.Context, ticker string) (types.Quote, error)
	// GetSecurityInfo returns instrument metadata, including lot size.
	GetSecurityInfo(ctx context.Context, ticker string) (types.SecurityInfo, error)
}

// LiveTradingEngine orchestrates the polling trading loop against a
// market-data client.
type LiveTradingEngine interface {
	// Initialize configures the engine from YAML content.
	Initialize(config string) error
	// SetMarketDataClient configures the quote and candle feed.
	// Must be called before Start.
	SetMarketDataClient(client MarketDataClient) error
	// Start checks critical dependencies, seeds market data and spawns
	// the trading and health loops. It fails fatally when a critical
	// dependency is unhealthy and returns once the loops are running.
	Start(ctx context.Context, callbacks LiveTradingCallbacks) error
	// Stop cancels the background loops, waits for them to finish and
	// flushes the session summary. Stopping an already-stopped engine is
	// a no-op.
	Stop() error
	// Pause suspends trading iterations without tearing the loops down.
	Pause() error
	// Resume continues trading iterations after a Pause.
	Resume() error
	// Status returns a point-in-time snapshot of the engine.
	Status() types.EngineStatus
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
