// Package engine defines the backtest engine interface. Versioned
// implementations live in subpackages.
package engine

import (
	"context"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Lifecycle callback types for backtest phases.
// Callbacks returning an error abort the run.

// OnRunStartCallback is called once before replay begins. runID is the
// unique identifier generated for this run.
type OnRunStartCallback func(runID string, totalBars int) error

// OnProcessDataCallback is called for each replayed bar.
type OnProcessDataCallback func(current int, total int) error

// OnRunEndCallback is called after the run completes and results are
// written. resultFolderPath is empty when no results folder was configured.
type OnRunEndCallback func(runID string, resultFolderPath string)

// LifecycleCallbacks holds the lifecycle callbacks for a backtest run.
// Nil fields are skipped.
type LifecycleCallbacks struct {
	OnRunStart    *OnRunStartCallback
	OnProcessData *OnProcessDataCallback
	OnRunEnd      *OnRunEndCallback
}

// Result is the outcome of one backtest run.
type Result struct {
	Stats  types.BacktestStats
	Trades []types.ClosedTrade
}

type Engine interface {
	// Initialize configures the engine from YAML content.
	Initialize(config string) error
	// SetCandles sets the historical series to replay, in chronological
	// order.
	SetCandles(candles []types.Candle) error
	// SetResultsFolder sets the output directory for the trade log and
	// stats artifacts. Optional; without it results stay in memory.
	SetResultsFolder(folder string) error
	// Run replays the series through the signal, risk and execution
	// pipeline. The context cancels the replay between bars.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// Result returns the stats and trade log of the last completed run.
	Result() (Result, error)
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
