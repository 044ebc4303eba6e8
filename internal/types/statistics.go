package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BacktestStats is the summary row of one backtest run.
type BacktestStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id"`
	// Timestamp is when the run was executed.
	Timestamp time.Time `yaml:"timestamp"`
	// Ticker of the instrument.
	Ticker string `yaml:"ticker"`
	// TradesCount is the number of closed trades.
	TradesCount int `yaml:"trades_count"`
	// RealizedPnL is the summed realized PnL over all closed trades.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// WinRate is the fraction of closed trades with positive PnL.
	WinRate float64 `yaml:"win_rate"`
	// Sharpe is the mean per-trade return over its sample standard
	// deviation; 0 when fewer than two trades or zero deviation.
	Sharpe float64 `yaml:"sharpe"`
	// MaxDrawdown is the largest peak-to-trough drop of the cumulative
	// PnL curve, walking trades in exit order.
	MaxDrawdown float64 `yaml:"max_drawdown"`
	// TotalCommission is the summed commission over all closed trades.
	TotalCommission float64 `yaml:"total_commission"`
	// TradesFilePath is the path to the exported trade log.
	TradesFilePath string `yaml:"trades_file_path"`
}

// WriteBacktestStats writes the summary to a YAML file.
func WriteBacktestStats(path string, stats BacktestStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest stats to file: %w", err)
	}

	return nil
}

// SessionStats are the live engine counters exposed to the status and
// alerting collaborators.
type SessionStats struct {
	Iterations       int       `yaml:"iterations"`
	SignalsProcessed int       `yaml:"signals_processed"`
	TradesExecuted   int       `yaml:"trades_executed"`
	Errors           int       `yaml:"errors"`
	TotalPnL         float64   `yaml:"total_pnl"`
	LastUpdate       time.Time `yaml:"last_update"`
}

// EngineStatus is a point-in-time snapshot of the live engine.
type EngineStatus struct {
	State           TradingState `yaml:"state"`
	SessionStart    time.Time    `yaml:"session_start"`
	CurrentPosition *Position    `yaml:"current_position,omitempty"`
	DayStats        DayStats     `yaml:"day_stats"`
	LastSignalTime  time.Time    `yaml:"last_signal_time"`
	LastQuoteTime   time.Time    `yaml:"last_quote_time"`
	Stats           SessionStats `yaml:"stats"`
}
