// Package risk gates new trades against daily limits, assigns stop-loss and
// take-profit levels to long positions and folds closed trades into the
// running day statistics.
package risk

import (
	"github.com/moznion/go-optional"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// ExitAction names the outcome of a stop/take-profit check.
type ExitAction string

const (
	ExitActionNone ExitAction = "NONE"
	ExitActionStop ExitAction = "STOP"
	ExitActionTake ExitAction = "TAKE"
)

// ExitDecision is the result of checking a live position against its
// protective levels. ExitPrice is set only when the action is STOP or TAKE.
type ExitDecision struct {
	Action    ExitAction
	ExitPrice optional.Option[float64]
	Reason    string
}

// Limits holds the per-day and per-position risk configuration.
type Limits struct {
	// MaxTradesPerDay caps the number of closed trades within one session.
	MaxTradesPerDay int `yaml:"max_trades_per_day" validate:"required,gt=0"`
	// DailyLossLimit is the realized-loss ceiling in account currency.
	DailyLossLimit float64 `yaml:"daily_loss_limit" validate:"required,gt=0"`
	// StopLossPctMax is the tightest allowed stop distance; the manager
	// always uses it.
	StopLossPctMax float64 `yaml:"stop_loss_pct_max" validate:"required,gt=0"`
	// TakeProfitPctMin and TakeProfitPctMax bound the take-profit distance.
	TakeProfitPctMin float64 `yaml:"take_profit_pct_min" validate:"required,gt=0"`
	TakeProfitPctMax float64 `yaml:"take_profit_pct_max" validate:"required,gt=0"`
	// MinRiskReward is the minimum reward-to-risk ratio for a new position.
	MinRiskReward float64 `yaml:"min_risk_reward" validate:"required,gt=0"`
}

// DefaultLimits returns the stock intraday limits for the demo instrument.
func DefaultLimits() Limits {
	return Limits{
		MaxTradesPerDay:  5,
		DailyLossLimit:   3000,
		StopLossPctMax:   0.01,
		TakeProfitPctMin: 0.015,
		TakeProfitPctMax: 0.02,
		MinRiskReward:    1.5,
	}
}

// Manager applies the configured limits. It is stateless; callers own the
// DayStats and Position values it reads and mutates.
type Manager struct {
	limits Limits
}

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// AllowNewTrade reports whether a new entry is admitted under the daily
// trade-count and realized-loss limits.
func (m *Manager) AllowNewTrade(stats types.DayStats) bool {
	if stats.TradesCount >= m.limits.MaxTradesPerDay {
		return false
	}
	if stats.RealizedLoss >= m.limits.DailyLossLimit {
		return false
	}

	return true
}

// AssignStopsForLong sets the stop-loss and take-profit prices on a freshly
// opened long. The stop uses the tightest configured distance; the take
// keeps at least the minimum reward-to-risk ratio, capped at the maximum
// take-profit distance.
func (m *Manager) AssignStopsForLong(pos *types.Position) {
	slPct := m.limits.StopLossPctMax

	tpPct := m.limits.TakeProfitPctMin
	if rr := m.limits.MinRiskReward * slPct; rr > tpPct {
		tpPct = rr
	}
	if tpPct > m.limits.TakeProfitPctMax {
		tpPct = m.limits.TakeProfitPctMax
	}

	pos.StopLossPrice = optional.Some(pos.EntryPrice * (1.0 - slPct))
	pos.TakeProfitPrice = optional.Some(pos.EntryPrice * (1.0 + tpPct))
}

// CheckExitRulesForLong checks the latest price against the position's
// protective levels. A missing or non-positive quote, or an empty position,
// yields NONE rather than an error.
func (m *Manager) CheckExitRulesForLong(pos types.Position, lastPrice optional.Option[float64]) ExitDecision {
	last, err := lastPrice.Take()
	if err != nil || last <= 0 || pos.QtyShares <= 0 {
		return ExitDecision{Action: ExitActionNone}
	}

	if sl, err := pos.StopLossPrice.Take(); err == nil && last <= sl {
		return ExitDecision{
			Action:    ExitActionStop,
			ExitPrice: optional.Some(sl),
			Reason:    "stop-loss hit",
		}
	}

	if tp, err := pos.TakeProfitPrice.Take(); err == nil && last >= tp {
		return ExitDecision{
			Action:    ExitActionTake,
			ExitPrice: optional.Some(tp),
			Reason:    "take-profit hit",
		}
	}

	return ExitDecision{Action: ExitActionNone}
}

// UpdateDayStatsOnClose folds a closed long into the day statistics.
// Commission is charged against the PnL; a losing trade also grows the
// realized-loss counter the daily limit gates on.
func (m *Manager) UpdateDayStatsOnClose(stats *types.DayStats, entryPrice, exitPrice float64, qtyShares int64, commission float64) {
	pnl := (exitPrice-entryPrice)*float64(qtyShares) - commission

	stats.RealizedPnL += pnl
	stats.TradesCount++
	if pnl < 0 {
		stats.RealizedLoss += -pnl
	}
}
