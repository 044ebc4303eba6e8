// Package stats tracks live session counters.
package stats

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iskra-lab/iskra-trading/internal/logger"
	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Tracker accumulates per-session counters for the live engine.
// PnL is accumulated in decimal to keep the running sum exact over many
// small fills.
type Tracker struct {
	mu sync.Mutex

	sessionStart     time.Time
	iterations       int
	signalsProcessed int
	tradesExecuted   int
	errors           int
	totalPnL         decimal.Decimal
	lastUpdate       time.Time

	now    func() time.Time
	logger *logger.Logger
}

// NewTracker creates a Tracker with the session start set to now.
func NewTracker(log *logger.Logger) *Tracker {
	t := &Tracker{
		now:    time.Now,
		logger: log,
	}
	t.sessionStart = t.now()

	return t
}

// RecordIteration counts one trading-loop iteration.
func (t *Tracker) RecordIteration() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.iterations++
	t.lastUpdate = t.now()
}

// RecordSignal counts one processed signal.
func (t *Tracker) RecordSignal() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.signalsProcessed++
	t.lastUpdate = t.now()
}

// RecordTrade counts one executed fill.
func (t *Tracker) RecordTrade() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tradesExecuted++
	t.lastUpdate = t.now()

	t.logger.Debug("trade recorded",
		zap.Int("trades_executed", t.tradesExecuted),
	)
}

// RecordError counts one failed iteration.
func (t *Tracker) RecordError() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.errors++
	t.lastUpdate = t.now()
}

// AddPnL adds the realized result of a closed position to the session
// total.
func (t *Tracker) AddPnL(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalPnL = t.totalPnL.Add(decimal.NewFromFloat(pnl))
	t.lastUpdate = t.now()
}

// SessionStart returns the session start time.
func (t *Tracker) SessionStart() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sessionStart
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() types.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	totalPnL, _ := t.totalPnL.Float64()

	return types.SessionStats{
		Iterations:       t.iterations,
		SignalsProcessed: t.signalsProcessed,
		TradesExecuted:   t.tradesExecuted,
		Errors:           t.errors,
		TotalPnL:         totalPnL,
		LastUpdate:       t.lastUpdate,
	}
}
