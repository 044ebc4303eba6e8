package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is the single long position held for the instrument.
// Quantity is always a non-negative multiple of the instrument's lot size.
type Position struct {
	EntryPrice float64
	QtyShares  int64
	// StopLossPrice and TakeProfitPrice are assigned by the risk manager
	// after the entry fill. For a long, stop < entry < take.
	StopLossPrice   optional.Option[float64]
	TakeProfitPrice optional.Option[float64]
	OpenedAt        time.Time
	EntryReason     string
	EntryCommission float64
}

// DayStats holds the running per-day counters the risk manager gates on.
// It is reset at the session boundary by the owner of the trading day,
// not by the core.
type DayStats struct {
	TradesCount  int     `yaml:"trades_count"`
	RealizedPnL  float64 `yaml:"realized_pnl"`
	RealizedLoss float64 `yaml:"realized_loss"`
}

// ExecutionRequest describes one simulated fill against a top-of-book quote.
type ExecutionRequest struct {
	Time time.Time `validate:"required"`
	Side Side      `validate:"required,oneof=BUY SELL"`
	// BestBid and BestAsk may be absent when the venue does not quote
	// the relevant side; execution then returns no fill.
	BestBid          optional.Option[float64]
	BestAsk          optional.Option[float64]
	LotSize          int64   `validate:"required,gt=0"`
	MaxPositionValue float64 `validate:"required,gt=0"`
	CommissionPct    float64 `validate:"gte=0"`
	SlippagePct      float64 `validate:"gte=0"`
	// DesiredShares is set when closing a position to the exact held size.
	DesiredShares optional.Option[int64]
}

// Validate validates the ExecutionRequest struct.
func (r *ExecutionRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid execution request", err)
	}

	return nil
}

// ExecutedTrade is the immutable record of one simulated fill.
// QtyShares is always positive; a request that cannot fill returns no
// trade at all.
type ExecutedTrade struct {
	ID        string    `csv:"id"`
	Time      time.Time `csv:"time"`
	Side      Side      `csv:"side"`
	ExecPrice float64   `csv:"exec_price"`
	QtyLots   int64     `csv:"qty_lots"`
	QtyShares int64     `csv:"qty_shares"`
	// GrossValue is exec price times shares.
	GrossValue float64 `csv:"gross_value"`
	Commission float64 `csv:"commission"`
	// SlippageCost is the diagnostic cost of slippage against the
	// reference quote side.
	SlippageCost float64 `csv:"slippage_cost"`
	// NetValue is the signed cash flow: negative for BUY, positive for SELL.
	NetValue float64 `csv:"net_value"`
	Reason   string  `csv:"reason"`
}

// ClosedTrade is one row of the backtest trade log: a matched entry/exit
// round trip with its realized result.
type ClosedTrade struct {
	EntryTime   time.Time `csv:"entry_time"`
	ExitTime    time.Time `csv:"exit_time"`
	EntryPrice  float64   `csv:"entry_price"`
	ExitPrice   float64   `csv:"exit_price"`
	QtyShares   int64     `csv:"qty_shares"`
	Commission  float64   `csv:"commission"`
	PnL         float64   `csv:"pnl"`
	PnLPct      float64   `csv:"pnl_pct"`
	EntryReason string    `csv:"entry_reason"`
	ExitReason  string    `csv:"exit_reason"`
}
