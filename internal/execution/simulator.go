// Package execution simulates aggressive fills against the best bid/ask:
// slippage baked into the execution price, per-side commission and whole-lot
// sizing against a position-value cap.
package execution

import (
	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/iskra-lab/iskra-trading/internal/types"
)

// Simulator fills ExecutionRequests. It is stateless; each Execute call is
// atomic and either returns a complete trade or none.
type Simulator struct{}

func NewSimulator() *Simulator {
	return &Simulator{}
}

// CalcExecPrice returns the fill price for the given side with slippage
// applied against the quote. Returns None when the relevant quote side is
// missing or non-positive.
func CalcExecPrice(side types.Side, bestBid, bestAsk optional.Option[float64], slippagePct float64) optional.Option[float64] {
	if side == types.SideBuy {
		ask, err := bestAsk.Take()
		if err != nil || ask <= 0 {
			return optional.None[float64]()
		}
		return optional.Some(ask * (1.0 + slippagePct))
	}

	bid, err := bestBid.Take()
	if err != nil || bid <= 0 {
		return optional.None[float64]()
	}
	return optional.Some(bid * (1.0 - slippagePct))
}

// PositionValueLimitSizing returns the largest whole-lot quantity whose
// notional at price fits the cash cap.
func PositionValueLimitSizing(price float64, lotSize int64, cashLimit float64) (qtyLots, qtyShares int64) {
	if price <= 0 || lotSize <= 0 || cashLimit <= 0 {
		return 0, 0
	}

	maxShares := int64(cashLimit / price)
	qtyLots = maxShares / lotSize
	if qtyLots < 0 {
		qtyLots = 0
	}

	return qtyLots, qtyLots * lotSize
}

// Execute fills the request and returns the trade record, or None when the
// quote side is missing or not a single lot is affordable. Zero-fill
// requests never produce a zero-quantity trade.
func (s *Simulator) Execute(req types.ExecutionRequest, reason string) (optional.Option[types.ExecutedTrade], error) {
	if err := req.Validate(); err != nil {
		return optional.None[types.ExecutedTrade](), err
	}

	execPriceOpt := CalcExecPrice(req.Side, req.BestBid, req.BestAsk, req.SlippagePct)
	execPrice, err := execPriceOpt.Take()
	if err != nil {
		return optional.None[types.ExecutedTrade](), nil
	}

	var qtyLots, qtyShares int64
	if desired, err := req.DesiredShares.Take(); err == nil && desired > 0 {
		// closing to an exact held size: round down to whole lots, then
		// re-size when the notional breaches the cap
		qtyLots = desired / req.LotSize
		qtyShares = qtyLots * req.LotSize
		if float64(qtyShares)*execPrice > req.MaxPositionValue {
			qtyLots, qtyShares = PositionValueLimitSizing(execPrice, req.LotSize, req.MaxPositionValue)
		}
	} else {
		qtyLots, qtyShares = PositionValueLimitSizing(execPrice, req.LotSize, req.MaxPositionValue)
	}

	if qtyShares <= 0 {
		return optional.None[types.ExecutedTrade](), nil
	}

	grossValue := execPrice * float64(qtyShares)
	commission := grossValue * req.CommissionPct

	var refQuote optional.Option[float64]
	if req.Side == types.SideBuy {
		refQuote = req.BestAsk
	} else {
		refQuote = req.BestBid
	}

	slipUnit := 0.0
	if ref, err := refQuote.Take(); err == nil {
		if req.Side == types.SideBuy {
			slipUnit = execPrice - ref
		} else {
			slipUnit = ref - execPrice
		}
		if slipUnit < 0 {
			slipUnit = 0
		}
	}

	netValue := grossValue - commission
	if req.Side == types.SideBuy {
		netValue = -(grossValue + commission)
	}

	trade := types.ExecutedTrade{
		ID:           uuid.New().String(),
		Time:         req.Time,
		Side:         req.Side,
		ExecPrice:    execPrice,
		QtyLots:      qtyLots,
		QtyShares:    qtyShares,
		GrossValue:   grossValue,
		Commission:   commission,
		SlippageCost: slipUnit * float64(qtyShares),
		NetValue:     netValue,
		Reason:       reason,
	}

	return optional.Some(trade), nil
}
