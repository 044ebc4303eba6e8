package types

import "time"

type SignalType string

const (
	// SignalTypeBuy opens a long position.
	SignalTypeBuy SignalType = "BUY"
	// SignalTypeSell closes the long position on a reversal condition.
	SignalTypeSell SignalType = "SELL"
	// SignalTypeCloseLong closes the long position on a breakdown or a
	// stop/take-profit trigger.
	SignalTypeCloseLong SignalType = "CLOSE_LONG"
)

// Signal is a single strategy decision produced on the close of a candle.
// The generator emits at most one signal per bar.
type Signal struct {
	// Time is the close time of the triggering candle.
	Time time.Time
	// Type is the kind of the signal.
	Type SignalType
	// Price is the reference price, the close of the triggering candle.
	Price float64
	// Reason lists every rule that fired, joined with "; ".
	Reason string
}

// IsEntry reports whether the signal opens a position.
func (s Signal) IsEntry() bool {
	return s.Type == SignalTypeBuy
}

// IsExit reports whether the signal closes a position.
func (s Signal) IsExit() bool {
	return s.Type == SignalTypeSell || s.Type == SignalTypeCloseLong
}
