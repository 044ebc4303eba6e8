package types

// TradingState is the lifecycle state of the live trading engine.
type TradingState string

const (
	TradingStateInitializing TradingState = "initializing"
	TradingStateRunning      TradingState = "running"
	TradingStatePaused       TradingState = "paused"
	TradingStateStopping     TradingState = "stopping"
	TradingStateStopped      TradingState = "stopped"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// The machine is initializing -> running <-> paused -> stopping -> stopped;
// stopping is reachable from every non-terminal state.
func (s TradingState) CanTransitionTo(next TradingState) bool {
	switch s {
	case TradingStateInitializing:
		return next == TradingStateRunning || next == TradingStateStopping
	case TradingStateRunning:
		return next == TradingStatePaused || next == TradingStateStopping
	case TradingStatePaused:
		return next == TradingStateRunning || next == TradingStateStopping
	case TradingStateStopping:
		return next == TradingStateStopped
	case TradingStateStopped:
		return false
	default:
		return false
	}
}

// IsTerminal reports whether the state is final.
func (s TradingState) IsTerminal() bool {
	return s == TradingStateStopped
}
