package moex

import (
	"sync"
	"time"

	"github.com/iskra-lab/iskra-trading/pkg/errors"
)

// BreakerState represents the circuit breaker phase.
type BreakerState int

const (
	// BreakerClosed passes requests through while tracking failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests immediately until the reset timeout.
	BreakerOpen
	// BreakerHalfOpen allows a single probe request through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after maxFailures consecutive failures and rejects
// all calls for resetTimeout. After the timeout a single probe call is
// allowed through; a successful probe closes the breaker, a failed one
// reopens it.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time

	// now is swapped out in tests
	now func() time.Time

	// OnStateChange, when set, is called on every transition.
	OnStateChange func(from, to BreakerState)
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        BreakerClosed,
		now:          time.Now,
	}
}

// Execute runs fn through the breaker. When the breaker is open and the
// reset timeout has not elapsed, fn is not called and an ErrCodeCircuitOpen
// error is returned.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()

	if cb.state == BreakerOpen {
		if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
			cb.transition(BreakerHalfOpen)
		} else {
			cb.mu.Unlock()

			return errors.New(errors.ErrCodeCircuitOpen, "circuit breaker is open")
		}
	}

	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()

		if cb.state == BreakerHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(BreakerOpen)
		}

		return err
	}

	if cb.state == BreakerHalfOpen {
		cb.transition(BreakerClosed)
	}
	cb.failures = 0

	return nil
}

// State returns the current breaker phase.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.failures
}

func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to

	if to == BreakerClosed {
		cb.failures = 0
	}

	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
