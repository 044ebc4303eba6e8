package moex

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a minimum interval between requests. The mutex is
// held across the wait so concurrent callers queue instead of racing for
// the same slot.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

// Wait blocks until the caller may issue the next request or the context
// is cancelled.
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if remain := r.interval - time.Since(r.last); remain > 0 {
		timer := time.NewTimer(remain)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.last = time.Now()

	return nil
}
