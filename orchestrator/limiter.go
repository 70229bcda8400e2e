package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/poiesic/docpipe/clock"
)

// windowLimiter admits at most limit acquisitions per fixed window. A window
// opens at the first acquisition after the previous one expired.
type windowLimiter struct {
	clock       clock.Clock
	limit       int64
	window      time.Duration
	windowStart atomic.Int64 // unix nanos
	count       atomic.Int64
}

func newWindowLimiter(clk clock.Clock, limit int, window time.Duration) *windowLimiter {
	l := &windowLimiter{clock: clk, limit: int64(limit), window: window}
	l.windowStart.Store(clk.Now().UnixNano())
	return l
}

// Acquire blocks until the current window has room or ctx is done.
// A non-positive limit or window disables limiting.
func (l *windowLimiter) Acquire(ctx context.Context) error {
	if l.limit <= 0 || l.window <= 0 {
		return ctx.Err()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := l.clock.Now()
		start := l.windowStart.Load()
		elapsed := now.Sub(time.Unix(0, start))
		if elapsed >= l.window {
			if l.windowStart.CompareAndSwap(start, now.UnixNano()) {
				l.count.Store(0)
			}
			continue
		}

		if l.count.Add(1) <= l.limit {
			return nil
		}
		l.count.Add(-1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.window - elapsed):
		}
	}
}

// Admitted returns the number of admissions in the current window.
func (l *windowLimiter) Admitted() int64 {
	return l.count.Load()
}
