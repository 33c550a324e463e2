package exam

import (
	"context"
	"time"
)

// Clock is the session countdown, in whole seconds. It is not safe for concurrent use; the
// owning Session serialises access.
type Clock struct {
	limit     int
	remaining int
	armed     bool
	fired     bool
}

// NewClock returns a disarmed countdown starting at limit seconds.
func NewClock(limit int) *Clock {
	return &Clock{limit: limit, remaining: limit}
}

// Arm starts counting down. A clock that already fired stays disarmed until Reset.
func (c *Clock) Arm() {
	if c.fired {
		return
	}
	c.armed = true
}

// Disarm stops the countdown without firing.
func (c *Clock) Disarm() {
	c.armed = false
}

// Reset restores the full time limit and disarms the clock.
func (c *Clock) Reset() {
	c.remaining = c.limit
	c.armed = false
	c.fired = false
}

// Tick advances one second. It reports true exactly once, on the tick that reaches zero.
func (c *Clock) Tick() bool {
	if !c.armed {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		return false
	}
	c.armed = false
	c.fired = true
	return true
}

// Remaining returns the seconds left.
func (c *Clock) Remaining() int { return c.remaining }

// Armed reports whether ticks currently count down.
func (c *Clock) Armed() bool { return c.armed }

// Scheduler runs fn every interval until ctx is cancelled.
type Scheduler func(ctx context.Context, interval time.Duration, fn func())

// Every is the default Scheduler, backed by a time.Ticker on its own goroutine.
func Every(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
