package clock

import (
	"context"
	"time"
)

// Clock abstracts time so limiters, the admission gate and the poller can be
// driven by either the wall clock or a VirtualClock.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
}

// stoppable is implemented by clocks whose pending timers can be released
// early. Sleep uses it so cancelled waits do not linger.
type stoppable interface {
	newTimer(d time.Duration) (<-chan time.Time, func())
}

// RealClock delegates to the standard time package.
type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (c *RealClock) newTimer(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// Sleep suspends the caller for d as measured by c. It returns ctx.Err() as
// soon as ctx is done, so no wait in the module is ever unbounded.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	var fired <-chan time.Time
	if s, ok := c.(stoppable); ok {
		var stop func()
		fired, stop = s.newTimer(d)
		defer stop()
	} else {
		fired = c.After(d)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-fired:
		return nil
	}
}
