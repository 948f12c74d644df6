package limiter

import (
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

// FixedWindow implements the fixed window counter rate limiting algorithm.
//
// A window opens at construction and is re-anchored at the first call made
// after it expires. Each window admits up to maxRequests units.
//
// Simple and memory-efficient, but can allow up to 2x the rate at window boundaries.
type FixedWindow struct {
	clock       clock.Clock
	maxRequests int
	window      time.Duration

	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// NewFixedWindow creates a fixed window limiter.
//   - maxRequests: max admissions per window
//   - window: duration of each fixed window
//   - c: clock to use for time
func NewFixedWindow(maxRequests int, window time.Duration, c clock.Clock) *FixedWindow {
	return &FixedWindow{
		clock:       c,
		maxRequests: maxRequests,
		window:      window,
		windowStart: c.Now(),
	}
}

// roll resets the counter once the current window has expired.
// Must be called with fw.mu held.
func (fw *FixedWindow) roll(now time.Time) {
	if now.Sub(fw.windowStart) >= fw.window {
		fw.windowStart = now
		fw.count = 0
	}
}

func (fw *FixedWindow) TryAcquire(n int) bool {
	if n <= 0 {
		return true
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.roll(fw.clock.Now())
	if fw.count+n > fw.maxRequests {
		return false
	}
	fw.count += n
	return true
}

func (fw *FixedWindow) TimeUntilAvailable(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := fw.clock.Now()
	fw.roll(now)
	if fw.count+n <= fw.maxRequests {
		return 0
	}
	if wait := fw.windowStart.Add(fw.window).Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func (fw *FixedWindow) Kind() Kind { return KindFixedWindow }

func (fw *FixedWindow) Capacity() int { return fw.maxRequests }

func (fw *FixedWindow) Snapshot() Snapshot {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.roll(fw.clock.Now())
	return Snapshot{
		Kind: KindFixedWindow,
		FixedWindow: &FixedWindowSnapshot{
			RequestCount: fw.count,
			MaxRequests:  fw.maxRequests,
			WindowStart:  fw.windowStart,
			Window:       fw.window,
		},
	}
}
