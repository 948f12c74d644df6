package limiter

import (
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

// SlidingWindow implements the sliding window log rate limiting algorithm.
//
// It stores the instant of every admission and counts how many fall within
// the trailing window. Precise at window boundaries, at the cost of one
// timestamp per admitted unit.
type SlidingWindow struct {
	clock       clock.Clock
	maxRequests int
	window      time.Duration

	mu  sync.Mutex
	log []time.Time // oldest first
}

// NewSlidingWindow creates a sliding window limiter.
//   - maxRequests: max admissions within any trailing window
//   - window: duration of the sliding window
//   - c: clock to use for time
func NewSlidingWindow(maxRequests int, window time.Duration, c clock.Clock) *SlidingWindow {
	return &SlidingWindow{
		clock:       c,
		maxRequests: maxRequests,
		window:      window,
	}
}

// evict drops entries at or before now-window. Must be called with sw.mu held.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for i < len(sw.log) && !sw.log[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.log = append(sw.log[:0], sw.log[i:]...)
	}
}

func (sw *SlidingWindow) TryAcquire(n int) bool {
	if n <= 0 {
		return true
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	sw.evict(now)
	if len(sw.log)+n > sw.maxRequests {
		return false
	}
	for i := 0; i < n; i++ {
		sw.log = append(sw.log, now)
	}
	return true
}

func (sw *SlidingWindow) TimeUntilAvailable(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	sw.evict(now)
	excess := len(sw.log) + n - sw.maxRequests
	if excess <= 0 {
		return 0
	}
	if excess > len(sw.log) {
		// n exceeds maxRequests; the best case is a fully drained log.
		excess = len(sw.log)
		if excess == 0 {
			return sw.window
		}
	}
	// The excess-th oldest entry must age out before n more fit.
	if wait := sw.log[excess-1].Add(sw.window).Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func (sw *SlidingWindow) Kind() Kind { return KindSlidingWindow }

func (sw *SlidingWindow) Capacity() int { return sw.maxRequests }

func (sw *SlidingWindow) Snapshot() Snapshot {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evict(sw.clock.Now())
	return Snapshot{
		Kind: KindSlidingWindow,
		SlidingWindow: &SlidingWindowSnapshot{
			RequestsInWindow: len(sw.log),
			MaxRequests:      sw.maxRequests,
			Window:           sw.window,
		},
	}
}
