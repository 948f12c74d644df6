package clock

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock is a controllable clock for time-travel testing.
// Advancing it releases every caller suspended in After or Sleep whose
// deadline has passed, earliest deadline first, so gate and poller waits
// complete instantly.
//
// Thread-safe for concurrent use.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	nextID  uint64
	waiters []waiter // sorted by deadline, then registration order
}

type waiter struct {
	id       uint64
	deadline time.Time
	ch       chan time.Time
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the virtual time once the clock
// reaches now+d. A non-positive d fires immediately.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	ch, _ := c.newTimer(d)
	return ch
}

// newTimer is After plus a stop function that unregisters the waiter, so a
// cancelled Sleep leaves nothing behind.
func (c *VirtualClock) newTimer(d time.Duration) (<-chan time.Time, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch, func() {}
	}

	c.nextID++
	w := waiter{id: c.nextID, deadline: c.current.Add(d), ch: ch}
	i := sort.Search(len(c.waiters), func(i int) bool {
		return c.waiters[i].deadline.After(w.deadline)
	})
	c.waiters = append(c.waiters, waiter{})
	copy(c.waiters[i+1:], c.waiters[i:])
	c.waiters[i] = w

	return ch, func() { c.remove(w.id) }
}

func (c *VirtualClock) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w.id == id {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Waiters returns the number of pending timers. Tests use it to wait until a
// goroutine has actually blocked before advancing time.
func (c *VirtualClock) Waiters() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waiters)
}

// BlockUntil polls until at least n timers are pending or timeout elapses in
// real time. It reports whether the waiters showed up.
func (c *VirtualClock) BlockUntil(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.Waiters() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return c.Waiters() >= n
}

// Advance moves the clock forward by d and fires every timer that is due.
// Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.fireDue()
}

// Set moves the clock to t and fires every timer that is due.
// Panics if t is before the current time.
func (c *VirtualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.current) {
		panic("clock: cannot set time to the past")
	}
	c.current = t
	c.fireDue()
}

// fireDue must be called with c.mu held.
func (c *VirtualClock) fireDue() {
	n := 0
	for n < len(c.waiters) && !c.waiters[n].deadline.After(c.current) {
		c.waiters[n].ch <- c.current
		n++
	}
	c.waiters = append(c.waiters[:0], c.waiters[n:]...)
}
