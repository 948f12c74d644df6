package limiter

import (
	"math"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

// tokenEpsilon absorbs float drift from lazy refill so that a caller who
// sleeps exactly the advertised wait is admitted.
const tokenEpsilon = 1e-9

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket starts full. Tokens are added lazily on every call at refillRate
// per second, capped at capacity. An admission of cost n removes n tokens.
type TokenBucket struct {
	clock      clock.Clock
	capacity   int
	refillRate float64 // tokens per second

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full token bucket.
//   - capacity: max tokens that can accumulate
//   - refillRate: tokens added per second
//   - c: clock to use for time
func NewTokenBucket(capacity int, refillRate float64, c clock.Clock) *TokenBucket {
	return &TokenBucket{
		clock:      c,
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: c.Now(),
	}
}

// refill must be called with tb.mu held.
func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens += elapsed * tb.refillRate
	}
	if tb.tokens > float64(tb.capacity)-tokenEpsilon {
		tb.tokens = float64(tb.capacity)
	}
	tb.lastRefill = now
}

func (tb *TokenBucket) TryAcquire(n int) bool {
	if n <= 0 {
		return true
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens+tokenEpsilon < float64(n) {
		return false
	}
	tb.tokens = math.Max(0, tb.tokens-float64(n))
	return true
}

func (tb *TokenBucket) TimeUntilAvailable(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	deficit := float64(n) - tb.tokens
	if deficit <= tokenEpsilon {
		return 0
	}
	return secondsToDuration(deficit / tb.refillRate)
}

func (tb *TokenBucket) Kind() Kind { return KindTokenBucket }

func (tb *TokenBucket) Capacity() int { return tb.capacity }

func (tb *TokenBucket) Snapshot() Snapshot {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return Snapshot{
		Kind: KindTokenBucket,
		TokenBucket: &TokenBucketSnapshot{
			TokensAvailable: tb.tokens,
			Capacity:        tb.capacity,
			RefillRate:      tb.refillRate,
		},
	}
}

// secondsToDuration rounds up so a wait never undershoots the estimate.
func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(s * float64(time.Second)))
}
