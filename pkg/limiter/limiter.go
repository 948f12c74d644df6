package limiter

import (
	"time"

	internallimiter "github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
)

// Kind identifies a rate limiting algorithm.
type Kind = internallimiter.Kind

const (
	KindTokenBucket   = internallimiter.KindTokenBucket
	KindSlidingWindow = internallimiter.KindSlidingWindow
	KindFixedWindow   = internallimiter.KindFixedWindow
)

// Algorithm is the interface every limiter variant implements.
type Algorithm = internallimiter.Algorithm

// Config holds parameters for creating a limiter.
type Config = internallimiter.Config

// Snapshot is a point-in-time view of a limiter's state.
type Snapshot = internallimiter.Snapshot

type (
	TokenBucketSnapshot   = internallimiter.TokenBucketSnapshot
	SlidingWindowSnapshot = internallimiter.SlidingWindowSnapshot
	FixedWindowSnapshot   = internallimiter.FixedWindowSnapshot
)

// TokenBucket implements the token bucket algorithm.
type TokenBucket = internallimiter.TokenBucket

// SlidingWindow implements the sliding window log algorithm.
type SlidingWindow = internallimiter.SlidingWindow

// FixedWindow implements the fixed window counter algorithm.
type FixedWindow = internallimiter.FixedWindow

var ErrUnknownAlgorithm = internallimiter.ErrUnknownAlgorithm

// New creates the limiter variant cfg names.
func New(cfg Config, c clock.Clock) (Algorithm, error) {
	return internallimiter.New(cfg, c)
}

// NewTokenBucket creates a token bucket holding capacity tokens and refilling
// refillRate tokens per second.
func NewTokenBucket(capacity int, refillRate float64, c clock.Clock) *TokenBucket {
	return internallimiter.NewTokenBucket(capacity, refillRate, c)
}

// NewSlidingWindow creates a sliding window log limiter.
func NewSlidingWindow(maxRequests int, window time.Duration, c clock.Clock) *SlidingWindow {
	return internallimiter.NewSlidingWindow(maxRequests, window, c)
}

// NewFixedWindow creates a fixed window counter limiter.
func NewFixedWindow(maxRequests int, window time.Duration, c clock.Clock) *FixedWindow {
	return internallimiter.NewFixedWindow(maxRequests, window, c)
}
