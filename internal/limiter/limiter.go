package limiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

// Kind identifies a rate limiting algorithm.
type Kind string

const (
	KindTokenBucket   Kind = "token_bucket"
	KindSlidingWindow Kind = "sliding_window"
	KindFixedWindow   Kind = "fixed_window"
)

// Kinds lists every supported algorithm in a stable order.
func Kinds() []Kind {
	return []Kind{KindTokenBucket, KindSlidingWindow, KindFixedWindow}
}

// Algorithm is the capability set shared by every limiter variant.
// Implementations guard their whole read-modify-write sequence with their own
// mutex and read time only through the injected clock.
type Algorithm interface {
	// TryAcquire admits n units and commits the cost if budget allows.
	TryAcquire(n int) bool
	// TimeUntilAvailable estimates how long until n units would be admitted.
	// It never returns a negative duration.
	TimeUntilAvailable(n int) time.Duration
	// Kind reports the algorithm variant.
	Kind() Kind
	// Capacity is the largest cost a single admission can carry.
	Capacity() int
	// Snapshot returns a point-in-time view of the internal counters.
	Snapshot() Snapshot
}

// Snapshot is a tagged view of one limiter's counters. Exactly one of the
// variant fields is set, matching Kind.
type Snapshot struct {
	Kind          Kind                   `json:"type"`
	TokenBucket   *TokenBucketSnapshot   `json:"token_bucket,omitempty"`
	SlidingWindow *SlidingWindowSnapshot `json:"sliding_window,omitempty"`
	FixedWindow   *FixedWindowSnapshot   `json:"fixed_window,omitempty"`
}

type TokenBucketSnapshot struct {
	TokensAvailable float64 `json:"tokens_available"`
	Capacity        int     `json:"capacity"`
	RefillRate      float64 `json:"refill_rate"` // tokens per second
}

// SlidingWindowSnapshot and FixedWindowSnapshot encode Window as
// "time_window" in seconds.
type SlidingWindowSnapshot struct {
	RequestsInWindow int           `json:"requests_in_window"`
	MaxRequests      int           `json:"max_requests"`
	Window           time.Duration `json:"-"`
}

type FixedWindowSnapshot struct {
	RequestCount int           `json:"request_count"`
	MaxRequests  int           `json:"max_requests"`
	WindowStart  time.Time     `json:"window_start"`
	Window       time.Duration `json:"-"`
}

func (s SlidingWindowSnapshot) MarshalJSON() ([]byte, error) {
	type plain SlidingWindowSnapshot
	return json.Marshal(struct {
		plain
		TimeWindow float64 `json:"time_window"`
	}{plain(s), s.Window.Seconds()})
}

func (s *SlidingWindowSnapshot) UnmarshalJSON(data []byte) error {
	type plain SlidingWindowSnapshot
	aux := struct {
		*plain
		TimeWindow float64 `json:"time_window"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Window = seconds(aux.TimeWindow)
	return nil
}

func (s FixedWindowSnapshot) MarshalJSON() ([]byte, error) {
	type plain FixedWindowSnapshot
	return json.Marshal(struct {
		plain
		TimeWindow float64 `json:"time_window"`
	}{plain(s), s.Window.Seconds()})
}

func (s *FixedWindowSnapshot) UnmarshalJSON(data []byte) error {
	type plain FixedWindowSnapshot
	aux := struct {
		*plain
		TimeWindow float64 `json:"time_window"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Window = seconds(aux.TimeWindow)
	return nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// Config holds the parameters for creating a limiter.
type Config struct {
	Algorithm   Kind          `json:"algorithm" yaml:"algorithm"`
	MaxRequests int           `json:"max_requests" yaml:"max_requests"` // Requests allowed per window
	Window      time.Duration `json:"window" yaml:"window"`
	Burst       int           `json:"burst,omitempty" yaml:"burst,omitempty"`             // Bucket capacity (token bucket only, 0 = MaxRequests)
	RefillRate  float64       `json:"refill_rate,omitempty" yaml:"refill_rate,omitempty"` // Tokens per second (token bucket only, 0 = MaxRequests/Window)
}

var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Validate checks that the config describes a constructible limiter.
func (c Config) Validate() error {
	switch c.Algorithm {
	case KindTokenBucket, KindSlidingWindow, KindFixedWindow:
	default:
		return fmt.Errorf("%w %q, must be one of: token_bucket, sliding_window, fixed_window", ErrUnknownAlgorithm, c.Algorithm)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive, got %d", c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must not be negative, got %d", c.Burst)
	}
	if c.RefillRate < 0 {
		return fmt.Errorf("refill_rate must not be negative, got %g", c.RefillRate)
	}
	return nil
}

// New builds the algorithm selected by cfg.
func New(cfg Config, c clock.Clock) (Algorithm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case KindTokenBucket:
		capacity := cfg.Burst
		if capacity == 0 {
			capacity = cfg.MaxRequests
		}
		rate := cfg.RefillRate
		if rate == 0 {
			rate = float64(cfg.MaxRequests) / cfg.Window.Seconds()
		}
		return NewTokenBucket(capacity, rate, c), nil
	case KindSlidingWindow:
		return NewSlidingWindow(cfg.MaxRequests, cfg.Window, c), nil
	default:
		return NewFixedWindow(cfg.MaxRequests, cfg.Window, c), nil
	}
}
