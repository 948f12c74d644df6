package gate

import (
	"go.uber.org/zap"

	internalgate "github.com/SmitUplenchwar2687/jobpacer/internal/gate"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/registry"
)

// Gate admits work against a limiter registry.
type Gate = internalgate.Gate

// Option configures a Gate.
type Option = internalgate.Option

// Event describes one admission attempt.
type Event = internalgate.Event

// RateLimitError reports a failed admission.
type RateLimitError = internalgate.RateLimitError

var (
	ErrRateLimitExceeded = internalgate.ErrRateLimitExceeded
	ErrExceedsCapacity   = internalgate.ErrExceedsCapacity
	ErrInvalidCost       = internalgate.ErrInvalidCost
)

// New creates a gate over reg.
func New(reg *registry.Registry, c clock.Clock, opts ...Option) *Gate {
	return internalgate.New(reg, c, opts...)
}

// WithLogger sets the gate's logger.
func WithLogger(l *zap.Logger) Option {
	return internalgate.WithLogger(l)
}

// WithObserver adds fn to the functions called after every admission.
func WithObserver(fn func(Event)) Option {
	return internalgate.WithObserver(fn)
}
