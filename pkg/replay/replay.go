package replay

import (
	"go.uber.org/zap"

	internalreplay "github.com/SmitUplenchwar2687/jobpacer/internal/replay"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/registry"
)

// Filter defines criteria for selecting admission records during replay.
type Filter = internalreplay.Filter

// Replayer replays recorded admissions through a limiter registry.
type Replayer = internalreplay.Replayer

// Option configures a Replayer.
type Option = internalreplay.Option

// Result captures the outcome of replaying a single record.
type Result = internalreplay.Result

// Summary aggregates replay statistics.
type Summary = internalreplay.Summary

// LimiterSummary holds per-limiter replay stats.
type LimiterSummary = internalreplay.LimiterSummary

var ErrNoRecords = internalreplay.ErrNoRecords

// New creates a new replayer.
func New(reg *registry.Registry, vc *clock.VirtualClock, speed float64, filter Filter, opts ...Option) *Replayer {
	return internalreplay.New(reg, vc, speed, filter, opts...)
}

func WithLogger(l *zap.Logger) Option {
	return internalreplay.WithLogger(l)
}
