package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

// ErrNoRecords is returned by Run when nothing was loaded.
var ErrNoRecords = errors.New("no records loaded")

// Replayer replays recorded admissions against a limiter registry on a
// virtual clock, to evaluate a quota table offline.
type Replayer struct {
	records  []recorder.AdmissionRecord
	registry *registry.Registry
	clock    *clock.VirtualClock
	filter   Filter
	speed    float64 // 1.0 = real-time, 10.0 = 10x, 0 = instant
	logger   *zap.Logger
}

// Result is the outcome of replaying one record.
type Result struct {
	Record     recorder.AdmissionRecord `json:"record"`
	Admitted   bool                     `json:"admitted"`
	RetryAfter time.Duration            `json:"retry_after,omitempty"`
	Changed    bool                     `json:"changed"` // decision differs from the recorded one
	Time       time.Time                `json:"time"`    // virtual time of the decision
}

// Summary aggregates replay statistics.
type Summary struct {
	TotalRecords int                       `json:"total_records"`
	Filtered     int                       `json:"filtered"`
	Replayed     int                       `json:"replayed"`
	Admitted     int                       `json:"admitted"`
	Denied       int                       `json:"denied"`
	Changed      int                       `json:"changed"`
	Duration     time.Duration             `json:"duration"`      // virtual time span
	WallDuration time.Duration             `json:"wall_duration"` // actual wall clock time
	PerLimiter   map[string]LimiterSummary `json:"per_limiter"`
}

type LimiterSummary struct {
	Admitted int `json:"admitted"`
	Denied   int `json:"denied"`
	Changed  int `json:"changed"`
}

type Option func(*Replayer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Replayer) { r.logger = jplog.OrNop(l) }
}

// New creates a replayer. reg must be built on vc so that advancing the
// virtual clock drives the limiters.
func New(reg *registry.Registry, vc *clock.VirtualClock, speed float64, filter Filter, opts ...Option) *Replayer {
	if speed < 0 {
		speed = 0
	}
	r := &Replayer{
		registry: reg,
		clock:    vc,
		speed:    speed,
		filter:   filter,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads admission records from a JSON reader.
func (r *Replayer) Load(reader io.Reader) error {
	records, err := recorder.LoadJSON(reader)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	r.records = records
	return nil
}

// LoadRecords sets the records directly.
func (r *Replayer) LoadRecords(records []recorder.AdmissionRecord) {
	r.records = make([]recorder.AdmissionRecord, len(records))
	copy(r.records, records)
}

// Run replays the loaded records in timestamp order. Each record is offered
// to the registry with a single non-waiting attempt. cb, if non-nil, is
// called for each replayed record.
func (r *Replayer) Run(ctx context.Context, cb func(Result)) (*Summary, error) {
	if len(r.records) == 0 {
		return nil, ErrNoRecords
	}

	sorted := make([]recorder.AdmissionRecord, len(r.records))
	copy(sorted, r.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var filtered []recorder.AdmissionRecord
	for _, rec := range sorted {
		if r.filter.Match(rec) {
			filtered = append(filtered, rec)
		}
	}

	summary := &Summary{
		TotalRecords: len(sorted),
		Filtered:     len(filtered),
		PerLimiter:   make(map[string]LimiterSummary),
	}
	if len(filtered) == 0 {
		return summary, nil
	}

	r.logger.Info("replaying admissions",
		zap.Int("records", len(filtered)),
		zap.Float64("speed", r.speed),
	)

	wallStart := time.Now()
	for i, rec := range filtered {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if i > 0 {
			if gap := rec.Timestamp.Sub(filtered[i-1].Timestamp); gap > 0 {
				if r.speed > 0 {
					if scaled := time.Duration(float64(gap) / r.speed); scaled > time.Millisecond {
						select {
						case <-ctx.Done():
							return summary, ctx.Err()
						case <-time.After(scaled):
						}
					}
				}
				r.clock.Advance(gap)
			}
		}

		cost := rec.Cost
		if cost < 1 {
			cost = 1
		}
		res := Result{
			Record:   rec,
			Admitted: r.registry.TryAcquire(rec.Limiter, cost),
			Time:     r.clock.Now(),
		}
		if !res.Admitted {
			res.RetryAfter = r.registry.TimeUntilAvailable(rec.Limiter, cost)
		}
		res.Changed = res.Admitted != rec.Admitted

		summary.Replayed++
		ls := summary.PerLimiter[rec.Limiter]
		if res.Admitted {
			summary.Admitted++
			ls.Admitted++
		} else {
			summary.Denied++
			ls.Denied++
		}
		if res.Changed {
			summary.Changed++
			ls.Changed++
		}
		summary.PerLimiter[rec.Limiter] = ls

		if cb != nil {
			cb(res)
		}
	}

	summary.Duration = filtered[len(filtered)-1].Timestamp.Sub(filtered[0].Timestamp)
	summary.WallDuration = time.Since(wallStart)

	r.logger.Info("replay complete",
		zap.Int("admitted", summary.Admitted),
		zap.Int("denied", summary.Denied),
		zap.Int("changed", summary.Changed),
	)
	return summary, nil
}
