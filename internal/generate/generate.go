// Package generate synthesizes admission demand for replay experiments.
package generate

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

const (
	// PatternSteady spreads admissions evenly.
	PatternSteady = "steady"
	// PatternBurst clusters admissions into four bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternRamp increases density towards the end of the span.
	PatternRamp = "ramp"
)

// Options controls how synthetic admissions are generated.
type Options struct {
	Count    int
	Limiters []string // defaults to the built-in limiter names
	Duration time.Duration
	Pattern  string
	Start    time.Time
	Seed     int64
	MaxCost  int // costs are drawn from [1, MaxCost]; 0 means 1
}

// DefaultOptions returns the CLI defaults.
func DefaultOptions() Options {
	return Options{
		Count:    100,
		Duration: 5 * time.Minute,
		Pattern:  PatternSteady,
		MaxCost:  1,
	}
}

// Admissions creates synthetic admission records, sorted by time. Every
// record is marked admitted: it describes demand, not a past decision.
func Admissions(opts Options) ([]recorder.AdmissionRecord, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.MaxCost < 0 {
		return nil, fmt.Errorf("max cost must not be negative, got %d", opts.MaxCost)
	}
	if opts.MaxCost == 0 {
		opts.MaxCost = 1
	}
	if opts.Pattern == "" {
		opts.Pattern = PatternSteady
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().Truncate(time.Second)
	}
	if len(opts.Limiters) == 0 {
		for name := range registry.DefaultTable() {
			opts.Limiters = append(opts.Limiters, name)
		}
		sort.Strings(opts.Limiters)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	var offsets []time.Duration
	rng := rand.New(rand.NewSource(opts.Seed))
	switch opts.Pattern {
	case PatternSteady:
		offsets = steady(opts.Count, opts.Duration)
	case PatternBurst:
		offsets = burst(rng, opts.Count, opts.Duration)
	case PatternRamp:
		offsets = ramp(opts.Count, opts.Duration)
	default:
		return nil, fmt.Errorf("unknown pattern %q, must be one of: steady, burst, ramp", opts.Pattern)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	records := make([]recorder.AdmissionRecord, len(offsets))
	for i, off := range offsets {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generating record id: %w", err)
		}
		records[i] = recorder.AdmissionRecord{
			ID:        id.String(),
			Timestamp: opts.Start.Add(off),
			Limiter:   opts.Limiters[rng.Intn(len(opts.Limiters))],
			Cost:      1 + rng.Intn(opts.MaxCost),
			Admitted:  true,
		}
	}
	return records, nil
}

func steady(count int, dur time.Duration) []time.Duration {
	interval := dur / time.Duration(count)
	offsets := make([]time.Duration, count)
	for i := range offsets {
		offsets[i] = time.Duration(i) * interval
	}
	return offsets
}

func burst(rng *rand.Rand, count int, dur time.Duration) []time.Duration {
	const numBursts = 4
	offsets := make([]time.Duration, 0, count)
	burstSize := count / numBursts
	burstGap := dur / numBursts

	for b := 0; b < numBursts; b++ {
		burstStart := time.Duration(b) * burstGap
		for i := 0; i < burstSize; i++ {
			// Admissions within a burst land within one second.
			offsets = append(offsets, burstStart+time.Duration(rng.Intn(1000))*time.Millisecond)
		}
	}
	for len(offsets) < count {
		offsets = append(offsets, time.Duration(rng.Int63n(int64(dur))))
	}
	return offsets
}

func ramp(count int, dur time.Duration) []time.Duration {
	offsets := make([]time.Duration, count)
	for i := range offsets {
		frac := float64(i) / float64(count)
		offsets[i] = time.Duration(frac * frac * float64(dur))
	}
	return offsets
}
