package replay

import (
	"slices"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/recorder"
)

// Filter selects admission records during replay.
type Filter struct {
	Limiters []string  // only these limiters (empty = all)
	After    time.Time // only records after this time (zero = no limit)
	Before   time.Time // only records before this time (zero = no limit)
	// AdmittedOnly drops records the live gate denied, replaying only the
	// demand that actually reached the collaborator.
	AdmittedOnly bool
}

// Match reports whether r passes the filter.
func (f *Filter) Match(r recorder.AdmissionRecord) bool {
	if len(f.Limiters) > 0 && !slices.Contains(f.Limiters, r.Limiter) {
		return false
	}
	if !f.After.IsZero() && !r.Timestamp.After(f.After) {
		return false
	}
	if !f.Before.IsZero() && !r.Timestamp.Before(f.Before) {
		return false
	}
	if f.AdmittedOnly && !r.Admitted {
		return false
	}
	return true
}
