package recorder

import (
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/gate"
)

// AdmissionRecord is a single captured admission decision.
type AdmissionRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Limiter   string        `json:"limiter"`
	Cost      int           `json:"cost"`
	Wait      bool          `json:"wait"`
	Admitted  bool          `json:"admitted"`
	Waited    time.Duration `json:"waited,omitempty"` // nanoseconds
	Error     string        `json:"error,omitempty"`
}

// FromEvent converts a gate event into a record.
func FromEvent(ev gate.Event) AdmissionRecord {
	return AdmissionRecord{
		ID:        ev.ID,
		Timestamp: ev.At,
		Limiter:   ev.Limiter,
		Cost:      ev.Cost,
		Wait:      ev.Wait,
		Admitted:  ev.Admitted,
		Waited:    ev.Waited,
		Error:     ev.Error,
	}
}
