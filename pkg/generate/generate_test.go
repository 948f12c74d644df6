package generate

import (
	"testing"
	"time"
)

func TestAdmissions_AllPatterns(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patterns := []string{PatternSteady, PatternBurst, PatternRamp}

	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			records, err := Admissions(Options{
				Count:    32,
				Limiters: []string{"auth", "url_signing"},
				Duration: 2 * time.Minute,
				Pattern:  p,
				Start:    start,
				Seed:     7,
			})
			if err != nil {
				t.Fatalf("Admissions() error = %v", err)
			}
			if len(records) != 32 {
				t.Fatalf("len(records) = %d, want 32", len(records))
			}
			for _, rec := range records {
				if rec.Limiter == "" || rec.Cost < 1 || rec.ID == "" {
					t.Fatalf("record should have limiter, cost and id: %+v", rec)
				}
			}
		})
	}
}

func TestAdmissions_UnknownPattern(t *testing.T) {
	opts := DefaultOptions()
	opts.Pattern = "zigzag"
	if _, err := Admissions(opts); err == nil {
		t.Fatal("expected an error for an unknown pattern")
	}
}
