package replay

import (
	"context"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/limiter"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/recorder"
	"github.com/SmitUplenchwar2687/jobpacer/pkg/registry"
)

func TestReplayBasic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vc := clock.NewVirtualClock(start)
	reg, err := registry.FromConfig(map[string]limiter.Config{
		"svc": {Algorithm: limiter.KindTokenBucket, MaxRequests: 2, Window: time.Minute},
	}, vc)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	r := New(reg, vc, 0, Filter{})
	r.LoadRecords([]recorder.AdmissionRecord{
		{Timestamp: start, Limiter: "svc", Cost: 1, Admitted: true},
		{Timestamp: start.Add(time.Second), Limiter: "svc", Cost: 1, Admitted: true},
		{Timestamp: start.Add(2 * time.Second), Limiter: "svc", Cost: 1, Admitted: true},
	})

	summary, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Replayed != 3 {
		t.Fatalf("Replayed = %d, want 3", summary.Replayed)
	}
	if summary.Admitted != 2 || summary.Denied != 1 {
		t.Fatalf("Admitted/Denied = %d/%d, want 2/1", summary.Admitted, summary.Denied)
	}
}
