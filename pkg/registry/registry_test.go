package registry

import (
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/pkg/clock"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefault(clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if r.Len() != len(DefaultTable()) {
		t.Fatalf("Len() = %d, want %d", r.Len(), len(DefaultTable()))
	}
	if _, ok := r.Lookup(Auth); !ok {
		t.Fatalf("default registry has no %q limiter", Auth)
	}
	if !r.TryAcquire("unconfigured", 1000) {
		t.Fatal("unknown names should always be admitted")
	}
}
