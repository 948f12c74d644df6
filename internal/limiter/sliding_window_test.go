package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

func TestSlidingWindow_OldestAgesOut(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(3, 10*time.Second, vc)

	for i := 0; i < 3; i++ {
		require.True(t, sw.TryAcquire(1), "admission %d at t=0", i+1)
	}

	vc.Advance(5 * time.Second)
	assert.False(t, sw.TryAcquire(1), "4th at t=5 should be denied")
	assert.Equal(t, 5*time.Second, sw.TimeUntilAvailable(1))

	vc.Advance(6 * time.Second)
	assert.True(t, sw.TryAcquire(1), "5th at t=11 should be admitted")
}

func TestSlidingWindow_NoBoundaryBurst(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(2, time.Minute, vc)

	vc.Advance(50 * time.Second)
	require.True(t, sw.TryAcquire(1))
	require.True(t, sw.TryAcquire(1))

	// A fixed window would reset at t=60; the sliding log still holds both.
	vc.Advance(15 * time.Second)
	assert.False(t, sw.TryAcquire(1))
	assert.Equal(t, 45*time.Second, sw.TimeUntilAvailable(1))
}

func TestSlidingWindow_EntryExactlyAtCutoffIsEvicted(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(1, 10*time.Second, vc)

	require.True(t, sw.TryAcquire(1))
	vc.Advance(10 * time.Second)
	assert.Zero(t, sw.TimeUntilAvailable(1))
	assert.True(t, sw.TryAcquire(1))
}

func TestSlidingWindow_MultiUnitCost(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(4, 10*time.Second, vc)

	require.True(t, sw.TryAcquire(1))
	vc.Advance(2 * time.Second)
	require.True(t, sw.TryAcquire(2))
	vc.Advance(1 * time.Second)

	assert.False(t, sw.TryAcquire(2), "3 used of 4")
	// Need one slot freed: the t=0 entry ages out at t=10.
	assert.Equal(t, 7*time.Second, sw.TimeUntilAvailable(2))
	// Need all three freed: the t=2 entries age out at t=12.
	assert.Equal(t, 9*time.Second, sw.TimeUntilAvailable(4))
	assert.True(t, sw.TryAcquire(1))
}

func TestSlidingWindow_TimeUntilAvailableNonIncreasing(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(3, 10*time.Second, vc)
	for i := 0; i < 3; i++ {
		sw.TryAcquire(1)
		vc.Advance(time.Second)
	}

	prev := sw.TimeUntilAvailable(1)
	for i := 0; i < 20; i++ {
		vc.Advance(700 * time.Millisecond)
		cur := sw.TimeUntilAvailable(1)
		assert.GreaterOrEqual(t, cur, time.Duration(0))
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Zero(t, prev)
}

func TestSlidingWindow_Snapshot(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	sw := NewSlidingWindow(5, time.Minute, vc)
	sw.TryAcquire(1)
	sw.TryAcquire(1)

	snap := sw.Snapshot()
	assert.Equal(t, KindSlidingWindow, snap.Kind)
	require.NotNil(t, snap.SlidingWindow)
	assert.Equal(t, SlidingWindowSnapshot{RequestsInWindow: 2, MaxRequests: 5, Window: time.Minute}, *snap.SlidingWindow)

	vc.Advance(time.Minute)
	assert.Zero(t, sw.Snapshot().SlidingWindow.RequestsInWindow)
}
