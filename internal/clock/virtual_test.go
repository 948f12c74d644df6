package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtualClock_NowAndAdvance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.True(t, vc.Now().Equal(epoch))

	vc.Advance(1 * time.Hour)
	vc.Advance(30 * time.Minute)
	assert.True(t, vc.Now().Equal(epoch.Add(90*time.Minute)))
	assert.Equal(t, 90*time.Minute, vc.Since(epoch))
}

func TestVirtualClock_AdvanceNegativePanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.Panics(t, func() { vc.Advance(-time.Second) })
}

func TestVirtualClock_SetPastPanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	vc.Set(epoch.Add(24 * time.Hour))
	assert.True(t, vc.Now().Equal(epoch.Add(24*time.Hour)))
	assert.Panics(t, func() { vc.Set(epoch) })
}

func TestVirtualClock_After_FiresOnAdvance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ch := vc.After(5 * time.Second)
	assert.Equal(t, 1, vc.Waiters())

	select {
	case <-ch:
		t.Fatal("After() fired before advance")
	default:
	}

	vc.Advance(5 * time.Second)

	select {
	case got := <-ch:
		assert.True(t, got.Equal(epoch.Add(5*time.Second)))
	default:
		t.Fatal("After() did not fire after advance")
	}
	assert.Zero(t, vc.Waiters())
}

func TestVirtualClock_After_ZeroDuration(t *testing.T) {
	vc := NewVirtualClock(epoch)
	select {
	case <-vc.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
	assert.Zero(t, vc.Waiters())
}

func TestVirtualClock_After_MultipleWaiters(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ch1 := vc.After(1 * time.Second)
	ch2 := vc.After(10 * time.Second)

	vc.Advance(5 * time.Second)
	select {
	case <-ch1:
	default:
		t.Error("ch1 should have fired")
	}
	select {
	case <-ch2:
		t.Error("ch2 should not have fired yet")
	default:
	}
	assert.Equal(t, 1, vc.Waiters())

	vc.Set(epoch.Add(time.Minute))
	select {
	case <-ch2:
	default:
		t.Error("ch2 should have fired after Set")
	}
}

func TestVirtualClock_FiresInDeadlineOrder(t *testing.T) {
	vc := NewVirtualClock(epoch)
	late := vc.After(3 * time.Second)
	early := vc.After(time.Second)
	mid := vc.After(2 * time.Second)

	vc.Advance(2 * time.Second)
	for name, ch := range map[string]<-chan time.Time{"early": early, "mid": mid} {
		select {
		case <-ch:
		default:
			t.Errorf("%s timer should have fired", name)
		}
	}
	select {
	case <-late:
		t.Error("late timer fired early")
	default:
	}
	assert.Equal(t, 1, vc.Waiters())
}

func TestVirtualClock_BlockUntil(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.False(t, vc.BlockUntil(1, 5*time.Millisecond))

	go func() { <-vc.After(time.Second) }()
	require.True(t, vc.BlockUntil(1, time.Second))
	vc.Advance(time.Second)
}

func TestSleep_ReturnsAfterAdvance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	done := make(chan error, 1)
	go func() { done <- Sleep(context.Background(), vc, 3*time.Second) }()

	require.True(t, vc.BlockUntil(1, time.Second))
	vc.Advance(3 * time.Second)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Sleep did not return after advance")
	}
}

func TestSleep_ContextCanceled(t *testing.T) {
	vc := NewVirtualClock(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Sleep(ctx, vc, time.Hour) }()

	require.True(t, vc.BlockUntil(1, time.Second))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Sleep ignored cancellation")
	}
	assert.Zero(t, vc.Waiters(), "cancelled Sleep should release its timer")
}

func TestSleep_NonPositiveDuration(t *testing.T) {
	vc := NewVirtualClock(epoch)
	assert.NoError(t, Sleep(context.Background(), vc, 0))
	assert.NoError(t, Sleep(context.Background(), vc, -time.Second))
	assert.Zero(t, vc.Waiters())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, vc, 0), context.Canceled)
}

func TestSleep_RealClock(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), NewRealClock(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestVirtualClock_ConcurrentAccess(t *testing.T) {
	vc := NewVirtualClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = vc.Now()
			_ = vc.Since(epoch)
			_ = vc.Waiters()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			vc.Advance(time.Millisecond)
		}
	}()
	wg.Wait()

	assert.True(t, vc.Now().Equal(epoch.Add(100*time.Millisecond)))
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(time.Now())
}
