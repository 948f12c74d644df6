package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRegistry_UnknownNameFailsOpen(t *testing.T) {
	r := New(clock.NewVirtualClock(epoch))

	for i := 0; i < 1000; i++ {
		require.True(t, r.TryAcquire("not-configured", 1))
	}
	assert.Zero(t, r.TimeUntilAvailable("not-configured", 50))
	_, ok := r.Lookup("not-configured")
	assert.False(t, ok)
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_DelegatesToNamedLimiter(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	r := New(vc)
	require.NoError(t, r.Register("svc", limiter.Config{
		Algorithm:   limiter.KindFixedWindow,
		MaxRequests: 2,
		Window:      5 * time.Second,
	}))

	assert.True(t, r.TryAcquire("svc", 1))
	assert.True(t, r.TryAcquire("svc", 1))
	assert.False(t, r.TryAcquire("svc", 1))
	assert.Equal(t, 5*time.Second, r.TimeUntilAvailable("svc", 1))

	// Another name is unaffected by svc's exhaustion.
	assert.True(t, r.TryAcquire("other", 1))
}

func TestRegistry_RegisterRejectsDuplicatesAndBadConfig(t *testing.T) {
	r := New(clock.NewVirtualClock(epoch))
	cfg := limiter.Config{Algorithm: limiter.KindSlidingWindow, MaxRequests: 1, Window: time.Second}

	require.NoError(t, r.Register("svc", cfg))
	assert.ErrorIs(t, r.Register("svc", cfg), ErrAlreadyRegistered)

	cfg.MaxRequests = 0
	assert.Error(t, r.Register("bad", cfg))
	assert.Error(t, r.Register("", limiter.Config{Algorithm: limiter.KindFixedWindow, MaxRequests: 1, Window: time.Second}))
	assert.Equal(t, []string{"svc"}, r.Names())
}

func TestFromConfig_ReportsEveryInvalidEntry(t *testing.T) {
	_, err := FromConfig(map[string]limiter.Config{
		"a": {Algorithm: "nope", MaxRequests: 1, Window: time.Second},
		"b": {Algorithm: limiter.KindFixedWindow, MaxRequests: 1, Window: time.Second},
		"c": {Algorithm: limiter.KindTokenBucket, MaxRequests: 0, Window: time.Second},
	}, clock.NewVirtualClock(epoch))

	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 2)
	assert.Contains(t, err.Error(), `limiter "a"`)
	assert.Contains(t, err.Error(), `limiter "c"`)
}

func TestNewDefault_HasOneLimiterPerService(t *testing.T) {
	r := NewDefault(clock.NewVirtualClock(epoch))

	assert.Equal(t, []string{Auth, DocumentEdit, FileTransfer, ImageGeneration, PromptGeneration, URLSigning}, r.Names())
	assert.Equal(t, 6, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 6)

	auth := snap[Auth]
	assert.Equal(t, limiter.KindTokenBucket, auth.Kind)
	require.NotNil(t, auth.TokenBucket)
	assert.Equal(t, 5, auth.TokenBucket.Capacity)
	assert.InDelta(t, 0.1, auth.TokenBucket.RefillRate, 1e-12)
	assert.InDelta(t, 5.0, auth.TokenBucket.TokensAvailable, 1e-9)

	img := snap[ImageGeneration]
	assert.Equal(t, limiter.KindSlidingWindow, img.Kind)
	require.NotNil(t, img.SlidingWindow)
	assert.Equal(t, 20, img.SlidingWindow.MaxRequests)
	assert.Equal(t, time.Minute, img.SlidingWindow.Window)
}

func TestRegistry_SnapshotReflectsUsage(t *testing.T) {
	r := NewDefault(clock.NewVirtualClock(epoch))
	for i := 0; i < 3; i++ {
		require.True(t, r.TryAcquire(DocumentEdit, 1))
	}
	require.True(t, r.TryAcquire(Auth, 2))

	snap := r.Snapshot()
	assert.Equal(t, 3, snap[DocumentEdit].SlidingWindow.RequestsInWindow)
	assert.InDelta(t, 3.0, snap[Auth].TokenBucket.TokensAvailable, 1e-9)
}

func TestRegistry_ConcurrentRegisterAndAcquire(t *testing.T) {
	r := New(clock.NewVirtualClock(epoch))
	cfg := limiter.Config{Algorithm: limiter.KindTokenBucket, MaxRequests: 100, Window: time.Minute}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.Register("shared", cfg)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				r.TryAcquire("shared", 1)
				_ = r.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"shared"}, r.Names())
}
