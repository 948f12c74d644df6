package limiter

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
)

func TestNew_SelectsVariant(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	for _, kind := range Kinds() {
		alg, err := New(Config{Algorithm: kind, MaxRequests: 10, Window: time.Minute}, vc)
		require.NoError(t, err)
		assert.Equal(t, kind, alg.Kind())
		assert.Equal(t, kind, alg.Snapshot().Kind)
		assert.Equal(t, 10, alg.Capacity())
	}
}

func TestNew_TokenBucketDefaults(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)

	alg, err := New(Config{Algorithm: KindTokenBucket, MaxRequests: 60, Window: time.Minute}, vc)
	require.NoError(t, err)
	snap := alg.Snapshot().TokenBucket
	assert.Equal(t, 60, snap.Capacity)
	assert.InDelta(t, 1.0, snap.RefillRate, 1e-12)

	alg, err = New(Config{Algorithm: KindTokenBucket, MaxRequests: 10, Window: time.Minute, Burst: 5, RefillRate: 0.1}, vc)
	require.NoError(t, err)
	snap = alg.Snapshot().TokenBucket
	assert.Equal(t, 5, snap.Capacity)
	assert.InDelta(t, 0.1, snap.RefillRate, 1e-12)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Algorithm: KindSlidingWindow, MaxRequests: 1, Window: time.Second}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown algorithm", func(c *Config) { c.Algorithm = "leaky_bucket" }},
		{"zero max requests", func(c *Config) { c.MaxRequests = 0 }},
		{"zero window", func(c *Config) { c.Window = 0 }},
		{"negative burst", func(c *Config) { c.Burst = -1 }},
		{"negative refill", func(c *Config) { c.RefillRate = -0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mut(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, clock.NewVirtualClock(epoch))
			assert.Error(t, err)
		})
	}

	cfg := valid
	cfg.Algorithm = "bogus"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownAlgorithm)
}

// With time frozen, no interleaving of concurrent callers may admit more
// than the configured budget.
func TestSnapshot_TimeWindowInSeconds(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	for _, kind := range []Kind{KindSlidingWindow, KindFixedWindow} {
		t.Run(string(kind), func(t *testing.T) {
			alg, err := New(Config{Algorithm: kind, MaxRequests: 5, Window: 10 * time.Second}, vc)
			require.NoError(t, err)
			alg.TryAcquire(2)

			data, err := json.Marshal(alg.Snapshot())
			require.NoError(t, err)
			assert.Contains(t, string(data), `"time_window":10`)
			assert.NotContains(t, string(data), `"time_window":10000000000`)

			var got Snapshot
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, alg.Snapshot(), got)
		})
	}
}

func TestConcurrentCallersNeverExceedBudget(t *testing.T) {
	const (
		budget  = 25
		callers = 16
		tries   = 20
	)
	vc := clock.NewVirtualClock(epoch)
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			alg, err := New(Config{Algorithm: kind, MaxRequests: budget, Window: time.Minute}, vc)
			require.NoError(t, err)

			var admitted atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < tries; j++ {
						_ = alg.TimeUntilAvailable(1)
						if alg.TryAcquire(1) {
							admitted.Add(1)
						}
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int64(budget), admitted.Load())
		})
	}
}
