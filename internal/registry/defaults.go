package registry

import (
	"time"

	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
)

// DefaultTable returns the built-in limiter configuration, one entry per
// external service. Limits are deliberately conservative.
func DefaultTable() map[string]limiter.Config {
	return map[string]limiter.Config{
		// 1 request per 10 seconds after a burst of 5.
		Auth: {
			Algorithm:   limiter.KindTokenBucket,
			MaxRequests: 10,
			Window:      time.Minute,
			Burst:       5,
			RefillRate:  0.1,
		},
		ImageGeneration: {
			Algorithm:   limiter.KindSlidingWindow,
			MaxRequests: 20,
			Window:      time.Minute,
		},
		DocumentEdit: {
			Algorithm:   limiter.KindSlidingWindow,
			MaxRequests: 30,
			Window:      time.Minute,
		},
		PromptGeneration: {
			Algorithm:   limiter.KindTokenBucket,
			MaxRequests: 60,
			Window:      time.Minute,
			Burst:       20,
			RefillRate:  1.0,
		},
		FileTransfer: {
			Algorithm:   limiter.KindSlidingWindow,
			MaxRequests: 1000,
			Window:      time.Minute,
		},
		URLSigning: {
			Algorithm:   limiter.KindSlidingWindow,
			MaxRequests: 100,
			Window:      time.Minute,
		},
	}
}
