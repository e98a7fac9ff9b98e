// Package jitter sleeps for a random duration before a scheduled
// operation runs, spreading what would otherwise be a thundering herd of
// simultaneous cron firings across the configured window.
package jitter

import (
	"context"
	"math/rand"
	"time"

	"github.com/ethanadams/awscore/internal/logging"
)

// Apply blocks for a random duration in [0, maxJitter) before returning,
// or returns ctx.Err() immediately if ctx is cancelled first. A
// non-positive maxJitter disables jitter entirely. logger may be nil.
func Apply(ctx context.Context, maxJitter time.Duration, label string, logger logging.Logger) error {
	if maxJitter <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Nop
	}

	delay := time.Duration(rand.Int63n(int64(maxJitter)))
	if delay > 0 {
		logger.Debug("applying jitter %s (max %s) before %s", delay, maxJitter, label)
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
