// Package retry implements the narrow retry policy for transport fetches.
// Only errors accepted by the configured classifier are retried; everything
// else fails fast. External API calls are never routed through this package
// because create/update are not proven idempotent upstream.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior over a fixed backoff schedule.
type Config struct {
	// Schedule holds the delay before each retry. len(Schedule)+1 is the
	// total number of attempts.
	Schedule []time.Duration

	// Retryable classifies errors; only errors it accepts are retried.
	// Nil means nothing is retried.
	Retryable func(error) bool

	// LogRetries controls whether attempts are logged (default on via
	// DefaultConfig).
	LogRetries bool
}

// DefaultConfig returns the policy for the platform's eventual-consistency
// window: three attempts total, waiting 500ms then 1s between them,
// scoped to the given classifier.
func DefaultConfig(retryable func(error) bool) Config {
	return Config{
		Schedule:   []time.Duration{500 * time.Millisecond, time.Second},
		Retryable:  retryable,
		LogRetries: true,
	}
}

// Do executes op, retrying per the config. It returns the first
// non-retryable error, the last error once the schedule is exhausted, or
// ctx.Err() if the context is cancelled while waiting.
func Do(ctx context.Context, cfg Config, op func() error) error {
	var lastErr error
	attempts := len(cfg.Schedule) + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := cfg.Schedule[attempt-1]
			if cfg.LogRetries {
				log.Debug().
					Int("attempt", attempt+1).
					Int("max_attempts", attempts).
					Dur("delay", delay).
					Err(lastErr).
					Msg("Retrying after transient error")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if cfg.Retryable == nil || !cfg.Retryable(lastErr) {
			return lastErr
		}
	}

	if cfg.LogRetries {
		log.Warn().Err(lastErr).Int("attempts", attempts).Msg("Operation failed after all retries")
	}
	return lastErr
}
