// Package utils provides shared helpers for retry logic and ID generation.
package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps the exponential growth of the delay
	MaxDelay time.Duration

	// BackoffFactor is the multiplier for exponential backoff
	BackoffFactor float64

	// FullJitter, when set, sleeps a random duration in [0, delay) instead of
	// the computed delay, spreading concurrent retries apart
	FullJitter bool

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the retry policy used for external fetches:
// 3 attempts, 500ms base delay, 8s cap, full jitter. These are tunables,
// not contract.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
		FullJitter:    true,
	}
}

// RetryWithBackoff executes fn up to MaxAttempts times with exponentially
// increasing delays between attempts. A non-retryable error (per
// RetryableErrors) is returned immediately. Context cancellation aborts the
// wait between attempts.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err

			if config.RetryableErrors != nil && !config.RetryableErrors(err) {
				return err
			}

			if attempt == config.MaxAttempts {
				break
			}
		}

		sleep := delay
		if config.FullJitter && sleep > 0 {
			sleep = time.Duration(randomInt64n(int64(sleep)))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(sleep):
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// randomInt64n returns a random int64 in [0, n), falling back to time-based
// randomness if crypto/rand fails.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().UnixNano() % n
	}

	val := int64(bytes[0])<<56 | int64(bytes[1])<<48 | int64(bytes[2])<<40 | int64(bytes[3])<<32 |
		int64(bytes[4])<<24 | int64(bytes[5])<<16 | int64(bytes[6])<<8 | int64(bytes[7])

	if val < 0 {
		val = -val
	}

	return val % n
}
