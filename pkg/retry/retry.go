package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	callerr "stagecall/pkg/errors"
)

// Config holds backoff configuration for transient-failure retries.
type Config struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultConfig suits short-lived HTTP calls made during a live call:
// a handful of quick attempts, never long enough to stall the UI.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do executes fn with exponential backoff. Fatal and degraded call
// errors are never retried; transient classifications and raw transport
// failures (timeouts, refused connections) are.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions returning a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if !cfg.Enabled {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during wait: %w", ctx.Err())
		case <-time.After(delayFor(cfg, attempt)):
		}
	}

	return zero, fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// Retryable reports whether an error is worth repeating. A fatal or
// degraded classification is a verdict and repeating the request cannot
// change it; transient classifications and raw transport failures are
// fair game.
func Retryable(err error) bool {
	if ce := callerr.AsCallError(err); ce != nil {
		return ce.Severity == callerr.SeverityTransient
	}
	return true
}

func delayFor(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	duration := time.Duration(delay)
	if cfg.Jitter {
		jitter := duration / 4
		duration = duration - jitter + time.Duration(rand.Int63n(int64(jitter)*2+1))
	}
	return duration
}
