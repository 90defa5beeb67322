package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps exponential growth.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter adds randomness to backoff (0.0 to 1.0).
	Jitter float64
	// Backoff overrides the exponential schedule when set.
	Backoff func(attempt int) time.Duration
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns exponential defaults used for infrastructure connects.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// FixedRetryConfig retries up to attempts times with a constant wait between them.
func FixedRetryConfig(attempts int, interval time.Duration) RetryConfig {
	if attempts < 1 {
		attempts = 1
	}
	return RetryConfig{
		MaxAttempts: attempts,
		Backoff:     FixedBackoff(interval),
		RetryIf:     func(error) bool { return true },
	}
}

// FixedBackoff waits the same interval before every retry.
func FixedBackoff(interval time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return interval }
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retry executes fn until it succeeds, RetryIf rejects the error, attempts run
// out, or ctx ends. ctx is checked before every attempt and during waits, so a
// cancelled ctx stops new attempts without interrupting one in progress.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Backoff == nil {
		cfg.Backoff = exponential(cfg)
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, errors.Join(lastErr, err)
			}
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) || attempt == cfg.MaxAttempts {
			break
		}

		backoff := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		if backoff <= 0 {
			continue
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func exponential(cfg RetryConfig) func(int) time.Duration {
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Second
	}
	factor := cfg.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	return func(attempt int) time.Duration {
		d := float64(initial) * math.Pow(factor, float64(attempt-1))
		if cfg.Jitter > 0 {
			d += (rand.Float64()*2 - 1) * d * cfg.Jitter
		}
		if d > float64(maxBackoff) {
			d = float64(maxBackoff)
		}
		if d < 0 {
			d = float64(initial)
		}
		return time.Duration(d)
	}
}
