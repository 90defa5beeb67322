package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), DefaultRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("expected ok, got %q, %v", result, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_FixedMakesExactlyMaxAttempts(t *testing.T) {
	cfg := FixedRetryConfig(4, time.Millisecond)
	var waits []time.Duration
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { waits = append(waits, d) }

	calls := 0
	boom := errors.New("boom")
	err := RetryFunc(context.Background(), cfg, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if len(waits) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(waits))
	}
	for _, w := range waits {
		if w != time.Millisecond {
			t.Fatalf("expected constant 1ms wait, got %v", w)
		}
	}
}

func TestRetry_FixedRetriesContextErrors(t *testing.T) {
	calls := 0
	_ = RetryFunc(context.Background(), FixedRetryConfig(2, 0), func() error {
		calls++
		return context.DeadlineExceeded
	})
	if calls != 2 {
		t.Fatalf("expected attempt timeouts to be retried, got %d calls", calls)
	}
}

func TestFixedRetryConfig_ZeroMeansOneAttempt(t *testing.T) {
	if cfg := FixedRetryConfig(0, time.Second); cfg.MaxAttempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", cfg.MaxAttempts)
	}
}

func TestRetry_StopsWhenRetryIfRejects(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := RetryConfig{MaxAttempts: 5, Backoff: FixedBackoff(0), RetryIf: func(err error) bool {
		return !errors.Is(err, permanent)
	}}
	calls := 0
	err := RetryFunc(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if calls != 1 || !errors.Is(err, permanent) {
		t.Fatalf("expected one call with permanent error, got %d calls, %v", calls, err)
	}
}

func TestRetry_CancelDuringWaitStopsNewAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := FixedRetryConfig(5, time.Hour)
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	calls := 0
	boom := errors.New("boom")
	err := RetryFunc(ctx, cfg, func() error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) || !errors.Is(err, boom) {
		t.Fatalf("expected joined boom and canceled, got %v", err)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2}
	calls := 0
	result, err := Retry(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return calls, nil
	})
	if err != nil || result != 3 {
		t.Fatalf("expected success on third attempt, got %d, %v", result, err)
	}
}

func TestExponentialBackoffIsCapped(t *testing.T) {
	b := exponential(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffFactor: 2})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{8, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := b(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}
