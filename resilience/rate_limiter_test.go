package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowConsumesBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2})
	rl.now = func() time.Time { return rl.lastRefill }

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("expected burst of 2 to be allowed")
	}
	if rl.Allow() {
		t.Fatal("expected third call to be limited")
	}
}

func TestRateLimiter_WaitReturnsWhenTokenAvailable(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 1})
	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("expected immediate token, got %v", err)
	}
	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("expected token after short wait, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected wait well under a second at 1000/s")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	var limited bool
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1, OnLimit: func(string, time.Duration) { limited = true }})
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !limited {
		t.Fatal("expected OnLimit to fire")
	}
}
