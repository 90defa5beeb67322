package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBulkhead_CapsConcurrency(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "activities", MaxConcurrent: 2})

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func() error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent holders, saw %d", peak.Load())
	}
	if b.InUse() != 0 {
		t.Fatalf("expected all slots released, got %d in use", b.InUse())
	}
}

func TestBulkhead_AcquireBlocksUntilContextDone(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	release, err := b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected first acquire to succeed, got %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBulkhead_MaxWait(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	release, _ := b.Acquire(context.Background())
	defer release()

	if _, err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadTimeout) {
		t.Fatalf("expected ErrBulkheadTimeout, got %v", err)
	}
}

func TestBulkhead_Hooks(t *testing.T) {
	var acquired, released int
	b := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 3,
		OnAcquire:     func(string, int) { acquired++ },
		OnRelease:     func(string, int) { released++ },
	})
	_ = b.Execute(context.Background(), func() error { return nil })
	if acquired != 1 || released != 1 {
		t.Fatalf("expected 1 acquire and 1 release, got %d/%d", acquired, released)
	}
	if b.MaxConcurrent() != 3 {
		t.Fatalf("expected cap 3, got %d", b.MaxConcurrent())
	}
}
