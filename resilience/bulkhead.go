package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrBulkheadTimeout is returned when MaxWait elapses before a slot frees up.
var ErrBulkheadTimeout = errors.New("bulkhead wait timeout")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent holders.
	MaxConcurrent int
	// MaxWait bounds how long Acquire blocks. Zero waits until ctx ends.
	MaxWait time.Duration
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string, inUse int)
	// OnRelease is called when a slot is released.
	OnRelease func(name string, inUse int)
}

// Bulkhead caps concurrency with a buffered channel used as a semaphore.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire blocks until a slot is free and returns the function that releases it.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name, len(b.sem))
	}
	return func() {
		<-b.sem
		if b.config.OnRelease != nil {
			b.config.OnRelease(b.config.Name, len(b.sem))
		}
	}, nil
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	release, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if b.config.MaxWait > 0 {
		timer := time.NewTimer(b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timeout:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent returns the configured cap.
func (b *Bulkhead) MaxConcurrent() int {
	return b.config.MaxConcurrent
}
