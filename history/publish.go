package history

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kbukum/orchestrator/logger"
)

// Publisher sends one keyed message. The Kafka producer implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// DefaultPublishQueue bounds events waiting to be published.
const DefaultPublishQueue = 1024

// PublishingBackend appends to an inner backend and then streams the event,
// keyed by run id, to a Publisher. Publishing happens on a background
// goroutine in append order; failures and a full queue are logged and never
// fail the append.
type PublishingBackend struct {
	Backend
	pub Publisher
	log *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

var _ Backend = (*PublishingBackend)(nil)

// NewPublishingBackend starts the publishing goroutine; Close stops it.
func NewPublishingBackend(inner Backend, pub Publisher, queueSize int, log *logger.Logger) *PublishingBackend {
	if queueSize <= 0 {
		queueSize = DefaultPublishQueue
	}
	b := &PublishingBackend{
		Backend: inner,
		pub:     pub,
		log:     log.WithComponent("history.publisher"),
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *PublishingBackend) Append(ctx context.Context, ev *Event) error {
	if err := b.Backend.Append(ctx, ev); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	select {
	case b.queue <- *ev:
	default:
		b.log.Warn("publish queue full, dropping history event", logger.Fields(
			logger.FieldRunID, ev.RunID, "kind", string(ev.Kind), "seq", ev.Seq))
	}
	return nil
}

func (b *PublishingBackend) loop() {
	defer close(b.done)
	for ev := range b.queue {
		value, err := json.Marshal(ev)
		if err != nil {
			b.log.Error("encode history event", logger.MergeWithError(logger.Fields(logger.FieldRunID, ev.RunID), err))
			continue
		}
		if err := b.pub.Publish(context.Background(), ev.RunID, value); err != nil {
			b.log.Warn("publish history event failed", logger.MergeWithError(logger.Fields(
				logger.FieldRunID, ev.RunID, "kind", string(ev.Kind), "seq", ev.Seq), err))
		}
	}
}

// Close stops accepting events and drains the queue, waiting until ctx ends.
// Later appends are stored but not published.
func (b *PublishingBackend) Close(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
