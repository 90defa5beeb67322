// Package producer publishes run history events to Kafka.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/orchestrator/kafka"
	"github.com/kbukum/orchestrator/logger"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("kafka producer is closed")

// Writer is the subset of *kafkago.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

// Producer writes keyed JSON messages to the configured topic, retrying
// transient broker errors.
type Producer struct {
	cfg    kafka.Config
	log    *logger.Logger
	writer Writer

	mu     sync.RWMutex
	closed bool
}

// New validates cfg and builds a kafka-go writer for it.
func New(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport, err := kafka.CreateTransport(&cfg)
	if err != nil {
		return nil, err
	}

	l := log.WithComponent("kafka.producer")
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Transport:              transport,
		Balancer:               &kafkago.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           kafka.ParseDuration(cfg.BatchTimeout),
		RequiredAcks:           kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:            kafka.ResolveCompression(cfg.Compression),
		WriteTimeout:           kafka.ParseDuration(cfg.WriteTimeout),
		AllowAutoTopicCreation: true,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			l.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}
	l.Info("kafka producer initialized", logger.Fields("brokers", cfg.Brokers, "topic", cfg.Topic, "compression", cfg.Compression))
	return NewWithWriter(cfg, w, log), nil
}

// NewWithWriter builds a producer around an existing writer.
func NewWithWriter(cfg kafka.Config, w Writer, log *logger.Logger) *Producer {
	cfg.ApplyDefaults()
	return &Producer{cfg: cfg, log: log.WithComponent("kafka.producer"), writer: w}
}

// Publish writes value under key. Messages with the same key land on the same
// partition, so one run's events stay ordered.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	msg := kafkago.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kafkago.Header{{Key: "content-type", Value: []byte("application/json")}},
		Time:    time.Now().UTC(),
	}

	var err error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		if err = p.writer.WriteMessages(ctx, msg); err == nil {
			return nil
		}
		if !kafka.IsRetryableError(err) || attempt == p.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("kafka publish %s: %w", key, err)
}

// Metrics reports writer statistics.
func (p *Producer) Metrics() kafka.WriterMetrics {
	return kafka.CollectWriterMetrics(p.writer.Stats())
}

// Close flushes and closes the writer. Safe to call more than once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("kafka producer closing")
	return p.writer.Close()
}
