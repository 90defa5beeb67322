package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"disabled", Config{}, ""},
		{"defaults", Config{Enabled: true}, ""},
		{"bad timeout", Config{Enabled: true, WriteTimeout: "later"}, "write_timeout"},
		{"bad sasl", Config{Enabled: true, EnableSASL: true, SASLMechanism: "MD5", Username: "u"}, "unsupported SASL"},
		{"sasl without user", Config{Enabled: true, EnableSASL: true}, "username is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveCompression(t *testing.T) {
	tests := map[string]kafkago.Compression{
		"gzip":   kafkago.Gzip,
		"snappy": kafkago.Snappy,
		"zstd":   kafkago.Zstd,
		"none":   0,
		"bogus":  0,
	}
	for name, want := range tests {
		if got := ResolveCompression(name); got != want {
			t.Fatalf("%s: expected %v, got %v", name, want, got)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(errors.New("[6] Not Leader For Partition")) {
		t.Fatalf("expected leader change to be retryable")
	}
	if IsRetryableError(context.Canceled) {
		t.Fatalf("expected cancellation not to be retryable")
	}
	if IsRetryableError(errors.New("message too large")) {
		t.Fatalf("expected size error not to be retryable")
	}
}

type stubProducer struct{ closed bool }

func (s *stubProducer) Close() error           { s.closed = true; return nil }
func (s *stubProducer) Metrics() WriterMetrics { return WriterMetrics{Messages: 3} }

func TestComponentClosesProducer(t *testing.T) {
	c := NewComponent(Config{Enabled: true}, logger.NewNop())
	p := &stubProducer{}
	c.SetProducer(p)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if d := c.Describe(); !strings.Contains(d.Details, "messages=3") {
		t.Fatalf("expected producer metrics in description, got %q", d.Details)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !p.closed {
		t.Fatalf("expected producer to be closed")
	}
}

func TestDisabledComponentHealth(t *testing.T) {
	c := NewComponent(Config{}, logger.NewNop())
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Fatalf("unexpected health: %+v", h)
	}
}
