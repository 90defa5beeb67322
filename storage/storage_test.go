package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/kbukum/orchestrator/component"
	"github.com/kbukum/orchestrator/logger"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"local defaults", Config{}, ""},
		{"s3 ok", Config{Provider: ProviderS3, Bucket: "b"}, ""},
		{"s3 without bucket", Config{Provider: ProviderS3}, "bucket is required"},
		{"s3 half credentials", Config{Provider: ProviderS3, Bucket: "b", AccessKey: "k"}, "must be set together"},
		{"unknown provider", Config{Provider: "ftp"}, "unsupported provider"},
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

func TestNewUnregisteredProvider(t *testing.T) {
	// No backend package is imported here, so nothing is registered.
	_, err := New(Config{Provider: ProviderS3, Bucket: "b"}, logger.NewNop())
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected not registered error, got %v", err)
	}
}

func TestDisabledComponent(t *testing.T) {
	c := NewComponent(Config{}, logger.NewNop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Storage() != nil {
		t.Fatalf("expected no storage when disabled")
	}
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Fatalf("unexpected health: %+v", h)
	}
}
