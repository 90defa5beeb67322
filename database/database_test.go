package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/kbukum/orchestrator/component"
	apperrors "github.com/kbukum/orchestrator/errors"
	"github.com/kbukum/orchestrator/logger"
)

type note struct {
	ID   uint `gorm:"primaryKey"`
	Text string
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"disabled skips checks", Config{Driver: "oracle"}, ""},
		{"sqlite defaults", Config{Enabled: true}, ""},
		{"postgres needs dsn", Config{Enabled: true, Driver: DriverPostgres}, "dsn is required"},
		{"unknown driver", Config{Enabled: true, Driver: "oracle", DSN: "x"}, "unsupported driver"},
		{"bad duration", Config{Enabled: true, ConnMaxLifetime: "forever"}, "conn_max_lifetime"},
		{"idle above open", Config{Enabled: true, MaxOpenConns: 2, MaxIdleConns: 3}, "max_idle_conns"},
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

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewComponent(Config{Enabled: true, DSN: ":memory:", AutoMigrate: true}, logger.NewNop()).
		WithAutoMigrate(&note{})

	if c.DB() != nil {
		t.Fatalf("expected nil DB before Start")
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer c.Stop(ctx) //nolint:errcheck

	if h := c.Health(ctx); h.Status != component.StatusHealthy {
		t.Fatalf("expected healthy, got %+v", h)
	}

	db := c.DB()
	err := db.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&note{Text: "hello"}).Error
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	var got note
	if err := db.WithContext(ctx).First(&got).Error; err != nil || got.Text != "hello" {
		t.Fatalf("expected stored note, got %+v (%v)", got, err)
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
}

func TestDisabledComponent(t *testing.T) {
	c := NewComponent(Config{}, logger.NewNop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h := c.Health(context.Background()); h.Message != "disabled" {
		t.Fatalf("expected disabled health, got %+v", h)
	}
}

func TestFromDatabase(t *testing.T) {
	tests := []struct {
		err  error
		code apperrors.ErrorCode
	}{
		{gorm.ErrRecordNotFound, apperrors.ErrCodeNotFound},
		{gorm.ErrDuplicatedKey, apperrors.ErrCodeAlreadyExists},
		{errors.New("dial tcp: connection refused"), apperrors.ErrCodeServiceUnavailable},
		{errors.New("syntax error"), apperrors.ErrCodeDatabaseError},
	}
	for _, tt := range tests {
		if got := FromDatabase(tt.err, "run"); got.Code != tt.code {
			t.Fatalf("%v: expected %s, got %s", tt.err, tt.code, got.Code)
		}
	}
	if FromDatabase(nil, "run") != nil {
		t.Fatalf("expected nil for nil error")
	}
}
