package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/orchestrator/logger"
)

// DB wraps a GORM database.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config

	mu     sync.Mutex
	closed bool
}

// Dialector returns the GORM dialector for cfg.Driver.
func Dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
}

// Open connects with linear backoff between attempts and configures the pool.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	slow, _ := time.ParseDuration(cfg.SlowQueryThreshold)
	gormCfg := &gorm.Config{Logger: newGormLogger(log, slow, parseLogLevel(cfg.LogLevel))}

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("database connection canceled: %w", ctx.Err())
		}

		var db *gorm.DB
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			if err = configurePool(ctx, db, cfg); err == nil {
				log.Info("database connection established", logger.Fields("driver", cfg.Driver, logger.FieldAttempt, attempt))
				return &DB{GormDB: db, log: log, cfg: cfg}, nil
			}
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(attempt) * time.Second
			log.Warn("database connection attempt failed, retrying", logger.MergeWithError(
				logger.Fields(logger.FieldAttempt, attempt, "backoff", backoff.String()), err))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("database connection canceled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("database: connect after %d attempts: %w", cfg.MaxRetries, err)
}

func configurePool(ctx context.Context, db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if cfg.Driver == DriverSQLite {
		// A single writer avoids "database is locked" under concurrent appends.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d, err := time.ParseDuration(cfg.ConnMaxIdleTime); err == nil {
		sqlDB.SetConnMaxIdleTime(d)
	}
	return nil
}

// Close closes the pool. Safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.closed = true
	d.log.Info("closing database connection")
	return sqlDB.Close()
}

// PingContext verifies the connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a GORM session scoped to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// AutoMigrate migrates each model in turn.
func (d *DB) AutoMigrate(models ...any) error {
	for _, m := range models {
		if err := d.GormDB.AutoMigrate(m); err != nil {
			return fmt.Errorf("database: migrate %T: %w", m, err)
		}
	}
	d.log.Info("auto-migration completed", logger.Fields("models", len(models)))
	return nil
}

// Transaction runs fn in a transaction bound to ctx.
func (d *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.GormDB.WithContext(ctx).Transaction(fn)
}
