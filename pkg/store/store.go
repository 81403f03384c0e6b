// Package store owns the persistent-storage connection.
//
// A Handle only exists after the database has been reached and its schema
// migrated. Open fails fast and never retries: callers are expected to abort
// startup on error rather than reuse a half-initialized store.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chiraitori/spoticord/internal/logger"
)

// Handle is a live, migrated database connection.
type Handle interface {
	// DB returns the GORM connection for the command layer.
	DB() *gorm.DB

	// Healthcheck pings the database.
	Healthcheck(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// GORMStore implements Handle on top of GORM.
// It supports both SQLite and PostgreSQL backends.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// Open connects to the configured database and brings its schema up to date.
//
// PostgreSQL schemas are managed by the versioned SQL migrations embedded in
// this package; SQLite schemas are managed by GORM AutoMigrate.
func Open(ctx context.Context, config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		path := config.SQLite.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL for concurrent readers; wait up to 5s when the file is locked.
		dialector = sqlite.Open(path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")

	case DatabaseTypePostgres:
		if err := RunMigrations(ctx, &config.Postgres); err != nil {
			return nil, err
		}
		dialector = postgres.Open(config.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	if config.Type == DatabaseTypePostgres {
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	} else {
		// A single writer avoids SQLITE_BUSY and keeps :memory: databases shared.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Type == DatabaseTypeSQLite {
		if err := db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}

	logger.Info("Database ready", "type", config.Type)

	return &GORMStore{db: db, config: config}, nil
}

// DB returns the underlying GORM database connection.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Healthcheck pings the database.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Opener opens a store from a fixed configuration.
type Opener struct {
	Config *Config
}

// Open connects and migrates. It satisfies the orchestrator's store opener.
func (o Opener) Open(ctx context.Context) (Handle, error) {
	s, err := Open(ctx, o.Config)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var _ Handle = (*GORMStore)(nil)
