package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains task database configuration.
type Config struct {
	// Path is the path to the SQLite database file.
	Path string

	// Resume keeps rows from the previous run instead of truncating the
	// table on open. Rows left in flight are reset to StatusWaiting so
	// the scheduler dispatches them again.
	Resume bool
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("task database path is required")
	}
	return nil
}

// Store is the persistent task queue, backed by SQLite via GORM.
type Store struct {
	db     *gorm.DB
	config *Config
}

// New opens the task database, creating the schema when absent. By
// default the table is emptied on open (tasks do not carry across
// runs); with Config.Resume set, rows are kept and in-flight ones are
// reset to StatusWaiting.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("task store config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task store configuration: %w", err)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// SQLite pragmas for better concurrent access:
	// - journal_mode(WAL): Write-Ahead Logging for concurrent readers/single writer
	// - busy_timeout(5000): Wait up to 5 seconds when database is locked
	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Suppress GORM logs by default
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Task{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	store := &Store{
		db:     db,
		config: config,
	}

	if config.Resume {
		if _, err := store.ResetStale(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to reset stale tasks: %w", err)
		}
	} else {
		if err := store.Truncate(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to truncate task table: %w", err)
		}
	}

	return store, nil
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Healthcheck verifies the database connection is alive.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
