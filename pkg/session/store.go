package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config contains session database configuration.
type Config struct {
	// Path is the path to the SQLite database file. Unlike the task
	// database it survives restarts.
	Path string
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("session database path is required")
	}
	return nil
}

// Store keeps drive account sessions on disk and the active one in
// memory. The in-memory session is guarded by a reader-writer lock;
// writes happen only during login, token refresh, or account switches.
type Store struct {
	db     *gorm.DB
	config *Config

	mu       sync.RWMutex
	active   Session
	tempRoot string
}

// New opens the session database, creating the schema when absent, and
// loads the current user's session into memory if one is set.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("session store config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session store configuration: %w", err)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := config.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Suppress GORM logs by default
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Session{}, &CurrentUser{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	store := &Store{
		db:     db,
		config: config,
	}

	if _, err := store.Load(context.Background()); err != nil && !errors.Is(err, ErrNoCurrentUser) {
		return nil, fmt.Errorf("failed to load current session: %w", err)
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

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}
