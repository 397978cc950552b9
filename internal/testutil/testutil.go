// Package testutil provides shared helpers for integration tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/database"
	"github.com/castarr/castarr/internal/store"
)

// TestDB wraps a migrated throwaway database.
type TestDB struct {
	DB     *database.DB
	Store  *store.Store
	Logger zerolog.Logger
}

// NewTestDB creates a migrated database in a per-test temp directory. The
// directory is cleaned up automatically; the caller should defer Close().
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := NewTestLogger(t)

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return &TestDB{
		DB:     db,
		Store:  store.New(db.Conn()),
		Logger: logger,
	}
}

// Close closes the database connection.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// NewTestLogger creates a logger that writes through t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
