// Package testutil provides shared fixtures for tests that exercise more than
// one package: a migrated run history database and bike sharing archives.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/sharing-ingest/internal/storage"
)

// TestDB is a migrated in-memory run history store closed with the test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// RunCount returns the number of recorded runs.
func (db *TestDB) RunCount() int {
	db.t.Helper()
	runs, err := db.Storage.ListRuns(context.Background(), 1000)
	if err != nil {
		db.t.Fatalf("failed to list runs: %v", err)
	}
	return len(runs)
}
