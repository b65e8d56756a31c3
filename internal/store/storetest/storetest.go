// Package storetest opens throwaway migrated databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"membership/internal/store"
)

// SQLite returns a migrated SQLite database that lives for the duration of the test.
func SQLite(tb testing.TB) *store.DB {
	tb.Helper()
	db, err := store.Open(context.Background(), "sqlite", filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}
