package db

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory SQLite database with the backend schema applied.
func NewTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db := openMemory(t)
	if err := Migrate(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}
	return db
}

// NewTestStateDB creates an in-memory client state database.
func NewTestStateDB(t testing.TB) *sql.DB {
	t.Helper()

	db := openMemory(t)
	if err := EnsureStateSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test state schema: %v", err)
	}
	return db
}

func openMemory(t testing.TB) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	// Every pooled connection to ":memory:" would get its own empty database.
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })
	return db
}
