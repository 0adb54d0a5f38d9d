package store

import (
	"database/sql"
	"testing"
)

// testDB opens an ephemeral in-memory database with the full schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func int64Ptr(v int64) *int64 {
	return &v
}
