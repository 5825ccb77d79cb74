package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestQuery creates a successful query record with minimal fields.
func createTestQuery(id, question string, created time.Time) Query {
	return Query{
		ID:         id,
		Question:   question,
		Status:     StatusOK,
		SQL:        "SELECT parks.name FROM parks;",
		LayerCount: 1,
		CreatedAt:  created,
	}
}

// getTableIndexes lists the index names of a table.
func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ?", table)
	if err != nil {
		t.Fatalf("failed to list indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
