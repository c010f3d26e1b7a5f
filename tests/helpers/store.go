// Package helpers provides test utilities.
package helpers

import (
	"testing"

	"github.com/agent-hr/agenthr/internal/store"
)

// NewTestStore creates an in-memory SQLite store for testing.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}
