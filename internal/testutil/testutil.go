package testutil

import (
	"path/filepath"
	"testing"

	"github.com/peircecrit/peirce/internal/store"
)

// SetupTestStore opens a threshold cache in t.TempDir() and closes it when the test ends.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}
