// Package testutil provides shared test helpers for notebooks, run
// directories and the history ledger.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/nbexec/internal/history"
	"github.com/starford/nbexec/internal/models"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestHistory creates a temporary run ledger that is automatically closed.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteNotebook encodes nb as name in a fresh directory and returns its path.
func WriteNotebook(t *testing.T, name string, nb *models.Notebook) string {
	t.Helper()
	data, err := nb.Encode()
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// ReadNotebook decodes the notebook at path.
func ReadNotebook(t *testing.T, path string) *models.Notebook {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	nb, err := models.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return nb
}
