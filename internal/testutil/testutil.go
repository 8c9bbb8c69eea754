// Package testutil provides shared test helpers for data directories, stores and index databases.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/storage"
	"github.com/starford/xnote/internal/store"
)

// Logger returns a logger that only reports errors, keeping test output quiet.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestDB creates a temporary SQLite index database that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir creates a temporary data directory with a storage provider.
func TestDataDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// TestStore creates a store over a fresh temporary data directory.
func TestStore(t *testing.T) (string, *store.Store) {
	t.Helper()
	dir, fs := TestDataDir(t)
	return dir, store.New(fs, Logger())
}
