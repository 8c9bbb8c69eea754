package index

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/storage"
	"github.com/starford/xnote/internal/store"
)

func watcherTestEnv(t *testing.T) (*store.Store, *DB) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store.New(fs, quietLogger()), testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func putNotes(t *testing.T, st *store.Store, notes ...models.Note) {
	t.Helper()
	if _, err := st.Update(func(doc *store.Document) error {
		return doc.SetNotes(notes)
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestWatcher_StoreWriteResyncs(t *testing.T) {
	st, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, db, st, quietLogger(), func(int) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	putNotes(t, st, models.Note{Name: "New", MDContent: "# New", UpdatedAt: 1})

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new")
		return cs != ""
	}, "new note not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return calls.Load() > 0
	}, "expected change callback")
}

func TestWatcher_RemovedNoteLeavesIndex(t *testing.T) {
	st, db := watcherTestEnv(t)
	putNotes(t, st, models.Note{Name: "Keep", UpdatedAt: 1}, models.Note{Name: "Drop", UpdatedAt: 1})
	if _, err := SyncStore(db, st, quietLogger()); err != nil {
		t.Fatalf("SyncStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, st, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	putNotes(t, st, models.Note{Name: "Keep", UpdatedAt: 1})

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		dropped, _ := db.GetChecksum("drop")
		kept, _ := db.GetChecksum("keep")
		return dropped == "" && kept != ""
	}, "removed note still in index")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	st, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go Watch(ctx, db, st, quietLogger(), func(int) { calls.Add(1) })
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Dir(st.Path())
	if err := storage.WriteAtomic(filepath.Join(dir, "other.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("callback fired for unrelated file")
	}
}
