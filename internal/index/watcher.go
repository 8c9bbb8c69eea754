package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/xnote/internal/store"
)

const debounce = 200 * time.Millisecond

// ChangeCallback is called after a watcher-driven resync that changed the
// index. changed is the number of notes upserted or removed.
type ChangeCallback func(changed int)

// Watch watches the store file's directory and resyncs the index whenever
// the store file is replaced or rewritten, until ctx is cancelled. Bursts of
// events are debounced. The directory is watched rather than the file because
// atomic saves replace the file's inode.
func Watch(ctx context.Context, db *DB, st *store.Store, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := st.Path()
	dir := filepath.Dir(target)
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", target))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			changed, err := SyncStore(db, st, logger)
			if err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: resynced", slog.Int("changed", changed))
			if changed > 0 && cb != nil {
				cb(changed)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
