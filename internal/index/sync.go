package index

import (
	"fmt"
	"log/slog"

	"github.com/starford/xnote/internal/checksum"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/parser"
	"github.com/starford/xnote/internal/store"
)

// Sync brings the index up to date with notes:
//   - new/changed notes are parsed and upserted
//   - notes no longer present are deleted from the index
//
// It returns the number of index mutations.
func Sync(db *DB, notes []models.Note, logger *slog.Logger) (int, error) {
	checksums, err := db.AllChecksums()
	if err != nil {
		return 0, err
	}

	changed := 0
	present := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		key := Key(n.Name)
		present[key] = struct{}{}

		cs, err := noteChecksum(n)
		if err != nil {
			logger.Warn("sync: checksum failed", slog.String("name", n.Name), slog.String("error", err.Error()))
			continue
		}
		if checksums[key] == cs {
			continue
		}
		if err := indexNote(db, n, cs); err != nil {
			logger.Warn("sync: index failed", slog.String("name", n.Name), slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: indexed", slog.String("name", n.Name))
	}

	for key := range checksums {
		if _, ok := present[key]; ok {
			continue
		}
		if err := db.DeleteNote(key); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("sync: removed stale", slog.String("key", key))
	}

	return changed, nil
}

// SyncStore loads the store and syncs the index against its notes.
func SyncStore(db *DB, st *store.Store, logger *slog.Logger) (int, error) {
	doc, err := st.Load()
	if err != nil {
		return 0, err
	}
	notes, err := doc.Notes()
	if err != nil {
		return 0, fmt.Errorf("index: read notes: %w", err)
	}
	return Sync(db, notes, logger)
}

func noteChecksum(n models.Note) (string, error) {
	return checksum.JSON(n)
}

// indexNote parses the note's Markdown and upserts it.
func indexNote(db *DB, n models.Note, cs string) error {
	md, err := noteservice.Markdown(n)
	if err != nil {
		return err
	}
	res := parser.Parse(md)
	row := NoteRow{
		Name:      n.Name,
		Checksum:  cs,
		Tags:      res.Tags,
		UpdatedAt: n.Updated(),
	}
	return db.UpsertNote(row, res.Body, res.Links)
}
