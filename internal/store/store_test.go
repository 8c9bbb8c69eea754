package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return New(fs, quietLogger()), dir
}

func writeRaw(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func decodeGeneric(t *testing.T, data []byte) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	s, _ := testStore(t)
	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	notes, err := doc.Notes()
	if err != nil {
		t.Fatalf("Notes: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("notes = %d, want 0", len(notes))
	}
	if doc.Checksum() != "" {
		t.Errorf("checksum = %q, want empty", doc.Checksum())
	}
}

func TestRoundTripPreservesContent(t *testing.T) {
	s, dir := testStore(t)
	original := `{
  "notes": [
    {"name": "A", "richContent": "<div>a</div>", "mdContent": "a", "updatedAt": 1700000000000, "pinned": true},
    {"name": "B", "richContent": "<p>b</p>", "mdContent": "", "updatedAt": 1700000000001}
  ],
  "windowBounds": {"x": 10, "y": 20, "width": 800, "height": 600},
  "uiState": {"sidebar": "collapsed", "lastOpened": "A"},
  "aiSettings": {"apiKey": "k", "systemPrompt": "p", "enableSearch": true},
  "futureKey": [1, 2, 3]
}`
	writeRaw(t, dir, original)

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(decodeGeneric(t, []byte(original)), decodeGeneric(t, saved)); diff != "" {
		t.Errorf("round trip changed content (-want +got):\n%s", diff)
	}
}

func TestNoteRoundTripKeepsUnknownFields(t *testing.T) {
	s, dir := testStore(t)
	writeRaw(t, dir, `{"notes":[{"name":"A","richContent":"","mdContent":"","updatedAt":1,"color":"red"}]}`)

	_, err := s.Update(func(doc *Document) error {
		notes, err := doc.Notes()
		if err != nil {
			return err
		}
		notes[0].MDContent = "changed"
		return doc.SetNotes(notes)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	doc, _ := s.Load()
	notes, _ := doc.Notes()
	if notes[0].MDContent != "changed" {
		t.Errorf("mdContent = %q", notes[0].MDContent)
	}
	if string(notes[0].Extra["color"]) != `"red"` {
		t.Errorf("unknown note field lost: %v", notes[0].Extra)
	}
}

func TestLoadCorruptFileBacksUpAndDefaults(t *testing.T) {
	s, dir := testStore(t)
	s.now = func() time.Time { return time.UnixMilli(1234) }
	writeRaw(t, dir, `{"notes": [ broken`)

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	notes, _ := doc.Notes()
	if len(notes) != 0 {
		t.Errorf("notes = %d, want 0", len(notes))
	}

	backup, err := os.ReadFile(filepath.Join(dir, FileName+".corrupt-1234"))
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != `{"notes": [ broken` {
		t.Errorf("backup = %q", backup)
	}
}

func TestLoadNonObjectIsTreatedAsCorrupt(t *testing.T) {
	s, dir := testStore(t)
	writeRaw(t, dir, `null`)
	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := doc.Get(KeyNotes); !ok {
		t.Error("expected default notes key")
	}
}

func TestUpdateAfterCorruptLoadSucceeds(t *testing.T) {
	s, dir := testStore(t)
	writeRaw(t, dir, `garbage`)

	_, err := s.Update(func(doc *Document) error {
		return doc.SetNotes([]models.Note{{Name: "fresh"}})
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	doc, _ := s.Load()
	notes, _ := doc.Notes()
	if len(notes) != 1 || notes[0].Name != "fresh" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestUpdateDetectsConcurrentWriter(t *testing.T) {
	s, dir := testStore(t)
	writeRaw(t, dir, `{"notes":[]}`)

	_, err := s.Update(func(doc *Document) error {
		// Another process saves between our load and our save.
		writeRaw(t, dir, `{"notes":[{"name":"other","richContent":"","mdContent":"","updatedAt":1}]}`)
		return doc.SetNotes([]models.Note{{Name: "mine"}})
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("Update error = %v, want ErrConflict", err)
	}

	doc, _ := s.Load()
	notes, _ := doc.Notes()
	if len(notes) != 1 || notes[0].Name != "other" {
		t.Errorf("external write was clobbered: %+v", notes)
	}
}

func TestConcurrentUpdatesKeepEveryWrite(t *testing.T) {
	s, _ := testStore(t)
	const writers = 16

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Update(func(doc *Document) error {
				notes, err := doc.Notes()
				if err != nil {
					return err
				}
				return doc.SetNotes(append(notes, models.Note{Name: fmt.Sprintf("note-%d", i)}))
			})
		}()
	}
	wg.Wait()

	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	notes, _ := doc.Notes()
	stored := make(map[string]bool, len(notes))
	for _, n := range notes {
		stored[n.Name] = true
	}
	for i, err := range errs {
		name := fmt.Sprintf("note-%d", i)
		switch {
		case err == nil && !stored[name]:
			t.Errorf("%s: Update succeeded but the note was lost", name)
		case err != nil && !errors.Is(err, apperr.ErrConflict):
			t.Errorf("%s: err = %v, want nil or ErrConflict", name, err)
		}
	}
}

func TestUpdateFnErrorWritesNothing(t *testing.T) {
	s, dir := testStore(t)
	boom := errors.New("boom")
	_, err := s.Update(func(doc *Document) error {
		_ = doc.Set("x", 1)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileName)); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("store file should not exist: %v", statErr)
	}
}

func TestSaveIfMatch(t *testing.T) {
	s, _ := testStore(t)
	doc, _ := s.Load()
	_ = doc.Set(KeyUIState, map[string]string{"theme": "dark"})

	if err := s.SaveIfMatch(doc, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale checksum: err = %v, want ErrConflict", err)
	}
	if err := s.SaveIfMatch(doc, ""); err != nil {
		t.Fatalf("SaveIfMatch on absent file: %v", err)
	}
	reloaded, _ := s.Load()
	if reloaded.Checksum() != doc.Checksum() {
		t.Errorf("checksum after save = %q, want %q", reloaded.Checksum(), doc.Checksum())
	}
}

type failingFS struct {
	storage.Provider
	err error
}

func (f failingFS) Write(string, []byte) error { return f.err }

func TestSaveFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	fs, _ := storage.NewFS(dir)
	writeRaw(t, dir, `{"notes":[]}`)

	diskFull := errors.New("disk full")
	s := New(failingFS{Provider: fs, err: diskFull}, quietLogger())

	_, err := s.Update(func(doc *Document) error {
		return doc.SetNotes([]models.Note{{Name: "x"}})
	})
	if !errors.Is(err, diskFull) {
		t.Fatalf("err = %v, want disk full", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, FileName))
	if string(data) != `{"notes":[]}` {
		t.Errorf("file changed after failed save: %q", data)
	}
}

func TestSavedFileIsIndented(t *testing.T) {
	s, dir := testStore(t)
	doc := NewDocument()
	if err := s.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, FileName))
	if !strings.Contains(string(data), "\n  \"notes\": []") {
		t.Errorf("unexpected layout: %q", data)
	}
}

func TestAISettingsAccessors(t *testing.T) {
	doc := NewDocument()
	got, err := doc.AISettings()
	if err != nil || got != nil {
		t.Fatalf("AISettings on empty doc = %+v, %v", got, err)
	}
	want := &models.AISettings{APIKey: "k", SystemPrompt: "p", EnableSearch: true}
	if err := doc.SetAISettings(want); err != nil {
		t.Fatal(err)
	}
	got, err = doc.AISettings()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}
