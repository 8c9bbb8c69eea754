package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/checksum"
	"github.com/starford/xnote/internal/storage"
)

// FileName is the store file inside the data directory.
const FileName = "data.json"

// Store performs load/save cycles over the shared document. It holds no
// state between calls; every operation reads the file afresh. Writes from
// one process are serialized so a compare and its rename cannot interleave.
type Store struct {
	mu     sync.Mutex
	fs     storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// New creates a store over the given data-directory provider.
func New(fs storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: fs, logger: logger, now: time.Now}
}

// Path returns the absolute path of the store file.
func (s *Store) Path() string {
	p, _ := s.fs.Abs(FileName)
	return p
}

// Load reads the document. A missing or unparseable file yields the empty
// default; an unparseable one is first copied aside so a later save cannot
// destroy it. Other read errors are returned.
func (s *Store) Load() (*Document, error) {
	data, err := s.fs.Read(FileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("store: load: %w", err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.Warn("store: unparseable data file, starting fresh",
			slog.String("path", s.Path()),
			slog.String("error", err.Error()))
		s.backupCorrupt(data)
		doc = NewDocument()
	}
	doc.checksum = checksum.Sum(data)
	return doc, nil
}

// Save writes doc unconditionally (last writer wins).
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(doc)
}

// SaveIfMatch writes doc only when the file on disk still has the expected
// checksum ("" meaning the file must not exist). Otherwise it returns
// apperr.ErrConflict and writes nothing.
func (s *Store) SaveIfMatch(doc *Document, expected string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIfMatch(doc, expected)
}

func (s *Store) saveIfMatch(doc *Document, expected string) error {
	current, err := s.currentChecksum()
	if err != nil {
		return err
	}
	if current != expected {
		return fmt.Errorf("store: document changed on disk: %w", apperr.ErrConflict)
	}
	return s.write(doc)
}

// Update runs a load → fn → save cycle. If another process rewrote the file
// after the load, the save is refused with apperr.ErrConflict. An error from
// fn aborts the cycle without writing. fn must not call back into the store.
func (s *Store) Update(fn func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.saveIfMatch(doc, doc.checksum); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) write(doc *Document) error {
	data, err := doc.encode()
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	if err := s.fs.Write(FileName, data); err != nil {
		return fmt.Errorf("store: save: %w", err)
	}
	doc.checksum = checksum.Sum(data)
	return nil
}

func (s *Store) currentChecksum() (string, error) {
	data, err := s.fs.Read(FileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("store: read for compare: %w", err)
	}
	return checksum.Sum(data), nil
}

func (s *Store) backupCorrupt(data []byte) {
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	name := FileName + ".corrupt-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.fs.Write(name, data); err != nil {
		s.logger.Error("store: backup of corrupt data file failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Warn("store: corrupt data file backed up", slog.String("backup", name))
}
