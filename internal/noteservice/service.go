// Package noteservice implements note CRUD on top of the shared store.
package noteservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/richtext"
	"github.com/starford/xnote/internal/store"
)

// Service coordinates note operations. Each call is one load-mutate-save
// cycle on the store.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// NewService creates a new note service.
func NewService(st *store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Store returns the underlying store.
func (s *Service) Store() *store.Store {
	return s.store
}

// CreateOrReplace writes a note, replacing any note with the same
// case-insensitive name at its existing position.
func (s *Service) CreateOrReplace(_ context.Context, name, content string, isMarkdown bool) (*models.Note, error) {
	return s.put(name, content, isMarkdown, true)
}

// Create is CreateOrReplace that refuses to overwrite unless force is set.
// The existence check and the write happen in the same update cycle.
func (s *Service) Create(_ context.Context, name, content string, force bool) (*models.Note, error) {
	return s.put(name, content, true, force)
}

// Put is the general form of Create and CreateOrReplace.
func (s *Service) Put(_ context.Context, name, content string, isMarkdown, overwrite bool) (*models.Note, error) {
	return s.put(name, content, isMarkdown, overwrite)
}

func (s *Service) put(name, content string, isMarkdown, overwrite bool) (*models.Note, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("noteservice: note name is required")
	}
	note := models.Note{
		Name:        name,
		RichContent: content,
		UpdatedAt:   s.now().UnixMilli(),
	}
	if isMarkdown {
		note.RichContent = richtext.FromMarkdown(content)
		note.MDContent = content
	}

	_, err := s.store.Update(func(doc *store.Document) error {
		notes, err := doc.Notes()
		if err != nil {
			return err
		}
		if i := indexOf(notes, name); i >= 0 {
			if !overwrite {
				return fmt.Errorf("note %q: %w", notes[i].Name, apperr.ErrAlreadyExists)
			}
			notes[i] = note
		} else {
			notes = append(notes, note)
		}
		return doc.SetNotes(notes)
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// FindByName returns the note whose name matches case-insensitively.
// Absence is reported by the boolean, not an error.
func (s *Service) FindByName(_ context.Context, name string) (models.Note, bool, error) {
	notes, err := s.load()
	if err != nil {
		return models.Note{}, false, err
	}
	if i := indexOf(notes, name); i >= 0 {
		return notes[i], true, nil
	}
	return models.Note{}, false, nil
}

// ListAll returns every note in storage order.
func (s *Service) ListAll(_ context.Context) ([]models.Note, error) {
	return s.load()
}

// Similar returns up to limit notes whose names loosely match name: the note
// name contains the query, or the query contains the note name's first word.
func (s *Service) Similar(ctx context.Context, name string, limit int) ([]models.Note, error) {
	notes, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return similar(notes, name, limit), nil
}

// Delete removes the named note.
func (s *Service) Delete(_ context.Context, name string) error {
	_, err := s.store.Update(func(doc *store.Document) error {
		notes, err := doc.Notes()
		if err != nil {
			return err
		}
		i := indexOf(notes, name)
		if i < 0 {
			return fmt.Errorf("note %q: %w", name, apperr.ErrNotFound)
		}
		notes = append(notes[:i], notes[i+1:]...)
		return doc.SetNotes(notes)
	})
	return err
}

// SetGist records (or, with empty id, clears) the gist a note is shared as.
// The note's content and timestamp are left alone.
func (s *Service) SetGist(_ context.Context, name, id, url string) (*models.Note, error) {
	var out models.Note
	_, err := s.store.Update(func(doc *store.Document) error {
		notes, err := doc.Notes()
		if err != nil {
			return err
		}
		i := indexOf(notes, name)
		if i < 0 {
			return fmt.Errorf("note %q: %w", name, apperr.ErrNotFound)
		}
		notes[i].GistID = id
		notes[i].GistURL = url
		out = notes[i]
		return doc.SetNotes(notes)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Markdown returns the note as Markdown: the recorded source when there is
// one, otherwise a conversion of the rich HTML.
func Markdown(n models.Note) (string, error) {
	if strings.TrimSpace(n.MDContent) != "" {
		return n.MDContent, nil
	}
	return richtext.ToMarkdown(n.RichContent)
}

func (s *Service) load() ([]models.Note, error) {
	doc, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Notes()
}

func indexOf(notes []models.Note, name string) int {
	for i, n := range notes {
		if strings.EqualFold(n.Name, name) {
			return i
		}
	}
	return -1
}

func similar(notes []models.Note, name string, limit int) []models.Note {
	query := strings.ToLower(name)
	var out []models.Note
	for _, n := range notes {
		if limit > 0 && len(out) >= limit {
			break
		}
		lower := strings.ToLower(n.Name)
		firstWord, _, _ := strings.Cut(lower, " ")
		if strings.Contains(lower, query) || strings.Contains(query, firstWord) {
			out = append(out, n)
		}
	}
	return out
}
