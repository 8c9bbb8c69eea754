package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/noteservice"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// Gists is the gist surface the Sharer needs.
type Gists interface {
	Create(ctx context.Context, filename, content, description string, public bool) (Gist, error)
	Update(ctx context.Context, id, filename, content string) error
	Delete(ctx context.Context, id string) error
}

// ShareResult describes a published note.
type ShareResult struct {
	Gist
	// Created is false when an existing gist was updated.
	Created bool `json:"created"`
}

// Sharer publishes notes as gists and records the gist on the note.
type Sharer struct {
	notes  *noteservice.Service
	gists  Gists
	logger *slog.Logger
}

// NewSharer creates a Sharer.
func NewSharer(notes *noteservice.Service, gists Gists, logger *slog.Logger) *Sharer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sharer{notes: notes, gists: gists, logger: logger}
}

// Share publishes the note's Markdown. A note already shared has its gist
// updated; when that gist no longer exists the stale id is cleared and a
// new gist is created.
func (s *Sharer) Share(ctx context.Context, name string, public bool) (ShareResult, error) {
	n, ok, err := s.notes.FindByName(ctx, name)
	if err != nil {
		return ShareResult{}, err
	}
	if !ok {
		return ShareResult{}, fmt.Errorf("note %q: %w", name, apperr.ErrNotFound)
	}
	md, err := noteservice.Markdown(n)
	if err != nil {
		return ShareResult{}, err
	}
	filename := FileName(n.Name, ".md")

	if n.GistID != "" {
		err := s.gists.Update(ctx, n.GistID, filename, md)
		if err == nil {
			return ShareResult{Gist: Gist{ID: n.GistID, URL: n.GistURL}}, nil
		}
		if !errors.Is(err, apperr.ErrGistNotFound) {
			return ShareResult{}, err
		}
		s.logger.Info("share: recorded gist is gone, recreating",
			slog.String("note", n.Name), slog.String("gist", n.GistID))
		if _, err := s.notes.SetGist(ctx, n.Name, "", ""); err != nil {
			return ShareResult{}, err
		}
	}

	g, err := s.gists.Create(ctx, filename, md, n.Name, public)
	if err != nil {
		return ShareResult{}, err
	}
	if _, err := s.notes.SetGist(ctx, n.Name, g.ID, g.URL); err != nil {
		return ShareResult{}, err
	}
	return ShareResult{Gist: g, Created: true}, nil
}

// Unshare deletes the note's gist and clears the record. A gist already
// deleted remotely only has its record cleared.
func (s *Sharer) Unshare(ctx context.Context, name string) error {
	n, ok, err := s.notes.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("note %q: %w", name, apperr.ErrNotFound)
	}
	if n.GistID == "" {
		return fmt.Errorf("note %q is not shared: %w", n.Name, apperr.ErrGistNotFound)
	}
	if err := s.gists.Delete(ctx, n.GistID); err != nil && !errors.Is(err, apperr.ErrGistNotFound) {
		return err
	}
	_, err = s.notes.SetGist(ctx, n.Name, "", "")
	return err
}

// CopyURL puts url on the system clipboard.
func CopyURL(url string) error {
	if err := writeClipboard(url); err != nil {
		return fmt.Errorf("share: copy to clipboard: %w", err)
	}
	return nil
}
