package internal

import (
	"fmt"
	"log/slog"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/share"
	"github.com/starford/xnote/internal/storage"
	"github.com/starford/xnote/internal/store"
)

// Services is the set of domain services shared by the CLI and the daemon.
type Services struct {
	FS     *storage.FS
	Store  *store.Store
	Notes  *noteservice.Service
	Images *ai.ImageStore
	AI     *ai.Service
	Gists  *share.GistClient
	Sharer *share.Sharer
}

// NewServices builds the services over cfg's data directory, creating it
// when missing.
func NewServices(cfg *Config, logger *slog.Logger) (*Services, error) {
	fs, err := storage.NewFS(cfg.Data.Root())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	st := store.New(fs, logger)
	notes := noteservice.NewService(st)
	images := ai.NewImageStore(fs)
	gists := share.NewGistClient(cfg.Share.GHPath, cfg.Share.Timeout, nil)

	return &Services{
		FS:     fs,
		Store:  st,
		Notes:  notes,
		Images: images,
		AI: ai.NewService(ai.Config{
			Model:      cfg.AI.Model,
			TitleModel: cfg.AI.TitleModel,
			APIKey:     cfg.AI.APIKey,
			Timeout:    cfg.AI.Timeout,
		}, st, images, logger),
		Gists:  gists,
		Sharer: share.NewSharer(notes, gists, logger),
	}, nil
}
