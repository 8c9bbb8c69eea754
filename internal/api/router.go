package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/share"
	"github.com/starford/xnote/internal/sse"
	"github.com/starford/xnote/internal/store"
)

// Deps are the services the API is built on. Index and Broker may be nil.
type Deps struct {
	Notes     *noteservice.Service
	Store     *store.Store
	AI        *ai.Service
	Sharer    *share.Sharer
	Images    *ai.ImageStore
	ImagesDir string
	ExportDir string
	Index     index.NoteIndex
	Broker    *sse.Broker
	Logger    *slog.Logger
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)
	ih := NewImageHandler(d.Images, d.ImagesDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Raw store access.
	r.Get("/data", h.GetAllData)
	r.Put("/data", h.SetAllData)
	r.Get("/data/{key}", h.GetData)
	r.Put("/data/{key}", h.SetData)

	// Settings and UI state.
	r.Get("/ai/settings", h.GetAISettings)
	r.Put("/ai/settings", h.SaveAISettings)
	r.Get("/ui-state", h.GetUIState)
	r.Put("/ui-state", h.SaveUIState)

	// Generation.
	r.Post("/ai/generate", h.Generate)
	r.Post("/ai/title", h.Title)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Delete("/notes/*", h.DeleteNote)
	r.Get("/search", h.Search)

	// Sharing.
	r.Post("/export", h.Export)
	r.Post("/gists/*", h.ShareGist)
	r.Delete("/gists/*", h.DeleteGist)
	r.Post("/open", h.Open)

	// Images.
	r.Post("/images", ih.Upload)
	r.Get("/images/{filename}", ih.ServeFile)

	if d.Broker != nil {
		r.Get("/events", d.Broker.ServeHTTP)
	}

	return r
}
