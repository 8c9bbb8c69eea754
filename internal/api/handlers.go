package api

import (
	"cmp"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/noteservice"
	"github.com/starford/xnote/internal/share"
	"github.com/starford/xnote/internal/sse"
	"github.com/starford/xnote/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	notes     *noteservice.Service
	store     *store.Store
	ai        *ai.Service
	sharer    *share.Sharer
	idx       index.NoteIndex
	broker    *sse.Broker
	exportDir string
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		notes:     d.Notes,
		store:     d.Store,
		ai:        d.AI,
		sharer:    d.Sharer,
		idx:       d.Index,
		broker:    d.Broker,
		exportDir: d.ExportDir,
		logger:    logger,
	}
}

func (h *Handler) publish(eventType string, data any) {
	if h.broker != nil {
		h.broker.Publish(sse.Event{Type: eventType, Data: data})
	}
}

// noteName extracts the note name from the URL wildcard. Names may contain
// slashes and arrive percent-encoded.
func noteName(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes. ?sort=recent orders by updatedAt,
// newest first; the default is storage order.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.ListAll(r.Context())
	if err != nil {
		writeError(w, h.logger, "list notes", err)
		return
	}
	items := make([]models.NoteListItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, n.ListItem())
	}
	if r.URL.Query().Get("sort") == "recent" {
		slices.SortStableFunc(items, func(a, b models.NoteListItem) int {
			return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
		})
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/*. ?format=markdown returns the Markdown
// body as text/markdown instead of JSON.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	name := noteName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	n, ok, err := h.notes.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, h.logger, "get note", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	md, err := noteservice.Markdown(n)
	if err != nil {
		writeError(w, h.logger, "get note", err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(md))
		return
	}

	backlinks := []string{}
	if h.idx != nil {
		if bl, err := h.idx.Backlinks(n.Name); err == nil && bl != nil {
			backlinks = bl
		}
	}
	writeJSON(w, http.StatusOK, NoteDetail{Note: n, Markdown: md, Backlinks: backlinks})
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = h.ai.GenerateTitle(r.Context(), req.Content)
	}

	note, err := h.notes.Put(r.Context(), name, req.Content, !req.HTML, req.Force)
	if err != nil {
		writeError(w, h.logger, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// DeleteNote handles DELETE /api/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	name := noteName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.notes.Delete(r.Context(), name); err != nil {
		writeError(w, h.logger, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search. Without an index it falls back to the
// loose name match used for "did you mean" suggestions.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results := []index.SearchResult{}
	if h.idx != nil {
		hits, err := h.idx.Search(q, limit)
		if err != nil {
			writeError(w, h.logger, "search", err)
			return
		}
		results = append(results, hits...)
	} else {
		notes, err := h.notes.Similar(r.Context(), q, limit)
		if err != nil {
			writeError(w, h.logger, "search", err)
			return
		}
		for _, n := range notes {
			results = append(results, index.SearchResult{Name: n.Name})
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
