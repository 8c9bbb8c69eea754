package api

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"github.com/starford/xnote/internal/apperr"
	"github.com/starford/xnote/internal/share"
	"github.com/starford/xnote/internal/sse"
)

// Export handles POST /api/export.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if !decodeBody(w, r, 1<<20, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	n, ok, err := h.notes.FindByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.logger, "export", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	dest := req.Dest
	if dest == "" {
		dest = h.exportDir + string(filepath.Separator)
	}

	var path string
	switch req.Format {
	case "", "markdown", "md":
		path, err = share.ExportMarkdown(n, dest)
	case "html":
		path, err = share.ExportHTML(n, dest)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be markdown or html"))
		return
	}
	if err != nil {
		writeError(w, h.logger, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path})
}

// ShareGist handles POST /api/gists/*: create or update the note's gist.
func (h *Handler) ShareGist(w http.ResponseWriter, r *http.Request) {
	name := noteName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	var req ShareRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.sharer.Share(r.Context(), name, req.Public)
	if err != nil {
		writeError(w, h.logger, "share gist", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// DeleteGist handles DELETE /api/gists/*.
func (h *Handler) DeleteGist(w http.ResponseWriter, r *http.Request) {
	name := noteName(r)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	if err := h.sharer.Unshare(r.Context(), name); err != nil {
		writeError(w, h.logger, "delete gist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Open handles POST /api/open: the CLI asks the running app to show a note.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decodeBody(w, r, 1<<20, &req) {
		return
	}
	n, ok, err := h.notes.FindByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.logger, "open", err)
		return
	}
	if !ok {
		writeError(w, h.logger, "open", apperr.ErrNotFound)
		return
	}
	h.publish(sse.TypeNoteOpen, map[string]string{"name": n.Name})
	writeJSON(w, http.StatusAccepted, map[string]string{"name": n.Name})
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
