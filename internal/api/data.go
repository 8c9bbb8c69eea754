package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xnote/internal/models"
	"github.com/starford/xnote/internal/store"
)

func setETag(w http.ResponseWriter, checksum string) {
	if checksum != "" {
		w.Header().Set("ETag", `"`+checksum+`"`)
	}
}

func readRaw(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	return body, true
}

// GetAllData handles GET /api/data: the whole store document.
func (h *Handler) GetAllData(w http.ResponseWriter, _ *http.Request) {
	doc, err := h.store.Load()
	if err != nil {
		writeError(w, h.logger, "get all data", err)
		return
	}
	setETag(w, doc.Checksum())
	writeJSON(w, http.StatusOK, doc)
}

// SetAllData handles PUT /api/data, replacing the whole document. With
// If-Match the write only happens when the file still has that checksum.
func (h *Handler) SetAllData(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	doc := store.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := doc.Notes(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("notes: "+err.Error()))
		return
	}

	var err error
	if ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`); ifMatch != "" {
		err = h.store.SaveIfMatch(doc, ifMatch)
	} else {
		err = h.store.Save(doc)
	}
	if err != nil {
		writeError(w, h.logger, "set all data", err)
		return
	}
	setETag(w, doc.Checksum())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetData handles GET /api/data/{key}. Absent keys yield null.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Load()
	if err != nil {
		writeError(w, h.logger, "get data", err)
		return
	}
	raw, ok := doc.Get(chi.URLParam(r, "key"))
	if !ok {
		raw = json.RawMessage("null")
	}
	setETag(w, doc.Checksum())
	writeJSON(w, http.StatusOK, raw)
}

// SetData handles PUT /api/data/{key}; the body is the raw JSON value.
func (h *Handler) SetData(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	if err := h.setKey(key, raw); err != nil {
		writeError(w, h.logger, "set data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) setKey(key string, raw json.RawMessage) error {
	if key == store.KeyNotes {
		var notes []models.Note
		if err := json.Unmarshal(raw, &notes); err != nil {
			return badRequest("notes: " + err.Error())
		}
	}
	_, err := h.store.Update(func(doc *store.Document) error {
		return doc.Set(key, raw)
	})
	return err
}

// GetAISettings handles GET /api/ai/settings.
func (h *Handler) GetAISettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := h.ai.Settings()
	if err != nil {
		writeError(w, h.logger, "get ai settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// SaveAISettings handles PUT /api/ai/settings.
func (h *Handler) SaveAISettings(w http.ResponseWriter, r *http.Request) {
	var settings models.AISettings
	if !decodeBody(w, r, 1<<20, &settings) {
		return
	}
	if err := h.ai.SaveSettings(settings); err != nil {
		writeError(w, h.logger, "save ai settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetUIState handles GET /api/ui-state.
func (h *Handler) GetUIState(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Load()
	if err != nil {
		writeError(w, h.logger, "get ui state", err)
		return
	}
	raw, ok := doc.Get(store.KeyUIState)
	if !ok {
		raw = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, raw)
}

// SaveUIState handles PUT /api/ui-state.
func (h *Handler) SaveUIState(w http.ResponseWriter, r *http.Request) {
	raw, ok := readRaw(w, r)
	if !ok {
		return
	}
	if err := h.setKey(store.KeyUIState, raw); err != nil {
		writeError(w, h.logger, "save ui state", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
