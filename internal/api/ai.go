package api

import (
	"net/http"
	"strings"

	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/sse"
)

type chunkEvent struct {
	RequestID string `json:"requestId,omitempty"`
	Text      string `json:"text,omitempty"`
	Path      string `json:"path,omitempty"`
}

type resultEvent struct {
	RequestID string `json:"requestId,omitempty"`
	ai.Result
}

// Generate handles POST /api/ai/generate. Text and image chunks are
// published on the event stream as they arrive; the response body is the
// aggregated result. Generation failures are reported in the result, not
// as an HTTP error.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeBody(w, r, 50<<20, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Images) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	res := h.ai.Generate(r.Context(), req.Request, func(ev ai.Event) {
		switch ev.Kind {
		case ai.KindText:
			h.publish(sse.TypeContentChunk, chunkEvent{RequestID: req.RequestID, Text: ev.Text})
		case ai.KindImage:
			h.publish(sse.TypeImageChunk, chunkEvent{RequestID: req.RequestID, Path: ev.Image})
		case ai.KindDone:
			h.publish(sse.TypeAIDone, resultEvent{RequestID: req.RequestID, Result: ev.Result})
		case ai.KindError:
			h.publish(sse.TypeAIError, resultEvent{RequestID: req.RequestID, Result: ai.Result{Error: ev.Err.Error()}})
		}
	})
	writeJSON(w, http.StatusOK, res)
}

// Title handles POST /api/ai/title. It always answers with a title.
func (h *Handler) Title(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if !decodeBody(w, r, maxBodyBytes, &req) {
		return
	}
	writeJSON(w, http.StatusOK, TitleResponse{Title: h.ai.GenerateTitle(r.Context(), req.Content)})
}
