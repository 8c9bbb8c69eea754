package api

import (
	"github.com/starford/xnote/internal/ai"
	"github.com/starford/xnote/internal/index"
	"github.com/starford/xnote/internal/models"
)

// CreateNoteRequest is the request body for creating a note. An empty name
// asks for an AI-generated title.
type CreateNoteRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	// HTML marks content as rich HTML instead of Markdown.
	HTML  bool `json:"html"`
	Force bool `json:"force"`
}

// NoteDetail is a note plus derived fields.
type NoteDetail struct {
	Note      models.Note `json:"note"`
	Markdown  string   `json:"markdown"`
	Backlinks []string `json:"backlinks"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.NoteListItem `json:"notes"`
	Total int                   `json:"total"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// GenerateRequest is an AI generation request. RequestID is echoed on every
// streamed event so the UI can route chunks.
type GenerateRequest struct {
	ai.Request
	RequestID string `json:"requestId,omitempty"`
}

// TitleRequest asks for a note title.
type TitleRequest struct {
	Content string `json:"content"`
}

// TitleResponse carries a generated title.
type TitleResponse struct {
	Title string `json:"title"`
}

// ExportRequest asks for a note to be written to disk.
type ExportRequest struct {
	Name string `json:"name"`
	// Dest is a file or directory; empty means the configured export dir.
	Dest   string `json:"dest,omitempty"`
	Format string `json:"format,omitempty"`
}

// ExportResponse reports where an export was written.
type ExportResponse struct {
	Path string `json:"path"`
}

// ShareRequest controls gist visibility on first publication.
type ShareRequest struct {
	Public bool `json:"public"`
}

// OpenRequest asks the UI to show a note.
type OpenRequest struct {
	Name string `json:"name"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}
