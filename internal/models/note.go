// Package models defines the domain types for xnote.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
	"unicode/utf16"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var apiKeyRe = regexp.MustCompile(`^\S*$`)

// Note is a named piece of content kept in both HTML and Markdown form.
// Keys this version does not know about are carried in Extra so that a
// load/save cycle never drops fields written by another client.
type Note struct {
	Name        string `json:"name"`
	RichContent string `json:"richContent"`
	MDContent   string `json:"mdContent"`
	UpdatedAt   int64  `json:"updatedAt"` // epoch milliseconds
	GistID      string `json:"gistId,omitempty"`
	GistURL     string `json:"gistUrl,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type noteFields Note

var noteKeys = []string{"name", "richContent", "mdContent", "updatedAt", "gistId", "gistUrl"}

// UnmarshalJSON decodes the known fields and stashes the rest in Extra.
func (n *Note) UnmarshalJSON(data []byte) error {
	var known noteFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range noteKeys {
		delete(all, k)
	}
	*n = Note(known)
	if len(all) > 0 {
		n.Extra = all
	} else {
		n.Extra = nil
	}
	return nil
}

// MarshalJSON encodes the known fields merged with Extra.
func (n Note) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(noteFields(n))
	if err != nil {
		return nil, err
	}
	if len(n.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(n.Extra)+len(noteKeys))
	for k, v := range n.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, fmt.Errorf("models: remarshal note: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Updated returns UpdatedAt as a time.Time.
func (n Note) Updated() time.Time {
	return time.UnixMilli(n.UpdatedAt)
}

// Size is the length of the note's primary content, Markdown preferred,
// counted in UTF-16 code units so existing list output stays comparable.
func (n Note) Size() int {
	if n.MDContent != "" {
		return utf16Len(n.MDContent)
	}
	return utf16Len(n.RichContent)
}

func utf16Len(s string) int {
	size := 0
	for _, r := range s {
		size += utf16.RuneLen(r)
	}
	return size
}

// NoteListItem is the lightweight representation returned by list operations.
type NoteListItem struct {
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updatedAt"`
	Size      int    `json:"size"`
}

// ListItem builds the list representation of n.
func (n Note) ListItem() NoteListItem {
	return NoteListItem{Name: n.Name, UpdatedAt: n.UpdatedAt, Size: n.Size()}
}

// AISettings configures the generative-text service.
type AISettings struct {
	APIKey       string `json:"apiKey"`
	SystemPrompt string `json:"systemPrompt"`
	EnableSearch bool   `json:"enableSearch"`
}

// Configured reports whether an API key is present.
func (s *AISettings) Configured() bool {
	return s != nil && s.APIKey != ""
}

// Validate validates the AI settings.
func (s *AISettings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.APIKey, validation.Length(0, 512), validation.Match(apiKeyRe)),
		validation.Field(&s.SystemPrompt, validation.Length(0, 20000)),
	)
}
