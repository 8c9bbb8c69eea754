// Package store owns the single JSON document shared by the CLI and the app
// daemon.
package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/starford/xnote/internal/models"
)

// Well-known top-level keys.
const (
	KeyNotes        = "notes"
	KeyWindowBounds = "windowBounds"
	KeyAISettings   = "aiSettings"
	KeyUIState      = "uiState"
)

// Document is the parsed store. Every top-level key is kept as raw JSON so
// that keys written by other clients survive a load/save cycle untouched.
type Document struct {
	fields   map[string]json.RawMessage
	checksum string
}

// NewDocument returns the empty default shape {"notes": []}.
func NewDocument() *Document {
	return &Document{fields: map[string]json.RawMessage{
		KeyNotes: json.RawMessage("[]"),
	}}
}

// Checksum is the digest of the bytes the document was loaded from, or ""
// when the store file did not exist.
func (d *Document) Checksum() string {
	return d.checksum
}

// Keys returns the top-level keys in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Set stores value under key. A json.RawMessage is stored as-is after
// validation.
func (d *Document) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	d.fields[key] = raw
	return nil
}

// Delete removes key from the document.
func (d *Document) Delete(key string) {
	delete(d.fields, key)
}

// Notes decodes the notes sequence. A missing or null key yields no notes.
func (d *Document) Notes() ([]models.Note, error) {
	raw, ok := d.fields[KeyNotes]
	if !ok || isNull(raw) {
		return []models.Note{}, nil
	}
	var notes []models.Note
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, fmt.Errorf("store: decode notes: %w", err)
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes, nil
}

// SetNotes replaces the notes sequence.
func (d *Document) SetNotes(notes []models.Note) error {
	if notes == nil {
		notes = []models.Note{}
	}
	return d.Set(KeyNotes, notes)
}

// AISettings decodes the AI settings; nil when unconfigured.
func (d *Document) AISettings() (*models.AISettings, error) {
	raw, ok := d.fields[KeyAISettings]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s models.AISettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("store: decode aiSettings: %w", err)
	}
	return &s, nil
}

// SetAISettings replaces the AI settings.
func (d *Document) SetAISettings(s *models.AISettings) error {
	if s == nil {
		d.Delete(KeyAISettings)
		return nil
	}
	return d.Set(KeyAISettings, s)
}

// MarshalJSON encodes the document as a JSON object.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.fields)
}

// UnmarshalJSON decodes a JSON object. Anything else is rejected.
func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("store: document is not a JSON object")
	}
	d.fields = fields
	return nil
}

func (d *Document) encode() ([]byte, error) {
	return json.MarshalIndent(d.fields, "", "  ")
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
