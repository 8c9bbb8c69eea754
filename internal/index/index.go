package index

import "strings"

// NoteIndex is the read/write surface consumers depend on.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, links []string) error
	DeleteNote(name string) error
	GetChecksum(name string) (string, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(name string) ([]string, error)
	Tagged(tag string) ([]string, error)
	Close() error
}

var _ NoteIndex = (*DB)(nil)

// Key is the index key for a note name. Note names are unique ignoring case.
func Key(name string) string {
	return strings.ToLower(name)
}
