// Package storage defines the data-directory file-system abstraction.
package storage

// Provider is the interface for data-directory file operations.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to the data dir).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the data dir).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the data dir).
	Delete(path string) error
	// Abs resolves path (relative to the data dir) to an absolute path.
	Abs(path string) (string, error)
}
