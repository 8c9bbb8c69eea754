// Package apperr holds the sentinel errors shared across xnote layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrGistNotFound  = errors.New("gist no longer exists")
	ErrNotConfigured = errors.New("not configured")
)
