// Package storage keeps attachment bytes outside the database. Callers pass
// generated names only; backends never see user-supplied filenames.
package storage

import (
	"context"
	"errors"
	"io"
	"regexp"
)

var (
	// ErrFileNotFound indicates the requested object does not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrFileWriteFailed indicates a write to the backend failed
	ErrFileWriteFailed = errors.New("failed to write file")
	// ErrInvalidName indicates a name that could escape the storage root
	ErrInvalidName = errors.New("invalid storage name")
)

// Store persists opaque blobs under generated names.
type Store interface {
	// Save writes content under name and returns the storage path to record.
	Save(ctx context.Context, name string, content []byte) (string, error)
	// Open returns a reader for a path previously returned by Save.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove deletes a stored object. Removing a missing object is not an error.
	Remove(ctx context.Context, path string) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,199}$`)

// ValidName reports whether name is a single safe path element.
func ValidName(name string) bool {
	return validName.MatchString(name) && name != "." && name != ".."
}
