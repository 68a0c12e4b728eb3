package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores objects as files directly under a root directory.
type Disk struct {
	root string
}

// NewDisk creates the root directory if needed and returns a Disk store.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
	}
	return &Disk{root: root}, nil
}

// Root returns the storage root
func (d *Disk) Root() string {
	return d.root
}

// Save writes the file on a separate goroutine so a slow disk never blocks
// the caller past its context. A write abandoned on cancellation may still
// complete and leave an orphaned file.
func (d *Disk) Save(ctx context.Context, name string, content []byte) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(d.root, name)
	done := make(chan error, 1)
	go func() {
		done <- writeFileExclusive(target, content)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrFileWriteFailed, err.Error())
		}
		return name, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func writeFileExclusive(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Open opens a stored file for reading.
func (d *Disk) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return f, err
}

// Remove deletes a stored file.
func (d *Disk) Remove(ctx context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a recorded path to a file under the root and rejects anything
// that would land outside of it.
func (d *Disk) resolve(path string) (string, error) {
	absRoot, err := filepath.Abs(d.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(filepath.Join(d.root, filepath.Clean("/"+path)))
	if err != nil {
		return "", ErrInvalidName
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	return absPath, nil
}
