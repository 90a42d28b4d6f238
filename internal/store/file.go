package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justyntemme/razornav/internal/debug"
)

// FileBackend stores each slot as a JSON file in a directory.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the state directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(slot string) string {
	return filepath.Join(b.dir, sanitize(slot)+".json")
}

// Read returns the slot contents or ErrSlotNotFound.
func (b *FileBackend) Read(slot string) ([]byte, error) {
	data, err := os.ReadFile(b.path(slot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return data, err
}

// Write replaces the slot contents via a synced temporary file renamed
// over the destination.
func (b *FileBackend) Write(slot string, data []byte) error {
	path := b.path(slot)
	tmp, err := os.CreateTemp(b.dir, "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	debug.Log(debug.STORE, "Wrote slot %s (%d bytes)", slot, len(data))
	return nil
}

// Remove deletes the slot. Removing a missing slot is not an error.
func (b *FileBackend) Remove(slot string) error {
	err := os.Remove(b.path(slot))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op; files are closed after every operation.
func (b *FileBackend) Close() error {
	return nil
}
