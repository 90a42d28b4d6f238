// Package store persists tab and workspace state. A Backend holds opaque
// records in named slots, one per workspace plus the workspace index;
// TabStateStore and IndexStore encode records into those slots.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrSlotNotFound is returned by Backend.Read for slots never written.
var ErrSlotNotFound = errors.New("slot not found")

// Backend is durable slot storage. Write must be atomic from a reader's
// perspective: a Read never observes a partially written record.
type Backend interface {
	Read(slot string) ([]byte, error)
	Write(slot string, data []byte) error
	Remove(slot string) error
	Close() error
}

// IndexSlot is the slot holding the workspace index.
const IndexSlot = "index"

// WorkspaceSlot returns the slot name for a workspace id.
func WorkspaceSlot(id string) string {
	name := sanitize(id)
	if name == "" {
		name = "unknown"
	}
	return "workspace-" + name
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

// Backend kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
)

// Open opens the backend of the given kind rooted at dir.
func Open(kind, dir string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", KindFile:
		return NewFileBackend(dir)
	case KindSQLite:
		return OpenSQLite(filepath.Join(dir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
