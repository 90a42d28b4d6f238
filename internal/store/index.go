package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WorkspaceRecord identifies one persisted workspace.
type WorkspaceRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Index is the persisted list of workspaces and the active one.
type Index struct {
	Workspaces []WorkspaceRecord
	Active     string
}

type indexRecord struct {
	Version    int               `json:"version"`
	Workspaces []WorkspaceRecord `json:"workspaces"`
	Active     string            `json:"active,omitempty"`
}

// IndexStore persists the workspace index in IndexSlot.
type IndexStore struct {
	backend Backend
}

func NewIndexStore(backend Backend) *IndexStore {
	return &IndexStore{backend: backend}
}

// Load returns the stored index. A missing index is an empty Index and no
// error; an undecodable one is ErrCorruptState.
func (s *IndexStore) Load() (Index, error) {
	data, err := s.backend.Read(IndexSlot)
	if errors.Is(err, ErrSlotNotFound) {
		return Index{}, nil
	}
	if err != nil {
		return Index{}, err
	}

	var rec indexRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Index{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, IndexSlot, err)
	}
	return Index{Workspaces: rec.Workspaces, Active: rec.Active}, nil
}

// Save writes idx atomically.
func (s *IndexStore) Save(idx Index) error {
	rec := indexRecord{
		Version:    recordVersion,
		Workspaces: idx.Workspaces,
		Active:     idx.Active,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return s.backend.Write(IndexSlot, data)
}
