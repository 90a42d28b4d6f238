package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/location"
	"github.com/justyntemme/razornav/internal/tabs"
)

// recordVersion is written into every record. Readers accept records with
// any version; fields are only ever added, and missing ones take defaults.
const recordVersion = 1

var (
	// ErrCorruptState is returned for records that cannot be decoded or
	// that decode to invalid state.
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrNoTabs is returned for a valid record of a workspace whose last
	// tab was closed.
	ErrNoTabs = errors.New("no saved tabs")
)

type tabRecord struct {
	ID      string   `json:"id"`
	History []string `json:"history"`
	Cursor  int      `json:"cursor"`
}

type tabStateRecord struct {
	Version int         `json:"version"`
	Tabs    []tabRecord `json:"tabs"`
	Active  string      `json:"active,omitempty"`
	SavedAt time.Time   `json:"saved_at,omitempty"`
}

// TabStateStore persists one workspace's tab manager in one backend slot.
type TabStateStore struct {
	backend    Backend
	slot       string
	fallback   string
	maxHistory int
}

// NewTabStateStore creates a store for slot. fallback is the location of
// the default tab used when nothing valid is stored; an invalid fallback
// becomes the filesystem root.
func NewTabStateStore(backend Backend, slot, fallback string, maxHistory int) *TabStateStore {
	loc, err := location.Normalize(fallback)
	if err != nil {
		loc = location.MustNormalize("/")
	}
	return &TabStateStore{
		backend:    backend,
		slot:       slot,
		fallback:   loc,
		maxHistory: maxHistory,
	}
}

// Slot returns the backend slot name.
func (s *TabStateStore) Slot() string {
	return s.slot
}

// Load reads the stored tab manager. Missing or corrupt state is not an
// error: Load then returns a manager with exactly one tab at the fallback
// location.
func (s *TabStateStore) Load() *tabs.Manager {
	m, err := s.load()
	if err == nil {
		return m
	}
	if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrNoTabs) {
		debug.Log(debug.STORE, "No saved tabs in %s, starting at %s", s.slot, s.fallback)
	} else {
		log.Printf("Store: %v; starting with a default tab at %s", err, s.fallback)
	}
	return s.defaultManager()
}

func (s *TabStateStore) load() (*tabs.Manager, error) {
	data, err := s.backend.Read(s.slot)
	if err != nil {
		return nil, err
	}

	var rec tabStateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.slot, err)
	}
	if len(rec.Tabs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTabs, s.slot)
	}

	snap := tabs.Snapshot{
		Tabs:   make([]tabs.TabSnapshot, len(rec.Tabs)),
		Active: rec.Active,
	}
	for i, t := range rec.Tabs {
		snap.Tabs[i] = tabs.TabSnapshot{ID: t.ID, History: t.History, Cursor: t.Cursor}
	}

	m, err := tabs.FromSnapshot(snap, s.maxHistory)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.slot, err)
	}
	debug.Log(debug.STORE, "Loaded %d tabs from %s", m.Len(), s.slot)
	return m, nil
}

func (s *TabStateStore) defaultManager() *tabs.Manager {
	m := tabs.NewManager(s.maxHistory)
	// fallback was normalized in the constructor, Add cannot fail.
	_, _ = m.Add(s.fallback)
	return m
}

// Save writes the manager's tab order, histories, cursors and active tab.
// On success the manager is marked saved at the snapshot's generation.
func (s *TabStateStore) Save(m *tabs.Manager) error {
	snap := m.Snapshot()

	rec := tabStateRecord{
		Version: recordVersion,
		Tabs:    make([]tabRecord, len(snap.Tabs)),
		Active:  snap.Active,
		SavedAt: time.Now().UTC(),
	}
	for i, t := range snap.Tabs {
		rec.Tabs[i] = tabRecord{ID: t.ID, History: t.History, Cursor: t.Cursor}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := s.backend.Write(s.slot, data); err != nil {
		return fmt.Errorf("save %s: %w", s.slot, err)
	}
	m.MarkSaved(snap.Gen)
	return nil
}

// SaveIfDirty saves m only if it changed since its last save.
func (s *TabStateStore) SaveIfDirty(m *tabs.Manager) (bool, error) {
	if !m.Dirty() {
		return false, nil
	}
	if err := s.Save(m); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the slot.
func (s *TabStateStore) Delete() error {
	return s.backend.Remove(s.slot)
}
