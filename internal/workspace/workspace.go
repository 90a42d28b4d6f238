// Package workspace owns the set of workspaces, each an independently
// persisted tab manager, and tracks which one is active. Exactly one
// workspace is active once the manager is open.
package workspace

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/store"
	"github.com/justyntemme/razornav/internal/tabs"
)

// DefaultName names the workspace created when none exist.
const DefaultName = "default"

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrLastWorkspace     = errors.New("cannot delete the last workspace")
	ErrInvalidName       = errors.New("invalid workspace name")
	ErrDuplicateName     = errors.New("workspace name already in use")
)

// Info describes one workspace.
type Info struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Active    bool
}

type workspace struct {
	rec   store.WorkspaceRecord
	store *store.TabStateStore
	tabs  *tabs.Manager // nil until first used
}

func (w *workspace) manager() *tabs.Manager {
	if w.tabs == nil {
		w.tabs = w.store.Load()
	}
	return w.tabs
}

// Options configure a Manager.
type Options struct {
	Backend    store.Backend
	Fallback   string // location of the default tab of new or unreadable workspaces
	MaxHistory int
}

// Manager is the process-wide root of navigation state.
type Manager struct {
	mu         sync.Mutex
	backend    store.Backend
	index      *store.IndexStore
	fallback   string
	maxHistory int
	order      []*workspace
	active     int
}

// Open loads the workspace index from opts.Backend. A missing or
// unreadable index yields a single workspace named DefaultName.
func Open(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, errors.New("workspace: backend required")
	}

	m := &Manager{
		backend:    opts.Backend,
		index:      store.NewIndexStore(opts.Backend),
		fallback:   opts.Fallback,
		maxHistory: opts.MaxHistory,
	}

	idx, err := m.index.Load()
	if errors.Is(err, store.ErrCorruptState) {
		log.Printf("Workspace: %v; starting with a fresh index", err)
		idx = store.Index{}
	} else if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, rec := range idx.Workspaces {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		m.order = append(m.order, m.newWorkspace(rec))
	}

	if len(m.order) == 0 {
		w := m.newWorkspace(store.WorkspaceRecord{
			ID:        uuid.NewString(),
			Name:      DefaultName,
			CreatedAt: time.Now().UTC(),
		})
		m.order = append(m.order, w)
		if err := m.saveIndexLocked(); err != nil {
			return nil, err
		}
	}

	m.active = 0
	if i := m.indexOfLocked(idx.Active); i >= 0 {
		m.active = i
	}
	m.order[m.active].manager()

	debug.Log(debug.WORKSPACE, "Opened %d workspaces, active %q", len(m.order), m.order[m.active].rec.Name)
	return m, nil
}

func (m *Manager) newWorkspace(rec store.WorkspaceRecord) *workspace {
	return &workspace{
		rec:   rec,
		store: store.NewTabStateStore(m.backend, store.WorkspaceSlot(rec.ID), m.fallback, m.maxHistory),
	}
}

// Create adds a workspace with one tab at the fallback location and
// persists it. The active workspace does not change.
func (m *Manager) Create(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, err := m.checkNameLocked(name, "")
	if err != nil {
		return "", err
	}

	w := m.newWorkspace(store.WorkspaceRecord{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err := w.store.Save(w.manager()); err != nil {
		return "", fmt.Errorf("create workspace %q: %w", name, err)
	}

	m.order = append(m.order, w)
	if err := m.saveIndexLocked(); err != nil {
		m.order = m.order[:len(m.order)-1]
		_ = w.store.Delete()
		return "", err
	}

	debug.Log(debug.WORKSPACE, "Created workspace %q (%s)", name, w.rec.ID)
	return w.rec.ID, nil
}

// Delete removes a workspace and its persisted slot. The last remaining
// workspace cannot be deleted. Deleting the active workspace activates
// the one after it, or the one before it when it was last.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	if len(m.order) == 1 {
		return ErrLastWorkspace
	}

	w := m.order[i]
	activeID := m.order[m.active].rec.ID
	prevOrder, prevActive := append([]*workspace(nil), m.order...), m.active
	m.order = append(m.order[:i:i], m.order[i+1:]...)

	switch {
	case id == activeID:
		if i >= len(m.order) {
			i = len(m.order) - 1
		}
		m.active = i
	case i < m.active:
		m.active--
	}

	if err := m.saveIndexLocked(); err != nil {
		m.order, m.active = prevOrder, prevActive
		return err
	}
	if err := w.store.Delete(); err != nil {
		debug.Log(debug.WORKSPACE, "Remove slot of %s: %v", id, err)
	}

	m.order[m.active].manager()
	debug.Log(debug.WORKSPACE, "Deleted workspace %q, active %q", w.rec.Name, m.order[m.active].rec.Name)
	return nil
}

// Switch makes the workspace id active. The outgoing workspace's tabs are
// saved first; if that fails the switch does not happen.
func (m *Manager) Switch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	if i == m.active {
		return nil
	}

	out := m.order[m.active]
	if out.tabs != nil {
		if _, err := out.store.SaveIfDirty(out.tabs); err != nil {
			return fmt.Errorf("save workspace %q: %w", out.rec.Name, err)
		}
	}

	prev := m.active
	m.active = i
	if err := m.saveIndexLocked(); err != nil {
		m.active = prev
		return err
	}

	m.order[i].manager()
	debug.Log(debug.WORKSPACE, "Switched %q -> %q", out.rec.Name, m.order[i].rec.Name)
	return nil
}

// Rename changes a workspace's name.
func (m *Manager) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	name, err := m.checkNameLocked(name, id)
	if err != nil {
		return err
	}

	old := m.order[i].rec.Name
	m.order[i].rec.Name = name
	if err := m.saveIndexLocked(); err != nil {
		m.order[i].rec.Name = old
		return err
	}
	return nil
}

// Active returns the active workspace's tab manager.
func (m *Manager) Active() *tabs.Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order[m.active].manager()
}

// ActiveID returns the id of the active workspace.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order[m.active].rec.ID
}

// Tabs returns the tab manager of any workspace, loading it if needed.
func (m *Manager) Tabs(id string) (*tabs.Manager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	return m.order[i].manager(), nil
}

// Find returns the id of the workspace called name.
func (m *Manager) Find(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.order {
		if strings.EqualFold(w.rec.Name, strings.TrimSpace(name)) {
			return w.rec.ID, true
		}
	}
	return "", false
}

// List returns every workspace in creation order.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, len(m.order))
	for i, w := range m.order {
		out[i] = Info{
			ID:        w.rec.ID,
			Name:      w.rec.Name,
			CreatedAt: w.rec.CreatedAt,
			Active:    i == m.active,
		}
	}
	return out
}

// SaveActive saves the active workspace's tabs if they changed.
func (m *Manager) SaveActive() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.order[m.active]
	if w.tabs == nil {
		return nil
	}
	_, err := w.store.SaveIfDirty(w.tabs)
	return err
}

// SaveAll saves every loaded workspace that changed, and the index.
func (m *Manager) SaveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, w := range m.order {
		if w.tabs == nil {
			continue
		}
		if saved, err := w.store.SaveIfDirty(w.tabs); err != nil {
			errs = append(errs, fmt.Errorf("save workspace %q: %w", w.rec.Name, err))
		} else if saved {
			debug.Log(debug.WORKSPACE, "Saved workspace %q", w.rec.Name)
		}
	}
	if err := m.saveIndexLocked(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close persists all state. The backend stays open; its owner closes it.
func (m *Manager) Close() error {
	return m.SaveAll()
}

func (m *Manager) saveIndexLocked() error {
	idx := store.Index{Workspaces: make([]store.WorkspaceRecord, len(m.order))}
	for i, w := range m.order {
		idx.Workspaces[i] = w.rec
	}
	if m.active >= 0 && m.active < len(m.order) {
		idx.Active = m.order[m.active].rec.ID
	}
	if err := m.index.Save(idx); err != nil {
		return fmt.Errorf("save workspace index: %w", err)
	}
	return nil
}

func (m *Manager) indexOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, w := range m.order {
		if w.rec.ID == id {
			return i
		}
	}
	return -1
}

// checkNameLocked validates name, ignoring the workspace self when
// checking for duplicates.
func (m *Manager) checkNameLocked(name, self string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "\x00\n\r") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, w := range m.order {
		if w.rec.ID != self && strings.EqualFold(w.rec.Name, name) {
			return "", fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	return name, nil
}
