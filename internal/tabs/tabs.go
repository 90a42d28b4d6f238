// Package tabs owns the ordered set of browsing tabs of one workspace,
// the active-tab index and each tab's navigation history.
package tabs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/location"
	"github.com/justyntemme/razornav/internal/nav"
)

var (
	// ErrInvalidLocation aliases location.ErrInvalidLocation so callers
	// of this package need not import location to test for it.
	ErrInvalidLocation = location.ErrInvalidLocation

	ErrTabNotFound        = errors.New("tab not found")
	ErrNoActiveTab        = errors.New("no active tab")
	ErrPositionOutOfRange = errors.New("tab position out of range")
)

// TabState holds the navigation state for a single tab
type TabState struct {
	ID      string
	history *nav.History
}

// Location returns the tab's current location.
func (t *TabState) Location() string {
	return t.history.Current()
}

// Tab is a read-only view of a TabState handed out to callers.
type Tab struct {
	ID         string
	Location   string
	Title      string
	CanBack    bool
	CanForward bool
	History    []string
	Cursor     int
}

func (t *TabState) view() Tab {
	return Tab{
		ID:         t.ID,
		Location:   t.history.Current(),
		Title:      location.Title(t.history.Current()),
		CanBack:    t.history.CanBack(),
		CanForward: t.history.CanForward(),
		History:    t.history.Entries(),
		Cursor:     t.history.Cursor(),
	}
}

// Manager is the ordered collection of tabs of one workspace.
// Every exported method is a single critical section, so multi-field
// updates such as Remove's active index adjustment are never observed
// half-done. Manager never persists itself; stores pull state via Snapshot.
type Manager struct {
	mu         sync.Mutex
	tabs       []*TabState
	active     int // -1 when there are no tabs
	gen        uint64
	savedGen   uint64
	maxHistory int
}

// NewManager creates an empty manager. maxHistory bounds each tab's history
// (0 means unbounded).
func NewManager(maxHistory int) *Manager {
	return &Manager{
		active:     -1,
		maxHistory: maxHistory,
	}
}

// Add appends a new tab at loc and makes it active.
// An invalid loc is rejected before any state changes.
func (m *Manager) Add(loc string) (string, error) {
	norm, err := location.Normalize(loc)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tab := &TabState{
		ID:      uuid.NewString(),
		history: nav.New(norm, m.maxHistory),
	}
	m.tabs = append(m.tabs, tab)
	m.active = len(m.tabs) - 1
	m.gen++

	debug.Log(debug.TABS, "Created tab %s at %s (index %d)", tab.ID, norm, m.active)
	return tab.ID, nil
}

// Remove closes the tab with the given id.
//
// If the closed tab was active, the tab that followed it becomes active,
// or the one before it when it was last. Otherwise the same tab stays
// active. Removing the only tab leaves the manager empty with
// ActiveIndex() == -1; callers decide whether to open a replacement.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexLocked(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	m.tabs = append(m.tabs[:index], m.tabs[index+1:]...)
	m.gen++

	switch {
	case len(m.tabs) == 0:
		m.active = -1
	case index == m.active:
		if m.active >= len(m.tabs) {
			m.active = len(m.tabs) - 1
		}
	case index < m.active:
		m.active--
	}

	debug.Log(debug.TABS, "Closed tab %s (index %d), active now %d of %d", id, index, m.active, len(m.tabs))
	return nil
}

// SetActive makes the tab with the given id active.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexLocked(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	if index != m.active {
		debug.Log(debug.TABS, "Switching from tab %d to tab %d", m.active, index)
		m.active = index
		m.gen++
	}
	return nil
}

// Next activates the following tab, wrapping around.
func (m *Manager) Next() {
	m.cycle(1)
}

// Prev activates the preceding tab, wrapping around.
func (m *Manager) Prev() {
	m.cycle(-1)
}

func (m *Manager) cycle(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tabs) <= 1 {
		return
	}
	m.active = (m.active + delta + len(m.tabs)) % len(m.tabs)
	m.gen++
}

// Reorder moves the tab with the given id to position pos.
// The active tab stays the same tab, whatever its new position.
func (m *Manager) Reorder(id string, pos int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexLocked(id)
	if index < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	if pos < 0 || pos >= len(m.tabs) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrPositionOutOfRange, pos, len(m.tabs))
	}
	if pos == index {
		return nil
	}

	activeTab := m.tabs[m.active]
	tab := m.tabs[index]
	m.tabs = append(m.tabs[:index], m.tabs[index+1:]...)
	m.tabs = append(m.tabs[:pos], append([]*TabState{tab}, m.tabs[pos:]...)...)
	m.active = m.indexLocked(activeTab.ID)
	m.gen++

	debug.Log(debug.TABS, "Moved tab %s from %d to %d", id, index, pos)
	return nil
}

// Visit navigates the active tab to loc.
func (m *Manager) Visit(loc string) error {
	norm, err := location.Normalize(loc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active < 0 {
		return ErrNoActiveTab
	}
	h := m.tabs[m.active].history
	before, cursor := h.Len(), h.Cursor()
	h.Visit(norm)
	if h.Len() != before || h.Cursor() != cursor {
		m.gen++
	}
	return nil
}

// Back moves the active tab one step back in its history and returns the
// new location. It reports false when there is nothing to go back to.
func (m *Manager) Back() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active < 0 {
		return "", false
	}
	loc, ok := m.tabs[m.active].history.Back()
	if ok {
		m.gen++
	}
	return loc, ok
}

// Forward moves the active tab one step forward in its history.
func (m *Manager) Forward() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active < 0 {
		return "", false
	}
	loc, ok := m.tabs[m.active].history.Forward()
	if ok {
		m.gen++
	}
	return loc, ok
}

// Tabs returns views of all tabs in display order.
func (m *Manager) Tabs() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Tab, len(m.tabs))
	for i, t := range m.tabs {
		out[i] = t.view()
	}
	return out
}

// Tab returns the tab with the given id.
func (m *Manager) Tab(id string) (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := m.indexLocked(id)
	if index < 0 {
		return Tab{}, false
	}
	return m.tabs[index].view(), true
}

// Active returns the active tab.
func (m *Manager) Active() (Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active < 0 {
		return Tab{}, false
	}
	return m.tabs[m.active].view(), true
}

// Location returns the active tab's current location, or "" without tabs.
func (m *Manager) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active < 0 {
		return ""
	}
	return m.tabs[m.active].Location()
}

// Locations returns the distinct current locations of all tabs.
func (m *Manager) Locations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.tabs))
	var out []string
	for _, t := range m.tabs {
		loc := t.Location()
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out
}

// ActiveIndex returns the active tab position, or -1 without tabs.
func (m *Manager) ActiveIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Len returns the number of tabs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tabs)
}

// Dirty reports whether the manager changed since the last saved snapshot.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != m.savedGen
}

// MarkSaved records that the snapshot taken at generation gen is durable.
// Mutations made after that snapshot keep the manager dirty.
func (m *Manager) MarkSaved(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen > m.savedGen {
		m.savedGen = gen
	}
}

func (m *Manager) indexLocked(id string) int {
	for i, t := range m.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}
