package tabs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/justyntemme/razornav/internal/nav"
)

// ErrCorruptSnapshot is returned by FromSnapshot for state that cannot be
// turned back into a valid manager.
var ErrCorruptSnapshot = errors.New("corrupt tab snapshot")

// Snapshot is the persistable form of a Manager.
type Snapshot struct {
	Tabs   []TabSnapshot
	Active string // id of the active tab
	Gen    uint64 // manager generation the snapshot was taken at
}

// TabSnapshot is the persistable form of one tab.
type TabSnapshot struct {
	ID      string
	History []string
	Cursor  int
}

// Snapshot captures tab order, every tab's full history and cursor, and the
// active tab.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Tabs: make([]TabSnapshot, len(m.tabs)),
		Gen:  m.gen,
	}
	for i, t := range m.tabs {
		s.Tabs[i] = TabSnapshot{
			ID:      t.ID,
			History: t.history.Entries(),
			Cursor:  t.history.Cursor(),
		}
	}
	if m.active >= 0 {
		s.Active = m.tabs[m.active].ID
	}
	return s
}

// FromSnapshot rebuilds a clean Manager from s.
//
// Tabs without an id get a fresh one. An unknown or missing active id
// selects the first tab. Histories that violate their invariants, and
// duplicate ids, make the whole snapshot corrupt.
func FromSnapshot(s Snapshot, maxHistory int) (*Manager, error) {
	m := NewManager(maxHistory)
	seen := make(map[string]bool, len(s.Tabs))

	for i, ts := range s.Tabs {
		h, err := nav.Restore(ts.History, ts.Cursor, maxHistory)
		if err != nil {
			return nil, fmt.Errorf("%w: tab %d: %v", ErrCorruptSnapshot, i, err)
		}
		id := ts.ID
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate tab id %s", ErrCorruptSnapshot, id)
		}
		seen[id] = true
		m.tabs = append(m.tabs, &TabState{ID: id, history: h})
	}

	if len(m.tabs) > 0 {
		m.active = 0
		if idx := m.indexLocked(s.Active); idx >= 0 {
			m.active = idx
		}
	}
	return m, nil
}
