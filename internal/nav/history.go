// Package nav implements per-tab back/forward navigation history.
package nav

import (
	"errors"
	"fmt"

	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/location"
)

// DefaultMaxHistory bounds history growth per tab.
const DefaultMaxHistory = 100

// ErrCorruptHistory is returned by Restore for persisted data that violates
// the history invariants.
var ErrCorruptHistory = errors.New("corrupt navigation history")

// History is an ordered list of visited locations with a cursor.
// A non-empty History always satisfies 0 <= cursor < len(entries).
// History is not safe for concurrent use; its owning tab manager serializes access.
type History struct {
	entries []string
	cursor  int
	max     int
}

// New creates a single-entry history positioned at loc.
// loc must already be normalized.
func New(loc string, maxEntries int) *History {
	return &History{
		entries: []string{loc},
		cursor:  0,
		max:     maxEntries,
	}
}

// Restore rebuilds a history from persisted entries and cursor.
// Every entry is re-normalized so older records stay valid keys.
func Restore(entries []string, cursor, maxEntries int) (*History, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrCorruptHistory)
	}
	if cursor < 0 || cursor >= len(entries) {
		return nil, fmt.Errorf("%w: cursor %d out of range [0,%d)", ErrCorruptHistory, cursor, len(entries))
	}

	normalized := make([]string, len(entries))
	for i, e := range entries {
		loc, err := location.Normalize(e)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorruptHistory, i, err)
		}
		normalized[i] = loc
	}

	h := &History{entries: normalized, cursor: cursor, max: maxEntries}
	h.trim()
	return h, nil
}

// Visit records a navigation to loc. Forward entries beyond the cursor are
// discarded. Visiting the current location is a no-op.
func (h *History) Visit(loc string) {
	if h.entries[h.cursor] == loc {
		return
	}

	// Truncate forward history if we're not at the end
	if h.cursor < len(h.entries)-1 {
		h.entries = h.entries[:h.cursor+1]
	}
	h.entries = append(h.entries, loc)
	h.cursor = len(h.entries) - 1

	h.trim()
	debug.Log(debug.NAV, "Visit %s (len=%d cursor=%d)", loc, len(h.entries), h.cursor)
}

// Back moves the cursor one entry back and returns the new current location.
func (h *History) Back() (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Forward moves the cursor one entry forward and returns the new current location.
func (h *History) Forward() (string, bool) {
	if h.cursor >= len(h.entries)-1 {
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *History) CanBack() bool    { return h.cursor > 0 }
func (h *History) CanForward() bool { return h.cursor < len(h.entries)-1 }

// Current returns the location at the cursor.
func (h *History) Current() string {
	return h.entries[h.cursor]
}

// Cursor returns the cursor index.
func (h *History) Cursor() int {
	return h.cursor
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the visited locations, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clone returns an independent copy of h.
func (h *History) Clone() *History {
	return &History{entries: h.Entries(), cursor: h.cursor, max: h.max}
}

// trim drops the oldest entries once the history exceeds its bound.
func (h *History) trim() {
	if h.max <= 0 || len(h.entries) <= h.max {
		return
	}
	excess := len(h.entries) - h.max
	h.entries = h.entries[excess:]
	h.cursor -= excess
	if h.cursor < 0 {
		h.cursor = 0
	}
}
