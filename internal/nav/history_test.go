package nav

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestNewHistory(t *testing.T) {
	h := New("/home", 0)
	if h.Len() != 1 {
		t.Fatalf("expected length 1, got %d", h.Len())
	}
	if h.Cursor() != 0 {
		t.Errorf("expected cursor 0, got %d", h.Cursor())
	}
	if h.Current() != "/home" {
		t.Errorf("expected current /home, got %s", h.Current())
	}
	if h.CanBack() || h.CanForward() {
		t.Error("fresh history should not allow back or forward")
	}
}

func TestVisitCurrentIsNoop(t *testing.T) {
	h := New("/home", 0)
	h.Visit("/home/docs")
	h.Visit("/home/docs")

	if h.Len() != 2 {
		t.Errorf("expected length 2 after re-visit, got %d", h.Len())
	}
	if h.Current() != "/home/docs" {
		t.Errorf("expected current /home/docs, got %s", h.Current())
	}
}

func TestVisitDiscardsForwardBranch(t *testing.T) {
	h := New("/a", 0)
	h.Visit("/b")
	if _, ok := h.Back(); !ok {
		t.Fatal("Back should succeed")
	}
	h.Visit("/c")

	expected := []string{"/a", "/c"}
	if !reflect.DeepEqual(h.Entries(), expected) {
		t.Errorf("expected entries %v, got %v", expected, h.Entries())
	}
	if h.Current() != "/c" {
		t.Errorf("expected cursor at /c, got %s", h.Current())
	}
	if h.CanForward() {
		t.Error("forward branch should be gone")
	}
}

func TestBackForward(t *testing.T) {
	h := New("/home", 0)
	h.Visit("/home/docs")

	loc, ok := h.Back()
	if !ok || loc != "/home" {
		t.Errorf("Back: expected (/home, true), got (%s, %v)", loc, ok)
	}
	if _, ok := h.Back(); ok {
		t.Error("Back at start should be a no-op")
	}
	if h.Cursor() != 0 {
		t.Errorf("cursor moved on no-op Back: %d", h.Cursor())
	}

	loc, ok = h.Forward()
	if !ok || loc != "/home/docs" {
		t.Errorf("Forward: expected (/home/docs, true), got (%s, %v)", loc, ok)
	}
	if _, ok := h.Forward(); ok {
		t.Error("Forward at end should be a no-op")
	}
}

func TestMaxHistoryTrimsOldest(t *testing.T) {
	h := New("/0", 3)
	for i := 1; i <= 5; i++ {
		h.Visit(fmt.Sprintf("/%d", i))
	}

	expected := []string{"/3", "/4", "/5"}
	if !reflect.DeepEqual(h.Entries(), expected) {
		t.Errorf("expected entries %v, got %v", expected, h.Entries())
	}
	if h.Cursor() != 2 {
		t.Errorf("expected cursor 2, got %d", h.Cursor())
	}
}

func TestCursorInvariantRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := New("/start", 16)

	for step := 0; step < 5000; step++ {
		switch rng.Intn(3) {
		case 0:
			h.Visit(fmt.Sprintf("/loc/%d", rng.Intn(8)))
		case 1:
			h.Back()
		case 2:
			h.Forward()
		}
		if h.Cursor() < 0 || h.Cursor() >= h.Len() {
			t.Fatalf("step %d: cursor %d out of range for length %d", step, h.Cursor(), h.Len())
		}
		if h.CanBack() != (h.Cursor() > 0) {
			t.Fatalf("step %d: CanBack disagrees with cursor", step)
		}
		if h.CanForward() != (h.Cursor() < h.Len()-1) {
			t.Fatalf("step %d: CanForward disagrees with cursor", step)
		}
	}
}

func TestRestore(t *testing.T) {
	h, err := Restore([]string{"/home", "/home/docs/"}, 1, 0)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if h.Current() != "/home/docs" {
		t.Errorf("expected normalized current /home/docs, got %s", h.Current())
	}

	testCases := []struct {
		name    string
		entries []string
		cursor  int
	}{
		{"empty", nil, 0},
		{"negative cursor", []string{"/a"}, -1},
		{"cursor past end", []string{"/a", "/b"}, 2},
		{"invalid entry", []string{"/a", ""}, 0},
		{"relative entry", []string{"rel"}, 0},
	}

	for _, tc := range testCases {
		if _, err := Restore(tc.entries, tc.cursor, 0); !errors.Is(err, ErrCorruptHistory) {
			t.Errorf("Restore(%s): expected ErrCorruptHistory, got %v", tc.name, err)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	h := New("/a", 0)
	c := h.Clone()
	c.Visit("/b")

	if h.Len() != 1 {
		t.Errorf("original history changed by clone visit: len %d", h.Len())
	}
}
