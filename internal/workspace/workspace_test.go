package workspace

import (
	"errors"
	"reflect"
	"testing"

	"github.com/justyntemme/razornav/internal/store"
)

func openManager(t *testing.T, dir string) (*Manager, store.Backend) {
	t.Helper()
	b, err := store.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Open(Options{Backend: b, Fallback: "/home", MaxHistory: 100})
	if err != nil {
		t.Fatal(err)
	}
	return m, b
}

func TestOpenCreatesDefaultWorkspace(t *testing.T) {
	m, _ := openManager(t, t.TempDir())

	list := m.List()
	if len(list) != 1 || list[0].Name != DefaultName || !list[0].Active {
		t.Fatalf("expected one active %q workspace, got %+v", DefaultName, list)
	}
	tm := m.Active()
	if tm.Len() != 1 || tm.Location() != "/home" {
		t.Errorf("expected one tab at /home, got %d at %s", tm.Len(), tm.Location())
	}
}

func TestHomeScenarioSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	m, _ := openManager(t, dir)
	tm := m.Active()

	if err := tm.Visit("/home/docs"); err != nil {
		t.Fatal(err)
	}
	if loc, ok := tm.Back(); !ok || loc != "/home" {
		t.Fatalf("Back: expected /home, got %q %v", loc, ok)
	}
	if loc, ok := tm.Forward(); !ok || loc != "/home/docs" {
		t.Fatalf("Forward: expected /home/docs, got %q %v", loc, ok)
	}
	want, _ := tm.Active()

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, _ := openManager(t, dir)
	got, ok := reopened.Active().Active()
	if !ok {
		t.Fatal("no active tab after reload")
	}
	if !reflect.DeepEqual(got.History, want.History) || got.Cursor != want.Cursor || got.ID != want.ID {
		t.Errorf("expected %+v after reload, got %+v", want, got)
	}
	if reopened.ActiveID() != m.ActiveID() {
		t.Errorf("active workspace changed across restart")
	}
}

func TestSwitchSavesOutgoingWorkspace(t *testing.T) {
	dir := t.TempDir()
	m, _ := openManager(t, dir)
	defaultID := m.ActiveID()

	workID, err := m.Create("work")
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveID() != defaultID {
		t.Fatal("Create must not change the active workspace")
	}

	if err := m.Active().Visit("/home/unsaved"); err != nil {
		t.Fatal(err)
	}
	if err := m.Switch(workID); err != nil {
		t.Fatal(err)
	}
	if m.Active().Location() != "/home" {
		t.Errorf("work workspace should start at /home, got %s", m.Active().Location())
	}

	// Reopen without SaveAll: the switch alone must have persisted both.
	reopened, _ := openManager(t, dir)
	if reopened.ActiveID() != workID {
		t.Errorf("expected work to be active after reload")
	}
	tm, err := reopened.Tabs(defaultID)
	if err != nil {
		t.Fatal(err)
	}
	if tm.Location() != "/home/unsaved" {
		t.Errorf("outgoing workspace lost its navigation, at %s", tm.Location())
	}
}

func TestWorkspacesAreIndependent(t *testing.T) {
	m, _ := openManager(t, t.TempDir())
	workID, _ := m.Create("work")

	if err := m.Active().Visit("/home/a"); err != nil {
		t.Fatal(err)
	}
	work, err := m.Tabs(workID)
	if err != nil {
		t.Fatal(err)
	}
	if work.Location() != "/home" {
		t.Errorf("navigation leaked across workspaces: %s", work.Location())
	}
}

func TestDeleteRules(t *testing.T) {
	m, b := openManager(t, t.TempDir())
	defaultID := m.ActiveID()

	if err := m.Delete(defaultID); !errors.Is(err, ErrLastWorkspace) {
		t.Fatalf("expected ErrLastWorkspace, got %v", err)
	}
	if err := m.Delete("nope"); !errors.Is(err, ErrWorkspaceNotFound) {
		t.Errorf("expected ErrWorkspaceNotFound, got %v", err)
	}

	workID, _ := m.Create("work")
	if err := m.Delete(defaultID); err != nil {
		t.Fatal(err)
	}
	if m.ActiveID() != workID {
		t.Errorf("deleting the active workspace should activate the remaining one")
	}
	if _, err := b.Read(store.WorkspaceSlot(defaultID)); !errors.Is(err, store.ErrSlotNotFound) {
		t.Errorf("deleted workspace slot still present: %v", err)
	}
	if len(m.List()) != 1 {
		t.Errorf("expected 1 workspace, got %d", len(m.List()))
	}
}

// indexFailBackend fails index writes while failIndex is set.
type indexFailBackend struct {
	store.Backend
	failIndex bool
}

func (b *indexFailBackend) Write(slot string, data []byte) error {
	if b.failIndex && slot == store.IndexSlot {
		return errors.New("disk full")
	}
	return b.Backend.Write(slot, data)
}

func TestDeleteKeepsWorkspaceWhenIndexSaveFails(t *testing.T) {
	fb, err := store.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b := &indexFailBackend{Backend: fb}
	m, err := Open(Options{Backend: b, Fallback: "/home"})
	if err != nil {
		t.Fatal(err)
	}
	defaultID := m.ActiveID()
	workID, err := m.Create("work")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SaveActive(); err != nil {
		t.Fatal(err)
	}
	before := m.List()

	b.failIndex = true
	if err := m.Delete(defaultID); err == nil {
		t.Fatal("expected Delete to fail")
	}

	if got := m.List(); !reflect.DeepEqual(got, before) {
		t.Errorf("expected workspaces %+v after failed delete, got %+v", before, got)
	}
	if m.ActiveID() != defaultID {
		t.Errorf("expected %s to stay active, got %s", defaultID, m.ActiveID())
	}
	if _, err := fb.Read(store.WorkspaceSlot(defaultID)); err != nil {
		t.Errorf("slot of undeleted workspace should remain: %v", err)
	}

	b.failIndex = false
	if err := m.Delete(defaultID); err != nil {
		t.Fatalf("Delete after recovery: %v", err)
	}
	if m.ActiveID() != workID {
		t.Errorf("expected %s active, got %s", workID, m.ActiveID())
	}
}

func TestNameValidation(t *testing.T) {
	m, _ := openManager(t, t.TempDir())
	workID, err := m.Create("  work  ")
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		expected error
	}{
		{"", ErrInvalidName},
		{"   ", ErrInvalidName},
		{"WORK", ErrDuplicateName},
		{DefaultName, ErrDuplicateName},
		{"play", nil},
	}
	for _, tc := range testCases {
		_, err := m.Create(tc.name)
		if !errors.Is(err, tc.expected) {
			t.Errorf("Create(%q): expected %v, got %v", tc.name, tc.expected, err)
		}
	}

	if err := m.Rename(workID, "Work"); err != nil {
		t.Errorf("renaming to a different case of its own name: %v", err)
	}
	if id, ok := m.Find("work"); !ok || id != workID {
		t.Errorf("Find(work): expected %s, got %s %v", workID, id, ok)
	}
}

func TestCorruptIndexRecovers(t *testing.T) {
	dir := t.TempDir()
	b, err := store.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Write(store.IndexSlot, []byte("{broken")); err != nil {
		t.Fatal(err)
	}

	m, err := Open(Options{Backend: b, Fallback: "/home"})
	if err != nil {
		t.Fatalf("Open should recover from a corrupt index: %v", err)
	}
	if len(m.List()) != 1 || m.List()[0].Name != DefaultName {
		t.Errorf("expected a fresh default workspace, got %+v", m.List())
	}
}
