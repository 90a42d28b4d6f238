package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, w *Watcher, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-w.Notify():
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("no notification for %s", want)
		}
	}
}

func TestWatcherReportsChangedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(20 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w, path)
}

func TestWatchIsIdempotentAndUnwatchForgets(t *testing.T) {
	dir := t.TempDir()
	w, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 2; i++ {
		if err := w.Watch(dir); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(w.Watching()); n != 1 {
		t.Errorf("expected 1 watched dir, got %d", n)
	}

	w.Unwatch(dir)
	w.Unwatch(dir)
	if n := len(w.Watching()); n != 0 {
		t.Errorf("expected no watched dirs, got %d", n)
	}
}

func TestWatchMissingDirectoryFails(t *testing.T) {
	w, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error watching a missing directory")
	}
}

func TestCloseTwice(t *testing.T) {
	w, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
