package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestList(t *testing.T) {
	tmpDir := t.TempDir()

	dirs := []string{"beta", "Alpha"}
	for _, d := range dirs {
		if err := os.Mkdir(filepath.Join(tmpDir, d), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
	}
	files := []string{"b.png", "A.txt", "c.md"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, f), []byte(f), 0o644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
	}
	// Nested files are not direct children.
	if err := os.WriteFile(filepath.Join(tmpDir, "beta", "nested.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := List(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{"Alpha", "beta", "A.txt", "b.png", "c.md"}
	if len(entries) != len(expected) {
		t.Fatalf("expected %d entries, got %d", len(expected), len(entries))
	}
	for i, name := range expected {
		if entries[i].Name != name {
			t.Errorf("entry %d: expected %s, got %s", i, name, entries[i].Name)
		}
		if entries[i].IsDir != (i < 2) {
			t.Errorf("entry %s: IsDir=%v", name, entries[i].IsDir)
		}
	}
	if entries[2].Size != int64(len("A.txt")) {
		t.Errorf("expected size %d, got %d", len("A.txt"), entries[2].Size)
	}
}

func TestList_NonExistent(t *testing.T) {
	if _, err := List("/nonexistent/path/that/does/not/exist"); err == nil {
		t.Error("expected error for nonexistent path")
	}
}

func TestList_SymlinkToDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	realDir := filepath.Join(tmpDir, "realdir")
	if err := os.Mkdir(realDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(realDir, filepath.Join(tmpDir, "linkdir")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := List(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name == "linkdir" && !e.IsDir {
			t.Error("symlink to directory should report IsDir")
		}
	}
}
