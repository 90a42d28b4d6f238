package icons

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justyntemme/razornav/internal/cache"
)

type countingRenderer struct {
	calls atomic.Int32
}

func (r *countingRenderer) Render(_ context.Context, _ string, size int) (image.Image, error) {
	r.calls.Add(1)
	return image.NewRGBA(image.Rect(0, 0, size, size)), nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveNames(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "pic.png")
	writePNG(t, pngPath)
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("plain words\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Options{})
	testCases := []struct {
		path        string
		wantName    string
		wantGeneric string
	}{
		{dir, FolderIcon, FolderIcon},
		{pngPath, "image-png", "image-x-generic"},
		{txtPath, "text-plain", "text-x-generic"},
	}

	for _, tc := range testCases {
		icon, err := c.Get(context.Background(), tc.path, 16)
		if err != nil {
			t.Errorf("Get(%q): %v", tc.path, err)
			continue
		}
		if icon.Name != tc.wantName || icon.Generic != tc.wantGeneric {
			t.Errorf("Get(%q): expected %s/%s, got %s/%s", tc.path, tc.wantName, tc.wantGeneric, icon.Name, icon.Generic)
		}
	}
}

func TestGetMissingFile(t *testing.T) {
	c := New(Options{})
	_, err := c.Get(context.Background(), filepath.Join(t.TempDir(), "gone.png"), 16)
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("missing file was cached")
	}
}

func TestRendererRunsOncePerValidEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &countingRenderer{}
	c := New(Options{Renderer: r})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		icon, err := c.Get(ctx, path, 32)
		if err != nil {
			t.Fatal(err)
		}
		if icon.Image == nil || icon.Image.Bounds().Dx() != 32 {
			t.Fatalf("expected 32px image, got %v", icon.Image)
		}
	}
	if n := r.calls.Load(); n != 1 {
		t.Errorf("expected 1 render, got %d", n)
	}

	// A different size is a different key.
	if _, err := c.Get(ctx, path, 64); err != nil {
		t.Fatal(err)
	}
	if n := r.calls.Load(); n != 2 {
		t.Errorf("expected 2 renders, got %d", n)
	}
}

func TestContentChangeIsObserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("text first"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Options{})
	ctx := context.Background()
	icon, err := c.Get(ctx, path, 16)
	if err != nil {
		t.Fatal(err)
	}
	if icon.Name != "text-plain" {
		t.Fatalf("expected text-plain, got %s", icon.Name)
	}

	writePNG(t, path)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	icon, err = c.Get(ctx, path, 16)
	if err != nil {
		t.Fatal(err)
	}
	if icon.Name != "image-png" {
		t.Errorf("expected image-png after rewrite, got %s", icon.Name)
	}
}

func TestEntryLimit(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{MaxEntries: 2})

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Get(context.Background(), path, 16); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", s.Evictions)
	}
}
