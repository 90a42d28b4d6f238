package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/justyntemme/razornav/internal/cache"
)

func openCache(t *testing.T, maxBytes int64) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := Open(Options{Dir: filepath.Join(dir, "cache"), MaxBytes: maxBytes})
	if err != nil {
		t.Fatal(err)
	}
	return c, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func htmlFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRenderMarkdownAndText(t *testing.T) {
	c, dir := openCache(t, 0)
	md := filepath.Join(dir, "readme.md")
	writeFile(t, md, "# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, "a < b & c")

	testCases := []struct {
		path     string
		contains []string
	}{
		{md, []string{`<h1 id="title">Title</h1>`, "<table>"}},
		{txt, []string{"<pre>a &lt; b &amp; c</pre>"}},
	}

	for _, tc := range testCases {
		out, err := c.Render(context.Background(), tc.path)
		if err != nil {
			t.Errorf("Render(%q): %v", tc.path, err)
			continue
		}
		for _, want := range tc.contains {
			if !strings.Contains(string(out), want) {
				t.Errorf("Render(%q): expected %q in %q", tc.path, want, out)
			}
		}
	}
}

func TestRenderOrg(t *testing.T) {
	c, dir := openCache(t, 0)
	path := filepath.Join(dir, "notes.org")
	writeFile(t, path, "#+TITLE: Notes\n\n* Plans\n\nShip a < b release.\n")

	doc, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != Org {
		t.Errorf("expected kind %s, got %s", Org, doc.Kind)
	}

	out, err := doc.Read()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h1>", "Plans</h1>", "a &lt; b"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestRenderLargerThanCeiling(t *testing.T) {
	c, dir := openCache(t, 100)
	path := filepath.Join(dir, "big.txt")
	writeFile(t, path, strings.Repeat("y", 500))
	ctx := context.Background()

	doc, err := c.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Read(); err != nil {
		t.Errorf("output of oversized document should be readable: %v", err)
	}

	out, err := c.Render(ctx, path)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), strings.Repeat("y", 500)) {
		t.Errorf("expected full content, got %d bytes", len(out))
	}
	if c.Footprint() != 0 {
		t.Errorf("oversized output should not be tracked, footprint %d", c.Footprint())
	}

	if n, err := c.Sweep(); err != nil || n != 1 {
		t.Errorf("expected Sweep to prune the untracked output, got %d (%v)", n, err)
	}
}

func TestRenderConvertsAgainWhenOutputVanished(t *testing.T) {
	c, dir := openCache(t, 0)
	path := filepath.Join(dir, "doc.md")
	writeFile(t, path, "# Again")
	ctx := context.Background()

	doc, err := c.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(doc.Output); err != nil {
		t.Fatal(err)
	}

	out, err := c.Render(ctx, path)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), `<h1 id="again">Again</h1>`) {
		t.Errorf("expected heading, got %q", out)
	}
}

func TestBinaryIsUnsupported(t *testing.T) {
	c, dir := openCache(t, 0)
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0xff, 0xfe, 0x00, 0x00, 0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := c.Get(context.Background(), path)
	if !errors.Is(err, ErrUnsupported) || !errors.Is(err, cache.ErrComputeFailed) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if len(htmlFiles(t, c.Dir())) != 0 {
		t.Error("failed conversion left output behind")
	}
}

func TestMissingSource(t *testing.T) {
	c, dir := openCache(t, 0)
	_, err := c.Get(context.Background(), filepath.Join(dir, "nope.md"))
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStaleOutputIsReplaced(t *testing.T) {
	c, dir := openCache(t, 0)
	path := filepath.Join(dir, "doc.md")
	writeFile(t, path, "first")
	ctx := context.Background()

	first, err := c.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "second version")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	second, err := c.Get(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if first.Output == second.Output {
		t.Fatal("expected a new output file for the new revision")
	}
	if _, err := os.Stat(first.Output); !os.IsNotExist(err) {
		t.Error("stale output file was not removed")
	}
	out, _ := second.Read()
	if !strings.Contains(string(out), "second version") {
		t.Errorf("expected new content, got %q", out)
	}
}

func TestByteCeilingRemovesOldestFiles(t *testing.T) {
	c, dir := openCache(t, 200)
	ctx := context.Background()
	body := strings.Repeat("x", 80)

	var docs []Document
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		writeFile(t, path, body)
		doc, err := c.Get(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, doc)
	}

	if c.Footprint() > 200 {
		t.Errorf("footprint %d exceeds ceiling", c.Footprint())
	}
	if _, err := os.Stat(docs[0].Output); !os.IsNotExist(err) {
		t.Error("oldest output should be deleted from disk")
	}
	if _, err := os.Stat(docs[2].Output); err != nil {
		t.Errorf("newest output should remain: %v", err)
	}
}

func TestOpenReusesAndPrunesLeftovers(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	src := filepath.Join(dir, "keep.md")
	writeFile(t, src, "# keep")

	c, err := Open(Options{Dir: cacheDir})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := c.Get(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	// Leftovers from an interrupted run and an oversized old output.
	writeFile(t, filepath.Join(cacheDir, "convert-123.tmp"), "partial")
	old := filepath.Join(cacheDir, "00000000000000ff.html")
	writeFile(t, old, strings.Repeat("o", 4096))
	past := time.Now().Add(-24 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(Options{Dir: cacheDir, MaxBytes: doc.Size + 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "convert-123.tmp")); !os.IsNotExist(err) {
		t.Error("temp leftover was not swept")
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("oldest leftover was not pruned")
	}

	again, err := reopened.Get(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if again.Output != doc.Output {
		t.Errorf("expected reuse of %s, got %s", doc.Output, again.Output)
	}
	if s := reopened.Stats(); s.Misses != 1 || reopened.Footprint() != doc.Size {
		t.Errorf("expected adopted output to be tracked, stats %+v footprint %d", s, reopened.Footprint())
	}
}

func TestForgetRemovesOutput(t *testing.T) {
	c, dir := openCache(t, 0)
	path := filepath.Join(dir, "gone.md")
	writeFile(t, path, "bye")

	doc, err := c.Get(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if n := c.Forget(path); n != 1 {
		t.Fatalf("expected 1 forgotten, got %d", n)
	}
	if _, err := os.Stat(doc.Output); !os.IsNotExist(err) {
		t.Error("forgotten output still on disk")
	}
}
