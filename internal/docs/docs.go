// Package docs converts documents to HTML and caches the output on disk.
// The cache is bounded by the cumulative byte size of its output files.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/justyntemme/razornav/internal/cache"
	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/fs"
)

// DefaultMaxBytes is the default on-disk ceiling.
const DefaultMaxBytes int64 = 64 << 20

// ErrUnsupported is returned for files that are neither Markdown, Org nor text.
var ErrUnsupported = errors.New("unsupported document type")

// Kind is the detected source format.
type Kind string

const (
	Markdown Kind = "markdown"
	Org      Kind = "org"
	Text     Kind = "text"
)

// Key identifies a converted document by its source path.
type Key struct {
	Path string
}

func (k Key) Source() string { return k.Path }
func (k Key) String() string { return k.Path }

// Document describes one converted output file.
type Document struct {
	Source string
	Output string // absolute path of the HTML file
	Kind   Kind
	Size   int64
}

// Read returns the converted HTML.
func (d Document) Read() ([]byte, error) {
	return os.ReadFile(d.Output)
}

// Options configure a Cache.
type Options struct {
	Dir      string
	MaxBytes int64
	Stat     fs.StatFunc
}

// Cache converts documents on demand and keeps the output on disk.
type Cache struct {
	dir      string
	maxBytes int64
	stat     fs.StatFunc
	md       goldmark.Markdown
	engine   *cache.Engine[Key, Document]

	mu   sync.Mutex
	live map[string]bool // output file names owned by the engine
}

// Open creates the cache directory and prunes output left by earlier runs
// down to the ceiling.
func Open(opts Options) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("docs: cache directory required")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Stat == nil {
		opts.Stat = fs.Stat
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("docs: create %s: %w", opts.Dir, err)
	}

	c := &Cache{
		dir:      opts.Dir,
		maxBytes: opts.MaxBytes,
		stat:     opts.Stat,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		live: make(map[string]bool),
	}
	c.engine = cache.New(cache.Options[Key, Document]{
		Name:    "docs",
		Policy:  cache.Age,
		Unit:    cache.Bytes,
		Limit:   opts.MaxBytes,
		Stat:    opts.Stat,
		OnEvict: c.evicted,
	})

	if _, err := c.Sweep(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the converted document for path, converting it if the cached
// output is missing or stale.
func (c *Cache) Get(ctx context.Context, path string) (Document, error) {
	key := Key{Path: path}
	return c.engine.GetOrCompute(ctx, key, func(ctx context.Context) (Document, int64, error) {
		doc, err := c.convert(ctx, path)
		return doc, doc.Size, err
	})
}

// Render returns the converted HTML for path. Output evicted between Get
// and the read is converted again once.
func (c *Cache) Render(ctx context.Context, path string) ([]byte, error) {
	doc, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := doc.Read()
	if !errors.Is(err, os.ErrNotExist) {
		return data, err
	}

	debug.Log(debug.CACHE_IO, "docs: output for %s vanished, converting again", path)
	c.Forget(path)
	if doc, err = c.Get(ctx, path); err != nil {
		return nil, err
	}
	return doc.Read()
}

func (c *Cache) convert(ctx context.Context, path string) (Document, error) {
	meta, err := c.stat(path)
	if err != nil {
		return Document{}, err
	}
	if !meta.Exists {
		return Document{}, fmt.Errorf("%w: %s", cache.ErrNotFound, path)
	}
	if meta.IsDir {
		return Document{}, fmt.Errorf("%w: %s is a directory", ErrUnsupported, path)
	}

	name := outputName(path, meta)
	doc := Document{Source: path, Output: filepath.Join(c.dir, name), Kind: kindOf(path)}

	// Output from an earlier run for the same revision is reused.
	if info, err := os.Stat(doc.Output); err == nil && info.Mode().IsRegular() {
		doc.Size = info.Size()
		c.adoptFitting(name, doc.Size)
		debug.Log(debug.CACHE_IO, "docs: reusing %s for %s", name, path)
		return doc, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	var out bytes.Buffer
	switch doc.Kind {
	case Markdown:
		if err := c.md.Convert(src, &out); err != nil {
			return Document{}, fmt.Errorf("markdown %s: %w", path, err)
		}
	case Org:
		if err := convertOrg(src, &out); err != nil {
			return Document{}, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if !isText(src) {
			return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
		}
		out.WriteString("<pre>")
		out.WriteString(html.EscapeString(string(src)))
		out.WriteString("</pre>\n")
	}

	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := c.write(doc.Output, out.Bytes()); err != nil {
		return Document{}, err
	}
	doc.Size = int64(out.Len())
	c.adoptFitting(name, doc.Size)

	debug.Log(debug.CACHE_IO, "docs: wrote %s (%s) for %s", name, humanize.Bytes(uint64(doc.Size)), path)
	return doc, nil
}

// write stores data at path via a temp file and rename so readers never
// observe partial output.
func (c *Cache) write(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, "convert-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// adoptFitting tracks name unless it alone exceeds the ceiling. Such output
// is served uncached and left for Sweep.
func (c *Cache) adoptFitting(name string, size int64) {
	if size > c.maxBytes {
		return
	}
	c.adopt(name)
}

func (c *Cache) adopt(name string) {
	c.mu.Lock()
	c.live[name] = true
	c.mu.Unlock()
}

// evicted runs under the engine lock.
func (c *Cache) evicted(_ Key, doc Document) {
	c.mu.Lock()
	delete(c.live, filepath.Base(doc.Output))
	c.mu.Unlock()

	if err := os.Remove(doc.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
		debug.Log(debug.CACHE_IO, "docs: remove %s: %v", doc.Output, err)
	}
}

func (c *Cache) isLive(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[name]
}

// Forget drops cached output for path and anything beneath it.
func (c *Cache) Forget(path string) int {
	return c.engine.Forget(path)
}

// Footprint returns the bytes held by tracked output files.
func (c *Cache) Footprint() int64 {
	return c.engine.Footprint()
}

// Stats returns the underlying engine counters.
func (c *Cache) Stats() cache.Stats {
	return c.engine.Stats()
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// outputName derives a stable file name from the source revision.
func outputName(path string, meta fs.Meta) string {
	h := xxhash.New()
	h.WriteString(path)
	h.WriteString("\x00")
	h.WriteString(strconv.FormatInt(meta.ModTime.UnixNano(), 10))
	h.WriteString("\x00")
	h.WriteString(strconv.FormatInt(meta.Size, 10))
	return fmt.Sprintf("%016x.html", h.Sum64())
}

func kindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdown", ".mkd":
		return Markdown
	case ".org":
		return Org
	}
	return Text
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
