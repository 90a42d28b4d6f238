// Package icons caches the icon shown for each file. Entries are counted,
// not sized, and are revalidated against the file's modification time on
// every lookup.
package icons

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/justyntemme/razornav/internal/cache"
	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/fs"
)

// DefaultMaxEntries bounds the icon cache when no limit is configured.
const DefaultMaxEntries = 512

// FolderIcon is the theme name used for every directory.
const FolderIcon = "folder"

// Key identifies an icon by file and requested pixel size.
type Key struct {
	Path string
	Size int
}

func (k Key) Source() string { return k.Path }
func (k Key) String() string { return fmt.Sprintf("%s@%d", k.Path, k.Size) }

// Icon is the cached value.
type Icon struct {
	Name    string // theme icon name, e.g. "image-png"
	Generic string // fallback name, e.g. "image-x-generic"
	MIME    string
	Image   image.Image // nil without a Renderer
}

// Renderer draws a named icon at a pixel size.
type Renderer interface {
	Render(ctx context.Context, name string, size int) (image.Image, error)
}

// Options configure a Cache.
type Options struct {
	MaxEntries int
	Renderer   Renderer
	Stat       fs.StatFunc
}

// Cache resolves and caches file icons.
type Cache struct {
	engine   *cache.Engine[Key, Icon]
	renderer Renderer
	stat     fs.StatFunc
}

// New creates an icon cache.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Stat == nil {
		opts.Stat = fs.Stat
	}
	return &Cache{
		engine: cache.New(cache.Options[Key, Icon]{
			Name:   "icons",
			Policy: cache.Age,
			Unit:   cache.Entries,
			Limit:  int64(opts.MaxEntries),
			Stat:   opts.Stat,
		}),
		renderer: opts.Renderer,
		stat:     opts.Stat,
	}
}

// Get returns the icon for path at size.
func (c *Cache) Get(ctx context.Context, path string, size int) (Icon, error) {
	key := Key{Path: path, Size: size}
	return c.engine.GetOrCompute(ctx, key, func(ctx context.Context) (Icon, int64, error) {
		return c.compute(ctx, key)
	})
}

func (c *Cache) compute(ctx context.Context, key Key) (Icon, int64, error) {
	meta, err := c.stat(key.Path)
	if err != nil {
		return Icon{}, 0, err
	}
	if !meta.Exists {
		return Icon{}, 0, fmt.Errorf("%w: %s", cache.ErrNotFound, key.Path)
	}

	icon, err := Resolve(key.Path, meta)
	if err != nil {
		return Icon{}, 0, err
	}

	var size int64
	if c.renderer != nil {
		img, err := c.renderer.Render(ctx, icon.Name, key.Size)
		if err != nil {
			return Icon{}, 0, fmt.Errorf("render %s: %w", icon.Name, err)
		}
		icon.Image = img
		if img != nil {
			b := img.Bounds()
			size = int64(b.Dx() * b.Dy() * 4)
		}
	}

	debug.Log(debug.CACHE, "icons: %s -> %s", key, icon.Name)
	return icon, size, nil
}

// Resolve picks theme icon names for the file at path from its content type.
func Resolve(path string, meta fs.Meta) (Icon, error) {
	if meta.IsDir {
		return Icon{Name: FolderIcon, Generic: FolderIcon, MIME: "inode/directory"}, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Icon{}, err
	}

	mime, _, _ := strings.Cut(mtype.String(), ";")
	mime = strings.TrimSpace(mime)
	return Icon{
		Name:    strings.ReplaceAll(mime, "/", "-"),
		Generic: genericName(mime),
		MIME:    mime,
	}, nil
}

func genericName(mime string) string {
	major, _, _ := strings.Cut(mime, "/")
	switch major {
	case "image", "audio", "video", "text", "font":
		return major + "-x-generic"
	}
	switch mime {
	case "application/zip", "application/gzip", "application/x-tar",
		"application/x-7z-compressed", "application/x-xz", "application/x-bzip2":
		return "package-x-generic"
	case "application/x-executable", "application/x-elf", "application/vnd.microsoft.portable-executable":
		return "application-x-executable"
	}
	return "application-x-generic"
}

// Forget drops cached icons for path and anything beneath it.
func (c *Cache) Forget(path string) int {
	return c.engine.Forget(path)
}

// Len returns the number of cached icons.
func (c *Cache) Len() int {
	return c.engine.Len()
}

// Stats returns the underlying engine counters.
func (c *Cache) Stats() cache.Stats {
	return c.engine.Stats()
}
