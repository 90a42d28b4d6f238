// Package preview caches downscaled preview images for the item being
// viewed and a symmetric window of its neighbors. Moving the focus evicts
// everything outside the window.
package preview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/justyntemme/razornav/internal/cache"
	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/fs"
)

const (
	DefaultRadius    = 2
	DefaultMaxPixels = 1024
)

// outside is the position of paths not in the current item list.
const outside = -(1 << 30)

// ErrUnsupported is returned for files that cannot be decoded as images.
var ErrUnsupported = errors.New("unsupported image format")

// Key identifies a preview by source path.
type Key struct {
	Path string
}

func (k Key) Source() string { return k.Path }
func (k Key) String() string { return k.Path }

// Image is a cached preview.
type Image struct {
	Image    image.Image
	Original image.Point // dimensions before scaling
}

// Options configure a Cache.
type Options struct {
	Radius    int
	MaxPixels int
	Stat      fs.StatFunc
}

// Cache holds previews for the focus window.
type Cache struct {
	engine    *cache.Engine[Key, Image]
	maxPixels int
	stat      fs.StatFunc

	mu    sync.RWMutex
	index map[string]int
}

// New creates a preview cache.
func New(opts Options) *Cache {
	if opts.Radius <= 0 {
		opts.Radius = DefaultRadius
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.Stat == nil {
		opts.Stat = fs.Stat
	}

	c := &Cache{
		maxPixels: opts.MaxPixels,
		stat:      opts.Stat,
		index:     make(map[string]int),
	}
	c.engine = cache.New(cache.Options[Key, Image]{
		Name:     "preview",
		Policy:   cache.Focus,
		Unit:     cache.Entries,
		Limit:    int64(2*opts.Radius + 1),
		Radius:   opts.Radius,
		Position: c.position,
		Stat:     opts.Stat,
	})
	return c
}

// position runs under the engine lock.
func (c *Cache) position(k Key) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.index[k.Path]; ok {
		return i
	}
	return outside
}

// SetItems replaces the ordered list the focus index refers to.
func (c *Cache) SetItems(items []string) {
	index := make(map[string]int, len(items))
	for i, path := range items {
		if _, dup := index[path]; !dup {
			index[path] = i
		}
	}

	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
}

// SetFocus moves the window to index and evicts previews outside it.
func (c *Cache) SetFocus(index int) int {
	return c.engine.SetFocus(index)
}

// Get returns the preview for path, decoding it on a miss.
func (c *Cache) Get(ctx context.Context, path string) (Image, error) {
	return c.engine.GetOrCompute(ctx, Key{Path: path}, func(ctx context.Context) (Image, int64, error) {
		return c.load(ctx, path)
	})
}

func (c *Cache) load(ctx context.Context, path string) (Image, int64, error) {
	meta, err := c.stat(path)
	if err != nil {
		return Image{}, 0, err
	}
	if !meta.Exists {
		return Image{}, 0, fmt.Errorf("%w: %s", cache.ErrNotFound, path)
	}
	if meta.IsDir {
		return Image{}, 0, fmt.Errorf("%w: %s is a directory", ErrUnsupported, path)
	}

	img, err := decodeFile(path)
	if err != nil {
		return Image{}, 0, err
	}
	// Scaling is the expensive half; skip it if nobody wants the result.
	if err := ctx.Err(); err != nil {
		return Image{}, 0, err
	}

	original := img.Bounds().Size()
	thumb := scale(img, c.maxPixels)
	b := thumb.Bounds()

	debug.Log(debug.PREVIEW, "decoded %s (original %dx%d, preview %dx%d)",
		path, original.X, original.Y, b.Dx(), b.Dy())
	return Image{Image: thumb, Original: original}, int64(b.Dx() * b.Dy() * 4), nil
}

// Peek returns the cached preview for path without validating it.
func (c *Cache) Peek(path string) (Image, bool) {
	return c.engine.Peek(Key{Path: path})
}

// Forget drops cached previews for path and anything beneath it.
func (c *Cache) Forget(path string) int {
	return c.engine.Forget(path)
}

// Len returns the number of cached previews.
func (c *Cache) Len() int {
	return c.engine.Len()
}

// Stats returns the underlying engine counters.
func (c *Cache) Stats() cache.Stats {
	return c.engine.Stats()
}
