// Package app is the process root. It constructs the workspace manager,
// the three caches and the watcher once, forwards navigation to the active
// workspace and tears everything down on Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justyntemme/razornav/internal/cache"
	"github.com/justyntemme/razornav/internal/config"
	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/docs"
	"github.com/justyntemme/razornav/internal/fs"
	"github.com/justyntemme/razornav/internal/icons"
	"github.com/justyntemme/razornav/internal/location"
	"github.com/justyntemme/razornav/internal/preview"
	"github.com/justyntemme/razornav/internal/store"
	"github.com/justyntemme/razornav/internal/tabs"
	"github.com/justyntemme/razornav/internal/watch"
	"github.com/justyntemme/razornav/internal/workspace"
)

// ErrNotDirectory is returned when navigating to something that is not an
// existing directory.
var ErrNotDirectory = errors.New("not a directory")

// Options configure an App.
type Options struct {
	Config       config.Config
	Home         string         // defaults to the user's home directory
	IconRenderer icons.Renderer // optional
}

// App owns all mutable navigation and cache state of the process.
type App struct {
	cfg        config.Config
	home       string
	backend    store.Backend
	workspaces *workspace.Manager
	icons      *icons.Cache
	docs       *docs.Cache
	previews   *preview.Cache
	prefetch   *preview.Prefetcher
	watcher    *watch.Watcher // nil when disabled

	mu      sync.Mutex
	watched map[string]bool
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New opens persisted state and constructs the caches.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	home := opts.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			home = string(filepath.Separator)
		}
	}
	home, err := location.Normalize(home)
	if err != nil {
		return nil, fmt.Errorf("home directory: %w", err)
	}

	backend, err := store.Open(cfg.State.Backend, cfg.State.Dir)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	workspaces, err := workspace.Open(workspace.Options{
		Backend:    backend,
		Fallback:   home,
		MaxHistory: cfg.Tabs.MaxHistory,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	docCache, err := docs.Open(docs.Options{
		Dir:      cfg.Cache.Documents.Dir,
		MaxBytes: cfg.Cache.Documents.MaxBytes,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	previews := preview.New(preview.Options{
		Radius:    cfg.Cache.Preview.Radius,
		MaxPixels: cfg.Cache.Preview.MaxPixels,
	})

	a := &App{
		cfg:        cfg,
		home:       home,
		backend:    backend,
		workspaces: workspaces,
		icons: icons.New(icons.Options{
			MaxEntries: cfg.Cache.Icons.MaxEntries,
			Renderer:   opts.IconRenderer,
		}),
		docs:     docCache,
		previews: previews,
		prefetch: preview.NewPrefetcher(previews, cfg.Cache.Preview.Radius, cfg.Cache.Preview.Workers),
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}

	if cfg.Watcher.Enabled {
		w, err := watch.New(cfg.Watcher.Debounce())
		if err != nil {
			log.Printf("App: filesystem watcher unavailable: %v", err)
		} else {
			a.watcher = w
			a.wg.Add(1)
			go a.watchLoop()
		}
	}
	a.rewatch()

	debug.Log(debug.APP, "Started: state=%s backend=%s docs=%s", cfg.State.Dir, cfg.State.Backend, cfg.Cache.Documents.Dir)
	return a, nil
}

// Home returns the normalized home location.
func (a *App) Home() string {
	return a.home
}

// Tabs returns the active workspace's tab manager.
func (a *App) Tabs() *tabs.Manager {
	return a.workspaces.Active()
}

// Workspaces returns the workspace manager.
func (a *App) Workspaces() *workspace.Manager {
	return a.workspaces
}

// resolve expands user input relative to the active tab and requires an
// existing directory.
func (a *App) resolve(input string) (string, error) {
	cwd := a.Tabs().Location()
	if cwd == "" {
		cwd = a.home
	}
	loc, err := location.Expand(input, a.home, cwd)
	if err != nil {
		return "", err
	}
	if !fs.IsDirectory(loc) {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, loc)
	}
	return loc, nil
}

// Navigate visits path in the active tab. With no tabs open, a tab is
// created for it.
func (a *App) Navigate(path string) (string, error) {
	loc, err := a.resolve(path)
	if err != nil {
		return "", err
	}

	tm := a.Tabs()
	if tm.Len() == 0 {
		_, err = tm.Add(loc)
	} else {
		err = tm.Visit(loc)
	}
	if err != nil {
		return "", err
	}

	a.persist()
	a.rewatch()
	return loc, nil
}

// Back moves the active tab back in its history.
func (a *App) Back() (string, bool) {
	loc, ok := a.Tabs().Back()
	if ok {
		a.persist()
		a.rewatch()
	}
	return loc, ok
}

// Forward moves the active tab forward in its history.
func (a *App) Forward() (string, bool) {
	loc, ok := a.Tabs().Forward()
	if ok {
		a.persist()
		a.rewatch()
	}
	return loc, ok
}

// NewTab opens a tab at path. An empty path opens the tab at the
// configured new-tab location.
func (a *App) NewTab(path string) (string, error) {
	var loc string
	if path == "" {
		loc = a.newTabLocation()
	} else {
		var err error
		if loc, err = a.resolve(path); err != nil {
			return "", err
		}
	}

	id, err := a.Tabs().Add(loc)
	if err != nil {
		return "", err
	}
	a.persist()
	a.rewatch()
	return id, nil
}

func (a *App) newTabLocation() string {
	if strings.EqualFold(a.cfg.Tabs.NewTabLocation, "home") {
		return a.home
	}
	if loc := a.Tabs().Location(); loc != "" {
		return loc
	}
	return a.home
}

// CloseTab closes a tab. Closing the last tab opens a replacement at home
// unless the configuration keeps the workspace empty.
func (a *App) CloseTab(id string) error {
	tm := a.Tabs()
	if err := tm.Remove(id); err != nil {
		return err
	}
	if tm.Len() == 0 && a.cfg.Tabs.LastTabBehavior != config.LastTabKeepEmpty {
		if _, err := tm.Add(a.home); err != nil {
			return err
		}
	}
	a.persist()
	a.rewatch()
	return nil
}

// SwitchTab activates a tab of the active workspace.
func (a *App) SwitchTab(id string) error {
	if err := a.Tabs().SetActive(id); err != nil {
		return err
	}
	a.persist()
	a.rewatch()
	return nil
}

// ReorderTab moves a tab to position pos.
func (a *App) ReorderTab(id string, pos int) error {
	if err := a.Tabs().Reorder(id, pos); err != nil {
		return err
	}
	a.persist()
	return nil
}

// SwitchWorkspace activates another workspace, saving the current one.
func (a *App) SwitchWorkspace(id string) error {
	if err := a.workspaces.Switch(id); err != nil {
		return err
	}
	a.rewatch()
	return nil
}

// DeleteWorkspace deletes a workspace and its saved tabs.
func (a *App) DeleteWorkspace(id string) error {
	if err := a.workspaces.Delete(id); err != nil {
		return err
	}
	a.rewatch()
	return nil
}

// persist saves the active workspace. A failed save is logged and retried
// by the next save, since the manager stays dirty.
func (a *App) persist() {
	if err := a.workspaces.SaveActive(); err != nil {
		log.Printf("App: save tabs: %v", err)
	}
}

// Icon returns the icon for path at size.
func (a *App) Icon(ctx context.Context, path string, size int) (icons.Icon, error) {
	return a.icons.Get(ctx, path, size)
}

// Document returns the converted HTML document for path.
func (a *App) Document(ctx context.Context, path string) (docs.Document, error) {
	return a.docs.Get(ctx, path)
}

// Preview returns the preview image for path.
func (a *App) Preview(ctx context.Context, path string) (preview.Image, error) {
	return a.previews.Get(ctx, path)
}

// FocusPreview moves the preview window to items[index] and prefetches its
// neighbors in the background.
func (a *App) FocusPreview(ctx context.Context, items []string, index int) {
	a.prefetch.Focus(ctx, items, index)
}

// PreviewItems lists the previewable images of dir in display order.
func (a *App) PreviewItems(dir string) ([]string, error) {
	entries, err := fs.List(dir)
	if err != nil {
		return nil, err
	}
	var items []string
	for _, e := range entries {
		if !e.IsDir && preview.Supported(e.Name) {
			items = append(items, e.Path)
		}
	}
	return items, nil
}

// WaitPrefetch blocks until the current preview prefetch finishes.
func (a *App) WaitPrefetch() {
	a.prefetch.Wait()
}

// CacheStats returns the counters of the three caches by name.
func (a *App) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"icons":     a.icons.Stats(),
		"documents": a.docs.Stats(),
		"previews":  a.previews.Stats(),
	}
}

// Close stops background work and persists all state.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	a.prefetch.Stop()

	var errs []error
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.wg.Wait()

	if err := a.workspaces.Close(); err != nil {
		errs = append(errs, err)
	}
	if _, err := a.docs.Sweep(); err != nil {
		errs = append(errs, err)
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, err)
	}

	debug.Log(debug.APP, "Closed")
	return errors.Join(errs...)
}
