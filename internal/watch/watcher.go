// Package watch reports filesystem changes beneath watched directories.
// Delivery is best effort: bursts are debounced per path and notifications
// are dropped when the consumer falls behind.
package watch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/justyntemme/razornav/internal/debug"
)

// DefaultDebounce is used when New is given a non-positive interval.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches directories and notifies with the paths that changed in them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	watching map[string]bool // Currently watched directories
	notify   chan string     // Changed paths
	done     chan struct{}
	closed   bool
	debounce time.Duration
}

// New creates a watcher and starts its event loop.
func New(debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dw := &Watcher{
		watcher:  w,
		watching: make(map[string]bool),
		notify:   make(chan string, 64),
		done:     make(chan struct{}),
		debounce: debounce,
	}

	go dw.run()
	return dw, nil
}

// run processes filesystem events with debouncing
func (dw *Watcher) run() {
	lastEvent := make(map[string]time.Time)
	ticker := time.NewTicker(dw.tick())
	defer ticker.Stop()

	for {
		select {
		case <-dw.done:
			return

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}

			changed := filepath.Clean(event.Name)
			dw.mu.Lock()
			relevant := dw.watching[filepath.Dir(changed)] || dw.watching[changed]
			dw.mu.Unlock()

			if relevant {
				lastEvent[changed] = time.Now()
				debug.Log(debug.WATCH, "%s on %s", event.Op, changed)
			}

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.WATCH, "fsnotify error: %v", err)

		case now := <-ticker.C:
			for path, at := range lastEvent {
				if now.Sub(at) < dw.debounce {
					continue
				}
				select {
				case dw.notify <- path:
					debug.Log(debug.WATCH, "change notification: %s", path)
				default:
					debug.Log(debug.WATCH, "notification dropped: %s", path)
				}
				delete(lastEvent, path)
			}
		}
	}
}

func (dw *Watcher) tick() time.Duration {
	if t := dw.debounce / 2; t > 10*time.Millisecond {
		return t
	}
	return 10 * time.Millisecond
}

// Watch adds a directory to the watch list.
func (dw *Watcher) Watch(dir string) error {
	dir = filepath.Clean(dir)

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.watching[dir] {
		return nil
	}
	if err := dw.watcher.Add(dir); err != nil {
		return err
	}

	dw.watching[dir] = true
	debug.Log(debug.WATCH, "watching %s", dir)
	return nil
}

// Unwatch removes a directory from the watch list.
func (dw *Watcher) Unwatch(dir string) {
	dir = filepath.Clean(dir)

	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.watching[dir] {
		return
	}
	// The directory may already be gone.
	if err := dw.watcher.Remove(dir); err != nil {
		debug.Log(debug.WATCH, "unwatch %s: %v", dir, err)
	}
	delete(dw.watching, dir)
}

// UnwatchAll removes every directory from the watch list.
func (dw *Watcher) UnwatchAll() {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for dir := range dw.watching {
		_ = dw.watcher.Remove(dir)
	}
	dw.watching = make(map[string]bool)
}

// Watching returns the watched directories.
func (dw *Watcher) Watching() []string {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dirs := make([]string, 0, len(dw.watching))
	for dir := range dw.watching {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Notify returns the channel that receives changed paths.
func (dw *Watcher) Notify() <-chan string {
	return dw.notify
}

// Close shuts down the watcher. It is safe to call more than once.
func (dw *Watcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	dw.mu.Unlock()

	close(dw.done)
	return dw.watcher.Close()
}
