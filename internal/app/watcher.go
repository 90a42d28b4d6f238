package app

import (
	"github.com/justyntemme/razornav/internal/debug"
)

// watchLoop drops cache entries for changed paths. Lookups validate against
// the filesystem regardless, so a dropped notification only delays
// reclaiming memory.
func (a *App) watchLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.done:
			return
		case path, ok := <-a.watcher.Notify():
			if !ok {
				return
			}
			a.invalidate(path)
		}
	}
}

func (a *App) invalidate(path string) {
	n := a.icons.Forget(path) + a.docs.Forget(path) + a.previews.Forget(path)
	if n > 0 {
		debug.Log(debug.WATCH, "Dropped %d cache entries for %s", n, path)
	}
}

// rewatch points the watcher at the locations open in the active
// workspace's tabs.
func (a *App) rewatch() {
	if a.watcher == nil {
		return
	}
	want := make(map[string]bool)
	for _, loc := range a.Tabs().Locations() {
		want[loc] = true
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	for loc := range a.watched {
		if !want[loc] {
			a.watcher.Unwatch(loc)
			delete(a.watched, loc)
		}
	}
	for loc := range want {
		if a.watched[loc] {
			continue
		}
		if err := a.watcher.Watch(loc); err != nil {
			debug.Log(debug.WATCH, "Cannot watch %s: %v", loc, err)
			continue
		}
		a.watched[loc] = true
	}
}
