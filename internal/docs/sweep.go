package docs

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/razornav/internal/debug"
)

type leftover struct {
	path    string
	size    int64
	modTime time.Time
}

// Sweep removes interrupted conversions and prunes output files the engine
// does not track, oldest first, until tracked and untracked output together
// fit the ceiling. It returns the number of files removed. Sweep must not
// run concurrently with Get.
func (c *Cache) Sweep() (int, error) {
	var (
		mu        sync.Mutex
		untracked []leftover
		stale     []string
	)

	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != c.dir {
				return fastwalk.SkipDir
			}
			return nil
		}

		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".tmp"):
			mu.Lock()
			stale = append(stale, path)
			mu.Unlock()
		case strings.HasSuffix(name, ".html") && !c.isLive(name):
			info, err := fastwalk.StatDirEntry(path, d)
			if err != nil {
				return nil
			}
			mu.Lock()
			untracked = append(untracked, leftover{path: path, size: info.Size(), modTime: info.ModTime()})
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range stale {
		if os.Remove(path) == nil {
			removed++
		}
	}

	var total int64
	for _, l := range untracked {
		total += l.size
	}
	tracked := c.engine.Footprint()

	sort.Slice(untracked, func(i, j int) bool {
		if !untracked[i].modTime.Equal(untracked[j].modTime) {
			return untracked[i].modTime.Before(untracked[j].modTime)
		}
		return untracked[i].path < untracked[j].path
	})

	var freed int64
	for _, l := range untracked {
		if tracked+total <= c.maxBytes {
			break
		}
		if err := os.Remove(l.path); err != nil {
			debug.Log(debug.CACHE_IO, "docs: sweep %s: %v", l.path, err)
			continue
		}
		total -= l.size
		freed += l.size
		removed++
	}

	if removed > 0 {
		log.Printf("Docs: swept %d files from %s, freed %s (%s untracked kept)",
			removed, filepath.Base(c.dir), humanize.Bytes(uint64(freed)), humanize.Bytes(uint64(total)))
	}
	return removed, nil
}
