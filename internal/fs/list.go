package fs

import (
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/justyntemme/razornav/internal/debug"
)

// Entry is one directory member.
type Entry struct {
	Name    string
	Path    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// List returns the direct children of dir, directories first, then by
// case-insensitive name.
func List(dir string) ([]Entry, error) {
	var result []Entry
	var mu sync.Mutex

	conf := &fastwalk.Config{
		Follow: true, // Follow symlinks to get target info
	}

	pathLen := len(dir)

	err := fastwalk.Walk(conf, dir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			debug.Log(debug.APP, "List: walk error at %q: %v", fullPath, err)
			return nil
		}
		if fullPath == dir {
			return nil
		}

		// Only direct children; fullPath starts with dir.
		relStart := pathLen
		if relStart < len(fullPath) && (fullPath[relStart] == '/' || fullPath[relStart] == '\\') {
			relStart++
		}
		if strings.ContainsAny(fullPath[relStart:], "/\\") {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := fastwalk.StatDirEntry(fullPath, d)
		if err != nil {
			// Broken symlink
			info, err = os.Lstat(fullPath)
			if err != nil {
				return nil
			}
		}

		mu.Lock()
		result = append(result, Entry{
			Name:    d.Name(),
			Path:    fullPath,
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		mu.Unlock()

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].IsDir != result[j].IsDir {
			return result[i].IsDir
		}
		return strings.ToLower(result[i].Name) < strings.ToLower(result[j].Name)
	})
	return result, nil
}
