// Package location normalizes filesystem paths into Locations, the keys used
// by tab history and the preview caches.
package location

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrInvalidLocation is returned for empty, relative or malformed paths.
var ErrInvalidLocation = errors.New("invalid location")

// Normalize converts path into its canonical Location form:
// separators are converted to the OS separator, the path is cleaned and,
// on case-insensitive platforms, folded to lower case.
// Normalize(Normalize(p)) == Normalize(p) for every accepted p.
func Normalize(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidLocation)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrInvalidLocation)
	}
	if !IsAbsolute(path) {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidLocation, path)
	}
	return foldCase(filepath.Clean(filepath.FromSlash(path))), nil
}

// MustNormalize is Normalize for paths known to be valid (tests, constants).
func MustNormalize(path string) string {
	loc, err := Normalize(path)
	if err != nil {
		panic(err)
	}
	return loc
}

// Expand expands and normalizes user input, handling:
// - ~ for home directory
// - Relative paths (../, ./), joined with cwd
// - Absolute paths
// - Windows drive letters (C:, D:, etc.)
func Expand(input, home, cwd string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Normalize(cwd)
	}

	if strings.HasPrefix(input, "~") {
		if input == "~" {
			return Normalize(home)
		}
		if strings.HasPrefix(input, "~/") || strings.HasPrefix(input, "~\\") {
			return Normalize(filepath.Join(home, input[2:]))
		}
	}

	if IsAbsolute(input) {
		return Normalize(input)
	}

	if cwd == "" {
		return "", fmt.Errorf("%w: relative path %q without working directory", ErrInvalidLocation, input)
	}
	return Normalize(filepath.Join(cwd, input))
}

// IsAbsolute checks if a path is absolute, handling both Unix and Windows paths.
func IsAbsolute(path string) bool {
	if len(path) == 0 {
		return false
	}

	// Unix absolute path
	if path[0] == '/' {
		return true
	}

	if runtime.GOOS == "windows" {
		// Drive letter paths: C:\, D:\, C:/, etc.
		if len(path) >= 2 && isLetter(path[0]) && path[1] == ':' {
			return true
		}
		// UNC paths: \\server\share
		if len(path) >= 2 && path[0] == '\\' && path[1] == '\\' {
			return true
		}
	}

	return false
}

// Title returns the display title for a location: its base name, or the
// location itself for filesystem roots.
func Title(loc string) string {
	title := filepath.Base(loc)
	if title == "" || title == "/" || title == "." || title == string(filepath.Separator) {
		return loc
	}
	return title
}

// Contains reports whether loc is dir or lies beneath it.
func Contains(dir, loc string) bool {
	if dir == loc {
		return true
	}
	rel, err := filepath.Rel(dir, loc)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
