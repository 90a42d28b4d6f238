//go:build windows || darwin

package location

import "strings"

// foldCase lower-cases locations on case-insensitive filesystems so that
// differently-cased spellings share history entries and cache keys.
func foldCase(path string) string {
	return strings.ToLower(path)
}
