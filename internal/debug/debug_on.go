//go:build debug

// Package debug provides a centralized, categorized debug logging system.
// Build with -tags debug to enable logging.
package debug

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	// Core categories
	APP       Category = "APP"       // Process root, wiring, shutdown
	NAV       Category = "NAV"       // History visits, back/forward
	TABS      Category = "TABS"      // Tab add/remove/reorder/activate
	WORKSPACE Category = "WORKSPACE" // Workspace lifecycle and switching
	STORE     Category = "STORE"     // Persisted state backends
	CACHE     Category = "CACHE"     // Cache hits, misses, evictions
	WATCH     Category = "WATCH"     // Filesystem change notifications

	// Detailed subcategories (use sparingly - can be verbose)
	PREVIEW  Category = "PREVIEW"  // Preview decoding and prefetch
	CACHE_IO Category = "CACHE_IO" // Disk cache file writes and sweeps
)

var (
	// enabledCategories controls which categories are active
	// By default, all main categories are enabled
	enabledCategories = map[Category]bool{
		APP:       true,
		NAV:       true,
		TABS:      true,
		WORKSPACE: true,
		STORE:     true,
		CACHE:     true,
		WATCH:     true,
		// Verbose categories disabled by default
		PREVIEW:  false,
		CACHE_IO: false,
	}
	categoryMu sync.RWMutex

	// Output destination
	logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

func init() {
	// Format: RAZORNAV_DEBUG=NAV,CACHE or RAZORNAV_DEBUG=all or RAZORNAV_DEBUG=none
	if env := os.Getenv("RAZORNAV_DEBUG"); env != "" {
		categoryMu.Lock()
		defer categoryMu.Unlock()

		env = strings.ToUpper(env)
		switch env {
		case "ALL":
			for cat := range enabledCategories {
				enabledCategories[cat] = true
			}
		case "NONE":
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
		default:
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
			for _, cat := range strings.Split(env, ",") {
				cat = strings.TrimSpace(cat)
				enabledCategories[Category(cat)] = true
			}
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}

	msg := fmt.Sprintf(format, args...)
	logger.Printf("[%s] %s", cat, msg)
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables all debug categories including verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}
