package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Tab-closing behaviors for TabsConfig.LastTabBehavior.
const (
	LastTabReopenHome = "reopen_home" // replace the closed tab with one at home
	LastTabKeepEmpty  = "keep_empty"  // leave the workspace with no tabs
)

// Persistence backends for StateConfig.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Tabs    TabsConfig    `json:"tabs"`
	Cache   CacheConfig   `json:"cache"`
	State   StateConfig   `json:"state"`
	Watcher WatcherConfig `json:"watcher"`
}

// TabsConfig holds tab-related settings
type TabsConfig struct {
	NewTabLocation     string `json:"newTabLocation"`  // "current" | "home"
	LastTabBehavior    string `json:"lastTabBehavior"` // "reopen_home" | "keep_empty"
	MaxHistory         int    `json:"maxHistory"`
}

// CacheConfig holds the limits of the three caches
type CacheConfig struct {
	Icons     IconCacheConfig     `json:"icons"`
	Documents DocumentCacheConfig `json:"documents"`
	Preview   PreviewCacheConfig  `json:"preview"`
}

// IconCacheConfig bounds the in-memory icon cache
type IconCacheConfig struct {
	MaxEntries int `json:"maxEntries"`
}

// DocumentCacheConfig bounds the on-disk converted document cache
type DocumentCacheConfig struct {
	Dir      string `json:"dir"`
	MaxBytes int64  `json:"maxBytes"`
}

// PreviewCacheConfig sizes the preview focus window
type PreviewCacheConfig struct {
	Radius    int `json:"radius"`    // neighbors kept on each side of the focused item
	MaxPixels int `json:"maxPixels"` // longest side of a preview
	Workers   int `json:"workers"`   // concurrent prefetch decodes
}

// StateConfig selects where tab state is persisted
type StateConfig struct {
	Backend string `json:"backend"` // "file" | "sqlite"
	Dir     string `json:"dir"`
}

// WatcherConfig holds filesystem watcher settings
type WatcherConfig struct {
	Enabled    bool `json:"enabled"`
	DebounceMs int  `json:"debounceMs"`
}

// Debounce returns the debounce interval as a duration.
func (w WatcherConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a configuration manager for the file at path.
// An empty path selects ConfigPath().
func NewManager(path string) *Manager {
	if path == "" {
		path = ConfigPath()
	}
	return &Manager{
		config: DefaultConfig(),
		path:   path,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Tabs: TabsConfig{
			NewTabLocation:     "current",
			LastTabBehavior:    LastTabReopenHome,
			MaxHistory:         100,
		},
		Cache: CacheConfig{
			Icons:     IconCacheConfig{MaxEntries: 512},
			Documents: DocumentCacheConfig{Dir: defaultCacheDir(), MaxBytes: 64 << 20},
			Preview:   PreviewCacheConfig{Radius: 2, MaxPixels: 1024, Workers: 2},
		},
		State: StateConfig{
			Backend: BackendFile,
			Dir:     filepath.Join(configDir(), "state"),
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 200,
		},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "razornav")
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "razornav", "documents")
	}
	return filepath.Join(configDir(), "cache", "documents")
}

// ConfigPath returns the config file path: ~/.config/razornav/config.json
// This is consistent across all platforms (Windows, macOS, Linux)
func ConfigPath() string {
	return filepath.Join(configDir(), "config.json")
}

// Path returns the file the manager loads from and saves to.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads the configuration from the config file
// If the file doesn't exist, creates it with defaults
// If parsing fails, stores the error and returns defaults
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.parseErr = nil

	// Ensure config directory exists
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Config: failed to create directory %s: %v", dir, err)
		return err
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		log.Printf("Config: creating default config at %s", m.path)
		m.config = DefaultConfig()
		if saveErr := m.saveUnlocked(); saveErr != nil {
			log.Printf("Config: failed to save default config: %v", saveErr)
			return saveErr
		}
		return nil
	}
	if err != nil {
		log.Printf("Config: failed to read %s: %v", m.path, err)
		return err
	}

	// Sections missing from the file keep their defaults.
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("Config: JSON parse error: %v", err)
		m.parseErr = err
		m.config = DefaultConfig()
		return nil // Don't return error - we're using defaults
	}
	cfg.sanitize()

	log.Printf("Config: loaded from %s", m.path)
	m.config = cfg
	return nil
}

// sanitize replaces out-of-range values with defaults.
func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.Tabs.MaxHistory <= 0 {
		c.Tabs.MaxHistory = def.Tabs.MaxHistory
	}
	switch c.Tabs.LastTabBehavior {
	case LastTabReopenHome, LastTabKeepEmpty:
	default:
		c.Tabs.LastTabBehavior = def.Tabs.LastTabBehavior
	}
	switch c.State.Backend {
	case BackendFile, BackendSQLite:
	default:
		c.State.Backend = def.State.Backend
	}
	if c.State.Dir == "" {
		c.State.Dir = def.State.Dir
	}
	if c.Cache.Documents.Dir == "" {
		c.Cache.Documents.Dir = def.Cache.Documents.Dir
	}
	if c.Cache.Documents.MaxBytes <= 0 {
		c.Cache.Documents.MaxBytes = def.Cache.Documents.MaxBytes
	}
	if c.Cache.Icons.MaxEntries <= 0 {
		c.Cache.Icons.MaxEntries = def.Cache.Icons.MaxEntries
	}
	if c.Cache.Preview.Radius <= 0 {
		c.Cache.Preview.Radius = def.Cache.Preview.Radius
	}
	if c.Cache.Preview.MaxPixels <= 0 {
		c.Cache.Preview.MaxPixels = def.Cache.Preview.MaxPixels
	}
	if c.Cache.Preview.Workers <= 0 {
		c.Cache.Preview.Workers = def.Cache.Preview.Workers
	}
	if c.Watcher.DebounceMs <= 0 {
		c.Watcher.DebounceMs = def.Watcher.DebounceMs
	}
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// Update applies fn to the configuration and saves it.
func (m *Manager) Update(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.config)
	m.config.sanitize()
	return m.saveUnlocked()
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetStateBackend updates the persistence backend
func (m *Manager) SetStateBackend(backend string) error {
	if backend != BackendFile && backend != BackendSQLite {
		return fmt.Errorf("unknown state backend %q", backend)
	}
	return m.Update(func(c *Config) { c.State.Backend = backend })
}

// GenerateConfig backs up the config at path, if any, and writes a fresh
// default config. Returns the backup path if a backup was created.
func GenerateConfig(path string) (backupPath string, err error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		timestamp := time.Now().Format("20060102-150405")
		backupPath = filepath.Join(filepath.Dir(path), "config.backup."+timestamp+".json")

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := os.WriteFile(backupPath, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write backup: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return backupPath, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return backupPath, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return backupPath, fmt.Errorf("failed to write config: %w", err)
	}

	return backupPath, nil
}
