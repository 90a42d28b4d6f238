// Package cache provides a generic keyed cache whose entries are validated
// against the modification time of a backing file on every lookup, with a
// bounded footprint and deterministic eviction.
//
// One Engine implementation backs the icon, document and preview caches;
// they differ only in Options.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/justyntemme/razornav/internal/fs"
)

var (
	// ErrNotFound reports that the backing resource did not exist when the
	// value was computed. It is never cached.
	ErrNotFound = errors.New("resource not found")

	// ErrComputeFailed wraps any other error returned by a ComputeFunc.
	ErrComputeFailed = errors.New("compute failed")
)

// Key identifies a cached value.
type Key interface {
	comparable
	// Source is the path of the backing resource whose modification time
	// validates the entry.
	Source() string
	// String uniquely identifies the key; it names in-flight computations.
	String() string
}

// ComputeFunc produces the value for a missed key along with its size in
// bytes. It should honor ctx so abandoned work stops early.
type ComputeFunc[V any] func(ctx context.Context) (V, int64, error)

// Unit is what an Engine's Limit counts.
type Unit int

const (
	Entries Unit = iota // number of entries
	Bytes               // sum of entry sizes
)

// Policy selects how entries are evicted.
type Policy int

const (
	// Age evicts the least recently produced entries first, ties broken by
	// insertion order, until the footprint is within Limit.
	Age Policy = iota
	// Focus additionally evicts every entry farther than Radius from the
	// focus position whenever SetFocus moves it.
	Focus
)

func (p Policy) String() string {
	switch p {
	case Focus:
		return "distance-from-focus"
	default:
		return "age-based"
	}
}

// Options configure an Engine.
type Options[K Key, V any] struct {
	Name   string
	Policy Policy
	Unit   Unit
	Limit  int64 // 0 means unbounded

	// Radius and Position are used by the Focus policy.
	Radius   int
	Position func(K) int

	// Stat observes the backing resource. Defaults to fs.Stat.
	Stat fs.StatFunc
	// Clock stamps produced entries. Defaults to time.Now.
	Clock func() time.Time
	// OnEvict runs with the engine lock held whenever an entry leaves the
	// cache. It must not call back into the engine.
	OnEvict func(key K, value V)
}

// Stats are cumulative counters for one engine.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Footprint int64
}
