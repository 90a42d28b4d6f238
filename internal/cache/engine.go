package cache

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/razornav/internal/debug"
	"github.com/justyntemme/razornav/internal/fs"
	"github.com/justyntemme/razornav/internal/location"
)

// maxAttempts bounds how often a caller re-joins a computation that was
// abandoned by another caller's cancelled context.
const maxAttempts = 3

type entry[K Key, V any] struct {
	key      K
	value    V
	modTime  time.Time // validation token
	size     int64
	produced time.Time
	seq      uint64
}

// Engine is a thread-safe keyed cache with mtime validation.
//
// The engine lock guards the entry map and footprint only; it is never
// held while a ComputeFunc runs. Concurrent misses for the same key and
// validation token share one computation.
type Engine[K Key, V any] struct {
	opts Options[K, V]

	mu        sync.Mutex
	entries   map[K]*entry[K, V]
	footprint int64
	seq       uint64
	focus     int
	hasFocus  bool
	stats     Stats

	flights singleflight.Group
}

// New creates an engine configured by opts.
func New[K Key, V any](opts Options[K, V]) *Engine[K, V] {
	if opts.Stat == nil {
		opts.Stat = fs.Stat
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Name == "" {
		opts.Name = "cache"
	}
	return &Engine[K, V]{
		opts:    opts,
		entries: make(map[K]*entry[K, V]),
	}
}

// GetOrCompute returns the cached value for key if its stored modification
// time matches the backing resource's current one. Otherwise it runs
// compute, caches the result under the observed modification time, and
// returns it. Errors are returned uncached and leave the cache unchanged.
func (e *Engine[K, V]) GetOrCompute(ctx context.Context, key K, compute ComputeFunc[V]) (V, error) {
	var zero V

	for attempt := 1; ; attempt++ {
		meta, err := e.opts.Stat(key.Source())
		if err != nil {
			return zero, fmt.Errorf("stat %s: %w", key.Source(), err)
		}

		if v, ok := e.lookup(key, meta); ok {
			return v, nil
		}

		v, err := e.join(ctx, key, meta, compute)
		if err == nil {
			return v, nil
		}
		// The shared computation was abandoned by a caller whose context
		// ended; ours is still live, so start a fresh one.
		if isContextErr(err) && ctx.Err() == nil && attempt < maxAttempts {
			continue
		}
		return zero, err
	}
}

// lookup returns a valid cached value, dropping the entry if it is stale.
func (e *Engine[K, V]) lookup(key K, meta fs.Meta) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[key]
	if ok && meta.Exists && ent.modTime.Equal(meta.ModTime) {
		e.stats.Hits++
		return ent.value, true
	}
	if ok {
		debug.Log(debug.CACHE, "%s: stale %s", e.opts.Name, key)
		e.removeLocked(ent, true)
	}
	e.stats.Misses++
	var zero V
	return zero, false
}

func (e *Engine[K, V]) join(ctx context.Context, key K, meta fs.Meta, compute ComputeFunc[V]) (V, error) {
	var zero V

	token := "missing"
	if meta.Exists {
		token = strconv.FormatInt(meta.ModTime.UnixNano(), 10)
	}

	ch := e.flights.DoChan(key.String()+"\x00"+token, func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %s: panic: %v", ErrComputeFailed, key, r)
			}
		}()

		v, size, err := compute(ctx)
		if err != nil {
			return nil, e.classify(key, err)
		}
		if meta.Exists {
			e.insert(key, v, meta.ModTime, size)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (e *Engine[K, V]) classify(key K, err error) error {
	switch {
	case isContextErr(err), errors.Is(err, ErrNotFound), errors.Is(err, ErrComputeFailed):
		return err
	case errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, key.Source(), err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrComputeFailed, key, err)
	}
}

func (e *Engine[K, V]) insert(key K, value V, modTime time.Time, size int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A superseded prefetch may finish after the focus moved away.
	if e.opts.Policy == Focus && e.hasFocus && e.opts.Position != nil && !e.withinLocked(e.opts.Position(key)) {
		debug.Log(debug.CACHE, "%s: %s outside focus window, not stored", e.opts.Name, key)
		return
	}

	// An entry that alone exceeds the limit would be evicted on insert.
	if e.opts.Unit == Bytes && e.opts.Limit > 0 && size > e.opts.Limit {
		debug.Log(debug.CACHE, "%s: %s costs %d over limit %d, not stored", e.opts.Name, key, size, e.opts.Limit)
		if old, ok := e.entries[key]; ok && !old.modTime.After(modTime) {
			e.removeLocked(old, !old.modTime.Equal(modTime))
		}
		return
	}

	if old, ok := e.entries[key]; ok {
		// A computation for a newer token finished first.
		if old.modTime.After(modTime) {
			return
		}
		e.removeLocked(old, !old.modTime.Equal(modTime))
	}

	e.seq++
	ent := &entry[K, V]{
		key:      key,
		value:    value,
		modTime:  modTime,
		size:     size,
		produced: e.opts.Clock(),
		seq:      e.seq,
	}
	e.entries[key] = ent
	e.footprint += e.cost(ent)

	debug.Log(debug.CACHE, "%s: stored %s (footprint %d/%d)", e.opts.Name, key, e.footprint, e.opts.Limit)
	e.evictLocked()
}

func (e *Engine[K, V]) cost(ent *entry[K, V]) int64 {
	if e.opts.Unit == Bytes {
		return ent.size
	}
	return 1
}

// removeLocked drops ent; notify controls whether OnEvict runs.
func (e *Engine[K, V]) removeLocked(ent *entry[K, V], notify bool) {
	delete(e.entries, ent.key)
	e.footprint -= e.cost(ent)
	if notify && e.opts.OnEvict != nil {
		e.opts.OnEvict(ent.key, ent.value)
	}
}

func (e *Engine[K, V]) evictEntryLocked(ent *entry[K, V]) {
	e.removeLocked(ent, true)
	e.stats.Evictions++
	debug.Log(debug.CACHE, "%s: evicted %s", e.opts.Name, ent.key)
}

// evictLocked removes the oldest produced entries while over the limit.
// Must be called with lock held.
func (e *Engine[K, V]) evictLocked() {
	if e.opts.Limit <= 0 || e.footprint <= e.opts.Limit {
		return
	}

	for _, ent := range e.byAgeLocked() {
		if e.footprint <= e.opts.Limit {
			break
		}
		e.evictEntryLocked(ent)
	}
}

// byAgeLocked returns entries oldest produced first, ties by insertion order.
func (e *Engine[K, V]) byAgeLocked() []*entry[K, V] {
	ordered := make([]*entry[K, V], 0, len(e.entries))
	for _, ent := range e.entries {
		ordered = append(ordered, ent)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.produced.Equal(b.produced) {
			return a.produced.Before(b.produced)
		}
		return a.seq < b.seq
	})
	return ordered
}

// SetFocus moves the focus position and, under the Focus policy, evicts
// every entry farther than Radius from it. It returns the number evicted.
func (e *Engine[K, V]) SetFocus(pos int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focus, e.hasFocus = pos, true
	if e.opts.Policy != Focus || e.opts.Position == nil {
		return 0
	}

	evicted := 0
	for _, ent := range e.byAgeLocked() {
		if !e.withinLocked(e.opts.Position(ent.key)) {
			e.evictEntryLocked(ent)
			evicted++
		}
	}
	if evicted > 0 {
		debug.Log(debug.CACHE, "%s: focus %d evicted %d", e.opts.Name, pos, evicted)
	}
	return evicted
}

// InWindow reports whether pos lies within Radius of the focus. Without a
// focus every position is in the window.
func (e *Engine[K, V]) InWindow(pos int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasFocus {
		return true
	}
	return e.withinLocked(pos)
}

func (e *Engine[K, V]) withinLocked(pos int) bool {
	d := pos - e.focus
	return d <= e.opts.Radius && -d <= e.opts.Radius
}

// Peek returns the cached value for key without validating it.
func (e *Engine[K, V]) Peek(key K) (V, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[key]; ok {
		return ent.value, true
	}
	var zero V
	return zero, false
}

// Forget drops entries whose source is path or lies beneath it. It is the
// best-effort response to a change notification; lookups detect changes
// on their own regardless.
func (e *Engine[K, V]) Forget(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, ent := range e.entries {
		if location.Contains(path, ent.key.Source()) {
			e.removeLocked(ent, true)
			n++
		}
	}
	if n > 0 {
		debug.Log(debug.CACHE, "%s: forgot %d entries under %s", e.opts.Name, n, path)
	}
	return n
}

// Clear removes all entries.
func (e *Engine[K, V]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.entries {
		e.removeLocked(ent, true)
	}
	debug.Log(debug.CACHE, "%s: cleared", e.opts.Name)
}

// Len returns the number of cached entries.
func (e *Engine[K, V]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// Footprint returns the tracked footprint in the engine's Unit.
func (e *Engine[K, V]) Footprint() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.footprint
}

// Limit returns the configured footprint limit.
func (e *Engine[K, V]) Limit() int64 {
	return e.opts.Limit
}

// Stats returns a copy of the engine counters.
func (e *Engine[K, V]) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Entries = len(e.entries)
	s.Footprint = e.footprint
	return s
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
