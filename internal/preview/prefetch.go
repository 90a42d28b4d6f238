package preview

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/justyntemme/razornav/internal/debug"
)

// DefaultWorkers bounds concurrent decodes during prefetch.
const DefaultWorkers = 2

// Prefetcher warms the previews around the focused item in the background.
// Each Focus supersedes the previous one; its unfinished work is cancelled.
type Prefetcher struct {
	cache   *Cache
	radius  int
	workers int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPrefetcher creates a prefetcher for c.
func NewPrefetcher(c *Cache, radius, workers int) *Prefetcher {
	if radius <= 0 {
		radius = DefaultRadius
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Prefetcher{cache: c, radius: radius, workers: workers}
}

// Focus makes items[index] the viewed item, evicts previews outside the
// window and starts warming the window, nearest first. It returns without
// waiting for the prefetch.
func (p *Prefetcher) Focus(ctx context.Context, items []string, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	p.cache.SetItems(items)
	p.cache.SetFocus(index)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	targets := window(items, index, p.radius)
	go func() {
		defer close(done)
		p.warm(ctx, targets)
	}()
}

func (p *Prefetcher) warm(ctx context.Context, targets []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, path := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := p.cache.Get(gctx, path); err != nil {
				debug.Log(debug.PREVIEW, "prefetch %s: %v", path, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until the current prefetch finishes or is cancelled.
func (p *Prefetcher) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop cancels any running prefetch.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.Wait()
}

// window returns items within radius of index, nearest first.
func window(items []string, index, radius int) []string {
	if index < 0 || index >= len(items) {
		return nil
	}
	targets := []string{items[index]}
	for d := 1; d <= radius; d++ {
		if i := index + d; i < len(items) {
			targets = append(targets, items[i])
		}
		if i := index - d; i >= 0 {
			targets = append(targets, items[i])
		}
	}
	return targets
}
