package clip

import (
	"context"
	"errors"
	"sync"

	"github.com/forPelevin/clipcraft/internal/ports"
	"github.com/forPelevin/clipcraft/internal/types"
)

// ProbeCache memoises probe results for the lifetime of one run. Concurrent
// callers for the same path share a single probe.
type ProbeCache struct {
	prober ports.Prober

	mu      sync.Mutex
	entries map[string]*probeEntry
}

type probeEntry struct {
	done chan struct{}
	info types.MediaInfo
	err  error
}

func NewProbeCache(p ports.Prober) *ProbeCache {
	return &ProbeCache{prober: p, entries: make(map[string]*probeEntry)}
}

// Probe returns the media info for path. Failures are *ProbeError.
func (c *ProbeCache) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[path]
		if !ok {
			e = &probeEntry{done: make(chan struct{})}
			c.entries[path] = e
			c.mu.Unlock()
			return c.lead(ctx, path, e)
		}
		c.mu.Unlock()

		select {
		case <-e.done:
		case <-ctx.Done():
			return types.MediaInfo{}, &ProbeError{Path: path, Cause: ctx.Err()}
		}
		// The leader gave up on its own context; ours is still live, so go again.
		if isContextErr(e.err) && ctx.Err() == nil {
			continue
		}
		return e.info, e.err
	}
}

func (c *ProbeCache) lead(ctx context.Context, path string, e *probeEntry) (types.MediaInfo, error) {
	info, err := c.prober.Probe(ctx, path)
	if err != nil {
		err = &ProbeError{Path: path, Cause: err}
	}
	e.info, e.err = info, err
	if isContextErr(err) {
		c.mu.Lock()
		delete(c.entries, path)
		c.mu.Unlock()
	}
	close(e.done)
	return info, err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
