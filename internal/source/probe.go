package source

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const probeTimeout = 45 * time.Second

type probeResult struct {
	err error
}

// ProbeCache remembers connectivity checks per source for a TTL so a dead
// upstream is not re-probed on every run. Concurrent runs checking the same
// source share one probe.
type ProbeCache struct {
	cache    *expirable.LRU[string, probeResult]
	inflight singleflight.Group
}

func NewProbeCache(size int, ttl time.Duration) *ProbeCache {
	return &ProbeCache{cache: expirable.NewLRU[string, probeResult](size, nil, ttl)}
}

// Check returns the cached probe outcome for s or probes it now. A caller
// whose ctx ends stops waiting; the probe itself runs on for the others.
func (c *ProbeCache) Check(ctx context.Context, s Source) error {
	name := s.Name()
	if r, ok := c.cache.Get(name); ok {
		return r.err
	}

	// The probe is shared, so it must outlive a caller that gives up.
	ch := c.inflight.DoChan(name, func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
		defer cancel()
		err := s.Probe(probeCtx)
		c.cache.Add(name, probeResult{err: err})
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Forget drops the cached outcome for name.
func (c *ProbeCache) Forget(name string) {
	c.cache.Remove(name)
}
