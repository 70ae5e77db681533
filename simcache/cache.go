// Package simcache memoizes selection pressure scores within one auto-evo run.
package simcache

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one memoized score: a pressure applied in a patch to a species.
type Key struct {
	Pressure string
	Patch    uint32
	Species  uint32
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("hits", s.Hits),
		slog.Uint64("misses", s.Misses),
		slog.Int("entries", s.Entries),
		slog.Float64("hit_rate", s.HitRate()),
	)
}

// Cache is a bounded, concurrency-safe score memo. A nil *Cache computes
// every score directly.
type Cache struct {
	scores *lru.Cache[Key, float64]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most size scores.
func New(size int) (*Cache, error) {
	scores, err := lru.New[Key, float64](size)
	if err != nil {
		return nil, fmt.Errorf("simcache: %w", err)
	}
	return &Cache{scores: scores}, nil
}

// GetOrCompute returns the memoized score for key, computing and storing it on a miss.
// Concurrent misses on the same key may compute twice; scores are pure so either result is kept.
func (c *Cache) GetOrCompute(key Key, compute func() float64) float64 {
	if c == nil {
		return compute()
	}
	if v, ok := c.scores.Get(key); ok {
		c.hits.Add(1)
		return v
	}
	c.misses.Add(1)
	v := compute()
	c.scores.Add(key, v)
	return v
}

// Stats returns a point-in-time view of cache counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.scores.Len(),
	}
}

// Purge drops all memoized scores and resets counters.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.scores.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}
