package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/riskforge/agentcore/pkg/clock"
)

// Cache is the hash-keyed, TTL-bound, max-entry-bound response cache. It is
// advisory: a miss is never an error. High-temperature calls (> 0.5) are
// never inserted.
type Cache struct {
	mu         sync.Mutex
	clock      clock.Clock
	ttl        time.Duration
	maxEntries int
	entries    map[string]*entry
	order      []string // insertion order, oldest-first, for eviction

	hits   int64
	misses int64
}

type entry struct {
	value      Response
	insertedAt int64
	expiresAt  int64
	cacheHits  int
}

const (
	// DefaultTTL is the cache entry lifetime.
	DefaultTTL = 1 * time.Hour
	// DefaultMaxEntries bounds cache memory.
	DefaultMaxEntries = 10_000
	// NoCacheTemperature is the threshold above which a call is never cached.
	NoCacheTemperature = 0.5
)

// NewCache creates a response cache with the given TTL and entry cap. A
// zero ttl or maxEntries falls back to the package defaults.
func NewCache(clk clock.Clock, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		clock:      clk,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Key hashes the call-defining fields into a cache key.
func Key(model string, temperature float64, system, user string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.4f|%s|%s", model, temperature, system, user)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key if present and unexpired. Get and
// the TTL eviction it performs are atomic with respect to each other.
func (c *Cache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Response{}, false
	}
	if c.clock.Now() >= e.expiresAt {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses++
		return Response{}, false
	}

	e.cacheHits++
	c.hits++
	resp := e.value
	resp.Cached = true
	return resp, true
}

// Set inserts value under key unless temperature exceeds NoCacheTemperature,
// in which case Set is a no-op and a subsequent Get returns a miss.
func (c *Cache) Set(key string, value Response, temperature float64) {
	if temperature > NoCacheTemperature {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = &entry{
		value:      value,
		insertedAt: now,
		expiresAt:  now + c.ttl.Milliseconds(),
	}

	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Stats reports aggregate hit/miss counts for observability.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// HitRate returns hits / (hits+misses), or 0 when there have been no calls.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
