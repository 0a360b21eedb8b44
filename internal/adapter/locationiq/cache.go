package locationiq

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/observability"
)

// CachedOracle wraps an Oracle with an in-memory LRU cache whose entries
// expire after a TTL (30 days in production; oracle answers for place names
// are effectively static, the TTL only bounds drift). A stale or evicted
// entry is never a correctness problem: a miss simply re-queries.
type CachedOracle struct {
	inner   domain.Oracle
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedOracle creates a cache decorator around an oracle.
func NewCachedOracle(inner domain.Oracle, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedOracle {
	return &CachedOracle{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedOracle) Geocode(ctx context.Context, name string) ([]domain.Coordinate, error) {
	key := CacheKey(name)
	if coords, ok := c.cache.get(key); ok {
		c.metrics.OracleCache.WithLabelValues("hit").Inc()
		return coords, nil
	}
	c.metrics.OracleCache.WithLabelValues("miss").Inc()

	coords, err := c.inner.Geocode(ctx, name)
	if err != nil {
		return coords, err
	}
	// Empty result sets are cached too: a name the oracle cannot resolve
	// today will not resolve on the next bulletin either.
	c.cache.put(key, coords)
	return coords, nil
}

// CacheKey normalizes a place name for cache lookup.
func CacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// lruCache is a thread-safe LRU cache with per-entry TTL expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key       string
	value     []domain.Coordinate
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.clock.Now().Add(c.ttl)
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: c.clock.Now().Add(c.ttl)}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
