package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
)

// CachedQuerier wraps a RecordQuerier with an in-memory LRU cache for the
// per-timestep lookups. Entries are keyed by project so an ingestion pass or
// a delete can drop exactly the affected project, and expire after a TTL so
// writes from other processes show up.
type CachedQuerier struct {
	inner  domain.RecordQuerier
	cache  *lruCache
	ttl    time.Duration
	clock  clockwork.Clock
	lookup *prometheus.CounterVec // labels: result={hit,miss}; may be nil

	// mu guards gens. A load only stores its result if the project's
	// generation is unchanged, so a lookup overlapping an invalidation
	// cannot put a stale entry back.
	mu   sync.Mutex
	gens map[int64]uint64
}

// NewCachedQuerier creates a cache decorator around a querier. A maxEntries
// of zero or less disables caching; a ttl of zero or less keeps entries until
// they are invalidated or evicted.
func NewCachedQuerier(inner domain.RecordQuerier, maxEntries int, ttl time.Duration, lookups *prometheus.CounterVec) *CachedQuerier {
	return &CachedQuerier{
		inner:  inner,
		cache:  newLRUCache(maxEntries),
		ttl:    ttl,
		clock:  clockwork.NewRealClock(),
		lookup: lookups,
		gens:   make(map[int64]uint64),
	}
}

// InvalidateProject drops every cached entry of the project, including the
// results of lookups still in flight.
func (c *CachedQuerier) InvalidateProject(projectID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[projectID]++
	c.cache.deletePrefix(projectPrefix(projectID))
}

func projectPrefix(projectID int64) string {
	return fmt.Sprintf("p%d|", projectID)
}

func (c *CachedQuerier) generation(projectID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[projectID]
}

// store puts value under key unless the project was invalidated since gen was read.
func (c *CachedQuerier) store(projectID int64, gen uint64, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[projectID] != gen {
		return
	}
	var expires time.Time
	if c.ttl > 0 {
		expires = c.clock.Now().Add(c.ttl)
	}
	c.cache.put(key, value, expires)
}

func (c *CachedQuerier) observe(hit bool) {
	if c.lookup == nil {
		return
	}
	if hit {
		c.lookup.WithLabelValues("hit").Inc()
		return
	}
	c.lookup.WithLabelValues("miss").Inc()
}

// cached serves key from the cache or loads and stores it. Errors are never cached.
func cached[T any](c *CachedQuerier, projectID int64, key string, load func() (T, error)) (T, error) {
	if v, ok := c.cache.get(key, c.clock.Now()); ok {
		c.observe(true)
		return v.(T), nil
	}
	c.observe(false)
	gen := c.generation(projectID)
	v, err := load()
	if err != nil {
		return v, err
	}
	c.store(projectID, gen, key, v)
	return v, nil
}

func (c *CachedQuerier) GridTimestamps(ctx context.Context, projectID int64) ([]int64, error) {
	key := projectPrefix(projectID) + "timestamps"
	return cached(c, projectID, key, func() ([]int64, error) {
		return c.inner.GridTimestamps(ctx, projectID)
	})
}

func (c *CachedQuerier) GridAt(ctx context.Context, projectID, ts int64) ([]domain.GridRecord, error) {
	key := fmt.Sprintf("%sgrid|%d", projectPrefix(projectID), ts)
	return cached(c, projectID, key, func() ([]domain.GridRecord, error) {
		return c.inner.GridAt(ctx, projectID, ts)
	})
}

func (c *CachedQuerier) StationsAt(ctx context.Context, projectID, ts int64) ([]domain.StationRecord, error) {
	key := fmt.Sprintf("%sstations|%d", projectPrefix(projectID), ts)
	return cached(c, projectID, key, func() ([]domain.StationRecord, error) {
		return c.inner.StationsAt(ctx, projectID, ts)
	})
}

func (c *CachedQuerier) LatestStations(ctx context.Context, projectID int64) ([]domain.StationRecord, error) {
	key := projectPrefix(projectID) + "stations|latest"
	return cached(c, projectID, key, func() ([]domain.StationRecord, error) {
		return c.inner.LatestStations(ctx, projectID)
	})
}

func (c *CachedQuerier) GridBetween(ctx context.Context, projectID, start, end int64) ([]domain.GridRecord, error) {
	return c.inner.GridBetween(ctx, projectID, start, end)
}

func (c *CachedQuerier) GridPage(ctx context.Context, projectID int64, page, size int) ([]domain.GridRecord, int64, error) {
	return c.inner.GridPage(ctx, projectID, page, size)
}

func (c *CachedQuerier) StationsBetween(ctx context.Context, projectID, start, end int64) ([]domain.StationRecord, error) {
	return c.inner.StationsBetween(ctx, projectID, start, end)
}

func (c *CachedQuerier) StationTrend(ctx context.Context, projectID int64, name string, start, end int64) ([]domain.StationRecord, error) {
	return c.inner.StationTrend(ctx, projectID, name, start, end)
}

// lruCache is a simple thread-safe LRU cache.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   any
	expires time.Time // zero means no expiry
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// get returns the value of key unless it is missing or expired at now.
func (c *lruCache) get(key string, now time.Time) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value any, expires time.Time) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) deletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			c.remove(e)
		}
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
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
