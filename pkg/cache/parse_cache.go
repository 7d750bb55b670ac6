// Package cache provides parsed-query caching for RuneDB.
//
// Parsing the same RuneQL text repeatedly is pure waste; the cache
// keys on the query text and hands back the previously built AST.
//
// Features:
// - LRU eviction for bounded memory
// - TTL expiration for stale entries
// - Thread-safe operations
// - Cache hit/miss statistics
//
// Usage:
//
//	cache := cache.NewParseCache(1000, 5*time.Minute)
//
//	key := cache.Key(text)
//	if q, ok := cache.Get(key); ok {
//		return q // cache hit
//	}
//	q, err := parser.Parse(text)
//	cache.Put(key, q)
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orneryd/runedb/pkg/runeql"
)

// ParseCache is a thread-safe LRU cache for parsed queries, keyed by a
// hash of the query text.
type ParseCache struct {
	mu sync.RWMutex

	maxSize int
	ttl     time.Duration

	// LRU list and map
	list  *list.List
	items map[uint64]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key       uint64
	query     *runeql.Query
	expiresAt time.Time
}

// NewParseCache creates a parse cache holding up to maxSize entries.
// A non-positive maxSize falls back to 1000. ttl of 0 disables
// expiration; entries then only leave via LRU eviction.
func NewParseCache(maxSize int, ttl time.Duration) *ParseCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ParseCache{
		maxSize: maxSize,
		ttl:     ttl,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key hashes query text into a cache key. Identical text yields an
// identical key.
func (c *ParseCache) Key(query string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(query))
	return h.Sum64()
}

// Get retrieves a cached query if present and not expired. A hit moves
// the entry to the front of the LRU list.
//
// The write lock is held across the entry read: Put refreshes entries
// in place, so reading query/expiresAt outside the lock would race
// with a concurrent refresh of the same key.
func (c *ParseCache) Get(key uint64) (*runeql.Query, bool) {
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.list.MoveToFront(elem)
	query := entry.query
	c.mu.Unlock()

	atomic.AddUint64(&c.hits, 1)
	return query, true
}

// Put adds a parsed query. At capacity the least recently used entry
// is evicted; an existing key is refreshed in place.
func (c *ParseCache) Put(key uint64, query *runeql.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.query = query
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{key: key, query: query}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}
	c.items[key] = c.list.PushFront(entry)
}

// Remove drops an entry if present.
func (c *ParseCache) Remove(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear drops every entry. Statistics are preserved.
func (c *ParseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of cached entries.
func (c *ParseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Len()
}

// evictOldest removes the least recently used entry. Caller holds the
// write lock.
func (c *ParseCache) evictOldest() {
	elem := c.list.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// removeElement removes an element from both list and map. Caller
// holds the write lock.
func (c *ParseCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.list.Remove(elem)
	delete(c.items, entry.key)
}

// Stats returns a snapshot of cache performance counters.
func (c *ParseCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)

	c.mu.RLock()
	size := c.list.Len()
	c.mu.RUnlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     // current number of entries
	MaxSize int     // maximum capacity
	Hits    uint64  // number of cache hits
	Misses  uint64  // number of cache misses
	HitRate float64 // hit rate percentage (0-100)
}
