package engine

import (
	"container/list"
	"sync"

	"github.com/nelhattab/electratrack/internal/tabular"
)

// Cache memoizes filter results by (dataset version, spec key). The engine
// itself stays pure; callers that recompute on every interaction put their
// results here. Eviction is LRU by entry count.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry struct {
	key string
	ds  *tabular.Dataset
}

// NewCache returns a cache holding at most max filtered datasets.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 64
	}
	return &Cache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func cacheKey(version, specKey string) string {
	return version + "|" + specKey
}

// Get returns the memoized result for the dataset version and spec key.
func (c *Cache) Get(version, specKey string) (*tabular.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[cacheKey(version, specKey)]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).ds, true
}

// Put stores a filter result, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Put(version, specKey string, ds *tabular.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(version, specKey)
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).ds = ds
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, ds: ds})
	for c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*cacheEntry).key)
	}
}

// FilterCached is Filter behind the cache: hit returns the memoized dataset,
// miss computes, stores, and returns it.
func (c *Cache) FilterCached(d *tabular.Dataset, spec FilterSpec) *tabular.Dataset {
	key := spec.Key()
	if out, ok := c.Get(d.Version, key); ok {
		return out
	}
	out := Filter(d, spec)
	c.Put(d.Version, key, out)
	return out
}

// Len returns the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
