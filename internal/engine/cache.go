package engine

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheSize is the default maximum number of cache entries.
const DefaultCacheSize = 1024

// CacheEntry is a cached step output.
type CacheEntry struct {
	// Key is the canonical cache key.
	Key string
	// Output is the cached executor response.
	Output map[string]any
	// CreatedAt is when the entry was written.
	CreatedAt time.Time
	// Duration is the observed execution duration at creation.
	Duration time.Duration
	// Hits counts how many times the entry was served.
	Hits int
}

// CacheStats summarizes cache effectiveness.
type CacheStats struct {
	// Size is the current number of entries.
	Size int `json:"size"`
	// HitRate is hits over total lookups.
	HitRate float64 `json:"hit_rate"`
	// TotalEntries is the cumulative number of entries ever written.
	TotalEntries int `json:"total_entries"`
}

// Cache is an LRU map of step results keyed by canonical cache key.
// All operations are atomic per key: a read-modify-write (lookup, hit
// increment, recency update) happens as one operation under the lock,
// so concurrent steps in a group never lose updates.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used

	hits    uint64
	lookups uint64
	written int
}

// NewCache creates a Cache evicting least-recently-used entries past
// maxEntries. Non-positive sizes fall back to the default.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the entry for the key, bumping its hit counter and
// recency. The returned entry is a copy.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	el, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}

	c.hits++
	entry := el.Value.(*CacheEntry)
	entry.Hits++
	c.order.MoveToFront(el)
	return *entry, true
}

// Put writes or replaces the entry for the key, evicting the
// least-recently-used entry if the cache is full.
func (c *Cache) Put(key string, output map[string]any, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*CacheEntry)
		entry.Output = output
		entry.Duration = duration
		entry.CreatedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*CacheEntry).Key)
		}
	}

	entry := &CacheEntry{
		Key:       key,
		Output:    output,
		CreatedAt: time.Now(),
		Duration:  duration,
	}
	c.entries[key] = c.order.PushFront(entry)
	c.written++
}

// Entries returns a snapshot of all entries, least recently used
// first, so reloading them in order reproduces the recency ranking.
func (c *Cache) Entries() []CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CacheEntry, 0, c.order.Len())
	for el := c.order.Back(); el != nil; el = el.Prev() {
		out = append(out, *el.Value.(*CacheEntry))
	}
	return out
}

// Seed inserts previously exported entries, preserving their creation
// times and hit counts. Existing keys are replaced.
func (c *Cache) Seed(entries []CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if el, ok := c.entries[e.Key]; ok {
			*el.Value.(*CacheEntry) = e
			c.order.MoveToFront(el)
			continue
		}
		if c.order.Len() >= c.maxEntries {
			oldest := c.order.Back()
			if oldest != nil {
				c.order.Remove(oldest)
				delete(c.entries, oldest.Value.(*CacheEntry).Key)
			}
		}
		entry := e
		c.entries[e.Key] = c.order.PushFront(&entry)
		c.written++
	}
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:         len(c.entries),
		TotalEntries: c.written,
	}
	if c.lookups > 0 {
		stats.HitRate = float64(c.hits) / float64(c.lookups)
	}
	return stats
}

// Size returns the current number of entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries and resets statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order = list.New()
	c.hits = 0
	c.lookups = 0
	c.written = 0
}
