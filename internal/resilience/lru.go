package resilience

import (
	"container/list"
	"sync"
	"time"
)

// lruEntry is the value stored in the intrusive list. A zero ExpiresAt means
// the entry never expires.
type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache is a bounded LRU map with optional per-entry TTL. The most recently
// used entry sits at the back of the list; eviction removes the front. A
// periodic sweep purges expired entries even for keys that are never read
// again.
type Cache[K comparable, V any] struct {
	maxSize int

	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element

	hits   uint64
	misses uint64

	done chan struct{}
	once sync.Once

	now func() time.Time
}

// NewCache creates a cache holding at most maxSize entries.
func NewCache[K comparable, V any](maxSize int) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache[K, V]{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[K]*list.Element),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Set stores a value without expiry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. A non-positive ttl means
// no expiry. If the cache is full, the least recently used entry is evicted
// first.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*lruEntry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		c.ll.MoveToBack(el)
		return
	}

	if c.ll.Len() >= c.maxSize {
		c.evictOldest()
	}

	el := c.ll.PushBack(&lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el
}

// Get returns the value for key. A hit moves the entry to the most recently
// used position; a hit on an expired entry deletes it and counts as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	ent := el.Value.(*lruEntry[K, V])
	if !ent.expiresAt.IsZero() && c.now().After(ent.expiresAt) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}

	c.ll.MoveToBack(el)
	c.hits++
	return ent.value, true
}

// Delete removes key from the cache.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of entries, including any not yet swept.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache[K, V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// StartSweeper launches a background goroutine that purges expired entries
// every interval, bounding memory even for cold keys. Stop with Close.
func (c *Cache[K, V]) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Close stops the sweeper goroutine.
func (c *Cache[K, V]) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache[K, V]) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*lruEntry[K, V])
		if !ent.expiresAt.IsZero() && now.After(ent.expiresAt) {
			c.removeElement(el)
		}
		el = next
	}
}

// evictOldest removes the least recently used entry. Caller must hold the
// mutex.
func (c *Cache[K, V]) evictOldest() {
	if el := c.ll.Front(); el != nil {
		c.removeElement(el)
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	ent := el.Value.(*lruEntry[K, V])
	c.ll.Remove(el)
	delete(c.items, ent.key)
}
