// Package cache provides a small LRU cache fronting the compiled-script
// serving path, so hot script requests skip the storage backend.
package cache

import (
	"sync"
	"sync/atomic"
)

// node is one entry in the doubly-linked recency list.
type node struct {
	key   string
	value string
	prev  *node
	next  *node
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Size     int     `json:"size"`
	MaxSize  int     `json:"maxSize"`
	HitRatio float64 `json:"hitRatio"`
}

// ScriptCache is an LRU cache of compiled script bodies keyed by an arbitrary
// string (the serving path keys by environment). Safe for concurrent use.
type ScriptCache struct {
	maxSize int
	size    int

	head *node
	tail *node

	entries map[string]*node
	mutex   sync.Mutex

	hits   int64
	misses int64
}

// NewScriptCache creates a cache bounded to maxSize entries.
func NewScriptCache(maxSize int) *ScriptCache {
	if maxSize <= 0 {
		maxSize = 16
	}

	// Sentinel head and tail keep list surgery branch-free.
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &ScriptCache{
		maxSize: maxSize,
		head:    head,
		tail:    tail,
		entries: make(map[string]*node),
	}
}

// Get returns the cached script for key and marks it most recently used.
func (c *ScriptCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	found, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return "", false
	}

	c.moveToFront(found)
	atomic.AddInt64(&c.hits, 1)
	return found.value, true
}

// Set stores or replaces the script for key, evicting the least recently used
// entry when the cache is full.
func (c *ScriptCache) Set(key, script string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.entries[key]; exists {
		existing.value = script
		c.moveToFront(existing)
		return
	}

	fresh := &node{key: key, value: script}
	c.addToFront(fresh)
	c.entries[key] = fresh
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate drops the entry for key if present. Publish and rollback call
// this so the next script request reflects the new state immediately.
func (c *ScriptCache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.entries[key]; exists {
		c.removeNode(existing)
		delete(c.entries, key)
		c.size--
	}
}

// Clear removes all entries and resets the counters.
func (c *ScriptCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.entries = make(map[string]*node)
	c.size = 0

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns current hit/miss counters and occupancy.
func (c *ScriptCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	var hitRatio float64
	if total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return Stats{
		Hits:     hits,
		Misses:   misses,
		Size:     c.size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

func (c *ScriptCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *ScriptCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *ScriptCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *ScriptCache) evictLRU() {
	if c.tail.prev == c.head {
		return
	}
	lru := c.tail.prev
	c.removeNode(lru)
	delete(c.entries, lru.key)
	c.size--
}
