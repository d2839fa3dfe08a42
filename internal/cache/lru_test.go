package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScriptCache(t *testing.T) {
	c := NewScriptCache(100)
	assert.Equal(t, 100, c.maxSize)
	assert.Equal(t, 0, c.size)
	assert.NotNil(t, c.entries)
	assert.Equal(t, c.tail, c.head.next)
	assert.Equal(t, c.head, c.tail.prev)
}

func TestNewScriptCache_DefaultSize(t *testing.T) {
	c := NewScriptCache(0)
	assert.Equal(t, 16, c.maxSize)
}

func TestScriptCache_SetAndGet(t *testing.T) {
	c := NewScriptCache(2)

	_, found := c.Get("prod")
	assert.False(t, found)

	c.Set("prod", "/** v1 **/")
	value, found := c.Get("prod")
	assert.True(t, found)
	assert.Equal(t, "/** v1 **/", value)

	// Overwrite replaces in place without growing.
	c.Set("prod", "/** v2 **/")
	value, _ = c.Get("prod")
	assert.Equal(t, "/** v2 **/", value)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestScriptCache_Eviction(t *testing.T) {
	c := NewScriptCache(2)

	c.Set("a", "script-a")
	c.Set("b", "script-b")

	// Touch "a" so "b" becomes the eviction candidate.
	_, found := c.Get("a")
	assert.True(t, found)

	c.Set("c", "script-c")

	_, foundA := c.Get("a")
	_, foundB := c.Get("b")
	_, foundC := c.Get("c")
	assert.True(t, foundA)
	assert.False(t, foundB)
	assert.True(t, foundC)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestScriptCache_Invalidate(t *testing.T) {
	c := NewScriptCache(4)

	c.Set("prod", "/** live **/")
	c.Invalidate("prod")

	_, found := c.Get("prod")
	assert.False(t, found)

	// Invalidating a missing key is a no-op.
	c.Invalidate("never-set")
	assert.Equal(t, 0, c.Stats().Size)
}

func TestScriptCache_Clear(t *testing.T) {
	c := NewScriptCache(4)
	c.Set("a", "x")
	c.Set("b", "y")
	c.Get("a")
	c.Get("missing")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	_, found := c.Get("a")
	assert.False(t, found)
}

func TestScriptCache_Stats(t *testing.T) {
	c := NewScriptCache(4)
	c.Set("prod", "script")

	c.Get("prod")    // hit
	c.Get("prod")    // hit
	c.Get("missing") // miss

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRatio, 0.0001)
	assert.Equal(t, 4, stats.MaxSize)
}

func TestScriptCache_ConcurrentAccess(t *testing.T) {
	c := NewScriptCache(32)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%40)
				c.Set(key, fmt.Sprintf("script-%d-%d", worker, j))
				c.Get(key)
				if j%17 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, 32)
}
