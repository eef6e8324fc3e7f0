package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const defaultMemoryCapacity = 128

// MemoryCache is an in-process Cache with a capacity bound. The oldest entry
// is evicted when the bound is hit. It backs single-instance deployments and
// tests where Redis is not available.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = oldest
	now      func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// NewMemoryCache creates a MemoryCache holding at most capacity entries.
// A non-positive capacity uses the default.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToBack(el)
		return nil
	}

	if len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = c.order.PushBack(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := el.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.removeLocked(el)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	return nil
}

func (c *MemoryCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		if entry.expiresAt.IsZero() || c.now().Before(entry.expiresAt) {
			count = decodeCount(entry.value)
		} else {
			c.removeLocked(el)
		}
	}
	count++

	value := encodeCount(count)
	expiresAt := c.now().Add(expiry)
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToBack(el)
	} else {
		if len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
		c.entries[key] = c.order.PushBack(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	}
	return count, nil
}

func (c *MemoryCache) evictOldestLocked() {
	if el := c.order.Front(); el != nil {
		c.removeLocked(el)
	}
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	delete(c.entries, entry.key)
	c.order.Remove(el)
}

func encodeCount(n int64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(n)
		n >>= 8
	}
	return buf
}

func decodeCount(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	var n int64
	for _, c := range b {
		n = n<<8 | int64(c)
	}
	return n
}
