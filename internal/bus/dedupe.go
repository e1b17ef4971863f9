package bus

import (
	"container/list"
	"sync"
	"time"
)

// DedupeCache remembers recently seen keys so redelivered bridge messages
// are processed once. Entries expire after ttl; the oldest entries are
// evicted beyond maxSize.
type DedupeCache struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu    sync.Mutex
	order *list.List // of dedupeEntry, oldest first
	index map[string]*list.Element
}

type dedupeEntry struct {
	key  string
	seen time.Time
}

func NewDedupeCache(ttl time.Duration, maxSize int) *DedupeCache {
	return &DedupeCache{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// IsDuplicate reports whether key was seen within ttl, recording it if not.
func (c *DedupeCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	if el, ok := c.index[key]; ok {
		el.Value = dedupeEntry{key: key, seen: now}
		c.order.MoveToBack(el)
		return true
	}

	c.index[key] = c.order.PushBack(dedupeEntry{key: key, seen: now})
	for c.maxSize > 0 && c.order.Len() > c.maxSize {
		oldest := c.order.Front()
		delete(c.index, oldest.Value.(dedupeEntry).key)
		c.order.Remove(oldest)
	}
	return false
}

// Len returns the number of remembered keys.
func (c *DedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *DedupeCache) pruneLocked(now time.Time) {
	for el := c.order.Front(); el != nil; el = c.order.Front() {
		e := el.Value.(dedupeEntry)
		if now.Sub(e.seen) <= c.ttl {
			return
		}
		delete(c.index, e.key)
		c.order.Remove(el)
	}
}
