package client

import (
	"sync"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
)

// DefaultCacheSize bounds the cached history.
const DefaultCacheSize = 200

// Cache holds received notifications, most recent first.
type Cache struct {
	mu     sync.RWMutex
	items  []*domain.Notification
	ids    map[string]struct{}
	unread int
	max    int
}

// NewCache creates a cache keeping at most max entries. Zero or less uses
// DefaultCacheSize.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		ids: make(map[string]struct{}),
		max: max,
	}
}

// Merge prepends n and reports whether it was new. A message whose id is
// already cached is ignored, since both channels may carry it.
func (c *Cache) Merge(n *domain.Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.ids[n.ID]; seen {
		return false
	}
	c.ids[n.ID] = struct{}{}
	c.items = append([]*domain.Notification{n.Clone()}, c.items...)
	if !n.Read {
		c.unread++
	}

	for len(c.items) > c.max {
		last := c.items[len(c.items)-1]
		c.items = c.items[:len(c.items)-1]
		delete(c.ids, last.ID)
		if !last.Read {
			c.unread--
		}
	}
	return true
}

// MarkRead flags id as read. Unknown or already read ids are ignored.
func (c *Cache) MarkRead(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range c.items {
		if n.ID == id {
			if n.Read {
				return false
			}
			n.Read = true
			c.unread--
			return true
		}
	}
	return false
}

// Items returns a snapshot, most recent first.
func (c *Cache) Items() []*domain.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.Notification, len(c.items))
	for i, n := range c.items {
		out[i] = n.Clone()
	}
	return out
}

// Unread returns the unread counter.
func (c *Cache) Unread() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unread
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
