package video

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	item     domain.QueueItem
	storedAt time.Time
}

// Cache maps (service, id) to resolved metadata and coalesces concurrent
// fetches of the same key into one upstream call.
// A zero ttl keeps entries until they are deleted.
type Cache struct {
	mu      sync.RWMutex
	entries map[domain.VideoKey]cacheEntry
	ttl     time.Duration
	now     func() time.Time

	inflight singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[domain.VideoKey]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) Get(key domain.VideoKey) (domain.QueueItem, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return domain.QueueItem{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.Delete(key)
		return domain.QueueItem{}, false
	}
	return e.item, true
}

func (c *Cache) Set(item domain.QueueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[item.Key()] = cacheEntry{item: item, storedAt: c.now()}
}

func (c *Cache) Delete(key domain.VideoKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrFetch returns the cached item or runs fetch once for all concurrent
// callers of the same key. A caller whose ctx ends stops waiting, but the
// shared fetch keeps running for the others.
func (c *Cache) GetOrFetch(ctx context.Context, key domain.VideoKey, fetch func() (domain.QueueItem, error)) (domain.QueueItem, error) {
	if item, ok := c.Get(key); ok {
		return item, nil
	}
	ch := c.inflight.DoChan(key.Service+"\x00"+key.ID, func() (any, error) {
		if item, ok := c.Get(key); ok {
			return item, nil
		}
		item, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(item)
		return item, nil
	})
	select {
	case <-ctx.Done():
		return domain.QueueItem{}, &domain.VideoResolutionError{Service: key.Service, ID: key.ID, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return domain.QueueItem{}, res.Err
		}
		return res.Val.(domain.QueueItem), nil
	}
}
