package slugs

import (
	"context"
	"sync"
)

// Cache loads the list from its source once per process and serves the
// same list to every scan until a new list is published.
type Cache struct {
	src Provider

	mu     sync.RWMutex
	list   []string
	loaded bool
}

var (
	_ Provider = (*Cache)(nil)
	_ Sink     = (*Cache)(nil)
)

// NewCache wraps src.
func NewCache(src Provider) *Cache {
	return &Cache{src: src}
}

// Slugs returns the cached list, loading it on first use. Load errors are
// not cached.
func (c *Cache) Slugs(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if c.loaded {
		list := c.list
		c.mu.RUnlock()
		return list, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.list, nil
	}
	list, err := c.src.Slugs(ctx)
	if err != nil {
		return nil, err
	}
	c.list = list
	c.loaded = true
	return list, nil
}

// Publish makes entries the cached list.
func (c *Cache) Publish(_ context.Context, entries []Entry) error {
	list := SlugsOf(entries)
	c.mu.Lock()
	c.list = list
	c.loaded = true
	c.mu.Unlock()
	return nil
}
