package micropub

import (
	"sync"
	"time"
)

// categoryCache memoizes the category listing served in q=config
// responses, so discovery requests do not scan the content store every
// time. Publishing invalidates it.
type categoryCache struct {
	mu      sync.RWMutex
	values  []string
	fetched time.Time
	ttl     time.Duration

	store    ContentStore
	parent   string
	taxonomy string
}

func newCategoryCache(store ContentStore, cfg CategoryConfig, ttl time.Duration) *categoryCache {
	return &categoryCache{
		store:    store,
		parent:   cfg.Parent,
		taxonomy: cfg.Taxonomy,
		ttl:      ttl,
	}
}

func (c *categoryCache) valid() bool {
	return c.values != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *categoryCache) Invalidate() {
	c.mu.Lock()
	c.values = nil
	c.mu.Unlock()
}

// List returns the cached categories, reloading from the store when the
// entry is stale.
func (c *categoryCache) List() ([]string, error) {
	c.mu.RLock()
	if c.valid() {
		values := c.values
		c.mu.RUnlock()
		return values, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.values, nil
	}
	values, err := c.store.Categories(c.parent, c.taxonomy)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	c.values = values
	c.fetched = time.Now()
	return values, nil
}
