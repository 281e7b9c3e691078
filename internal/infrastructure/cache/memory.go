package cache

import (
	"qkart-storefront/pkg/cache"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a new in-memory cache service
// defaultExpiration: default TTL for items
// cleanupInterval: how often to scan for expired items
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) cache.CacheService {
	return &memoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// NewMemoryCacheWithEviction is NewMemoryCache plus a hook that runs when an item
// is deleted or expires. Overwriting a key with Set does not trigger it.
func NewMemoryCacheWithEviction(defaultExpiration, cleanupInterval time.Duration, onEvicted func(key string, value interface{})) cache.CacheService {
	store := gocache.New(defaultExpiration, cleanupInterval)
	if onEvicted != nil {
		store.OnEvicted(onEvicted)
	}
	return &memoryCache{store: store}
}

func (c *memoryCache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *memoryCache) Set(key string, value interface{}, duration time.Duration) {
	c.store.Set(key, value, duration)
}

func (c *memoryCache) Add(key string, value interface{}, duration time.Duration) bool {
	return c.store.Add(key, value, duration) == nil
}

func (c *memoryCache) Delete(key string) {
	c.store.Delete(key)
}

func (c *memoryCache) Flush() {
	c.store.Flush()
}
