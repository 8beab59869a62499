package snapcache

import (
	"context"
	"sync"
	"time"

	"github.com/karttaio/kartta/telemetry"
	"github.com/karttaio/kartta/types"
)

// Cache is the read-through tier in front of the Store. A hit answers
// from memory in O(1); a memory miss falls through to the persistent
// tier and promotes anything still inside the TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	ttl     time.Duration
	store   *Store
	metrics *telemetry.DiscoveryMetrics
	logger  *telemetry.Logger
	now     func() time.Time
}

type cacheEntry struct {
	snap    *types.Snapshot
	expires time.Time
}

// NewCache builds the memory tier over an opened store. metrics may be
// nil.
func NewCache(store *Store, ttl time.Duration, metrics *telemetry.DiscoveryMetrics) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		store:   store,
		metrics: metrics,
		logger:  telemetry.NewLogger("snapcache"),
		now:     time.Now,
	}
}

// Get returns the cached snapshot for the account if one is still inside
// its TTL.
func (c *Cache) Get(ctx context.Context, accountRef string) (*types.Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[accountRef]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expires) {
		c.hit(ctx, accountRef)
		return entry.snap, true
	}

	// Fall through to the persistent tier; a snapshot written by the
	// background refresher is as good as one we computed ourselves.
	snap, err := c.store.Latest(accountRef)
	if err != nil || snap == nil {
		c.miss(ctx, accountRef)
		return nil, false
	}
	if c.now().After(snap.FinishedAt.Add(c.ttl)) {
		c.miss(ctx, accountRef)
		return nil, false
	}

	c.mu.Lock()
	c.entries[accountRef] = cacheEntry{snap: snap, expires: snap.FinishedAt.Add(c.ttl)}
	c.mu.Unlock()

	c.hit(ctx, accountRef)
	return snap, true
}

// Put stores a freshly assembled snapshot in both tiers.
func (c *Cache) Put(ctx context.Context, snap *types.Snapshot) error {
	if _, err := c.store.Save(snap); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[snap.AccountRef] = cacheEntry{snap: snap, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	c.logger.LogCacheEvent(ctx, "put", snap.AccountRef)
	return nil
}

// Invalidate drops the account from both tiers. The next Get misses and
// forces a fresh discovery.
func (c *Cache) Invalidate(ctx context.Context, accountRef string) error {
	c.mu.Lock()
	delete(c.entries, accountRef)
	c.mu.Unlock()

	c.logger.LogCacheEvent(ctx, "invalidate", accountRef)
	return c.store.Delete(accountRef)
}

// InvalidateAll drops every cached account.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()

	for _, meta := range c.store.List() {
		if err := c.store.Delete(meta.AccountRef); err != nil {
			return err
		}
	}
	c.logger.LogCacheEvent(ctx, "invalidate_all", "*")
	return nil
}

func (c *Cache) hit(ctx context.Context, accountRef string) {
	c.logger.LogCacheEvent(ctx, "hit", accountRef)
	if c.metrics != nil {
		c.metrics.CacheHits.Add(ctx, 1)
	}
}

func (c *Cache) miss(ctx context.Context, accountRef string) {
	c.logger.LogCacheEvent(ctx, "miss", accountRef)
	if c.metrics != nil {
		c.metrics.CacheMisses.Add(ctx, 1)
	}
}
