// Package cache is the barcode to product cache consulted before any remote lookup.
//
// The cache is cache-aside: it never fetches on its own, callers Set what they
// resolved. Entries live in a durable Store so they survive restarts, with an
// optional in-process LRU tier in front of it. Freshness is always judged from
// the entry's FetchedAt, whichever tier served it.
//
// The memory tier belongs to one process. Evictions and Clear made through the
// same Cache reach both tiers; changes another process makes to the Store are
// only seen once the memory entry expires or is pushed out.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/franckalain/grocerylens/internal/models"
)

// Store is the durable key-value storage behind the cache.
type Store interface {
	// GetCacheEntry returns nil, nil when barcode is not stored.
	GetCacheEntry(ctx context.Context, barcode string) (*models.CacheEntry, error)
	// PutCacheEntry inserts or replaces the entry for entry.Barcode.
	PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error
	// PruneCacheEntries deletes entries fetched before cutoff.
	PruneCacheEntries(ctx context.Context, cutoff time.Time) (int64, error)
	// TrimCacheEntries deletes the oldest entries until at most keep remain
	// and returns the evicted barcodes.
	TrimCacheEntries(ctx context.Context, keep int) ([]string, error)
	// CacheEntryStats counts entries fetched at or after since and reports
	// the oldest and newest fetch times among them.
	CacheEntryStats(ctx context.Context, since time.Time) (count int, oldest, newest time.Time, err error)
	// ClearCache deletes every entry.
	ClearCache(ctx context.Context) error
}

// Options tunes the cache policy.
type Options struct {
	// TTL is the freshness window. Older entries read as a miss.
	TTL time.Duration
	// MaxEntries caps the durable store; the oldest entries are evicted first.
	// Zero disables the cap.
	MaxEntries int
	// MemoryEntries sizes the in-process tier. Zero disables it.
	MemoryEntries int
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// Cache maps barcodes to resolved product records.
type Cache struct {
	store      Store
	ttl        time.Duration
	maxEntries int
	memory     *expirable.LRU[string, models.CacheEntry]
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// New creates a cache over store.
func New(store Store, opts Options, logger *zap.SugaredLogger) *Cache {
	c := &Cache{
		store:      store,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		logger:     logger,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.MemoryEntries > 0 {
		c.memory = expirable.NewLRU[string, models.CacheEntry](opts.MemoryEntries, nil, opts.TTL)
	}
	return c
}

// Get returns the fresh record for barcode. A store failure is returned as an
// error alongside a miss so callers can decide to carry on without the cache.
func (c *Cache) Get(ctx context.Context, barcode string) (*models.ProductRecord, bool, error) {
	if c.memory != nil {
		if entry, ok := c.memory.Get(barcode); ok {
			if c.fresh(entry.FetchedAt) {
				return entry.Record.Clone(), true, nil
			}
			c.memory.Remove(barcode)
			return nil, false, nil
		}
	}

	entry, err := c.store.GetCacheEntry(ctx, barcode)
	if err != nil {
		return nil, false, fmt.Errorf("cache read %s: %w", barcode, err)
	}
	if entry == nil || entry.Record == nil || !c.fresh(entry.FetchedAt) {
		return nil, false, nil
	}
	if c.memory != nil {
		c.memory.Add(barcode, *entry)
	}
	return entry.Record.Clone(), true, nil
}

// Set stores record under barcode, replacing any previous entry, then prunes
// expired entries and enforces the capacity ceiling.
func (c *Cache) Set(ctx context.Context, barcode string, record *models.ProductRecord) error {
	if record == nil {
		return fmt.Errorf("cache write %s: nil record", barcode)
	}
	now := c.now()
	entry := models.CacheEntry{
		Barcode:   barcode,
		Record:    record.Clone(),
		FetchedAt: now,
	}
	if err := c.store.PutCacheEntry(ctx, &entry); err != nil {
		return fmt.Errorf("cache write %s: %w", barcode, err)
	}
	if c.memory != nil {
		c.memory.Add(barcode, entry)
	}

	if c.ttl > 0 {
		if n, err := c.store.PruneCacheEntries(ctx, now.Add(-c.ttl)); err != nil {
			c.logger.Warnw("Failed to prune expired cache entries", "error", err)
		} else if n > 0 {
			c.logger.Debugw("Pruned expired cache entries", "count", n)
		}
	}
	if c.maxEntries > 0 {
		evicted, err := c.store.TrimCacheEntries(ctx, c.maxEntries)
		if err != nil {
			c.logger.Warnw("Failed to evict cache entries", "error", err)
		}
		if c.memory != nil {
			for _, code := range evicted {
				c.memory.Remove(code)
			}
		}
		if len(evicted) > 0 {
			c.logger.Debugw("Evicted oldest cache entries", "count", len(evicted), "max_entries", c.maxEntries)
		}
	}
	return nil
}

// Stats summarises the live entries.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	now := c.now()
	since := time.Time{}
	if c.ttl > 0 {
		since = now.Add(-c.ttl)
	}
	count, oldest, newest, err := c.store.CacheEntryStats(ctx, since)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats := models.CacheStats{TotalItems: count}
	if count > 0 {
		stats.OldestEntryAge = now.Sub(oldest)
		stats.NewestEntryAge = now.Sub(newest)
	}
	return stats, nil
}

// Clear empties both tiers.
func (c *Cache) Clear(ctx context.Context) error {
	if c.memory != nil {
		c.memory.Purge()
	}
	if err := c.store.ClearCache(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	c.logger.Infow("Product cache cleared")
	return nil
}

func (c *Cache) fresh(fetchedAt time.Time) bool {
	return c.ttl <= 0 || c.now().Sub(fetchedAt) < c.ttl
}
