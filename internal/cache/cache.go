package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	// DefaultMaxSizeBytes is the default approximate size budget (100MB)
	DefaultMaxSizeBytes = 100 * 1024 * 1024
	// DefaultTTL is the default time-to-live for entries
	DefaultTTL = time.Hour
	// DefaultCleanupInterval is how often expired entries are swept
	DefaultCleanupInterval = 5 * time.Minute

	// fallbackEntrySize is used when a value cannot be serialized
	fallbackEntrySize = 1000
)

// Stats holds cache performance statistics
type Stats struct {
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	Evictions       uint64 `json:"evictions"`
	Entries         int    `json:"entries"`
	ApproxSizeBytes uint64 `json:"approx_size_bytes"`
	MaxSizeBytes    uint64 `json:"max_size_bytes"`
}

// HitRate returns the cache hit rate (0.0 to 1.0)
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// Config holds configuration for the cache
type Config struct {
	// MaxSizeBytes is the approximate size budget. Exceeding it on Set
	// evicts the oldest inserted entry.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a non-positive TTL
	DefaultTTL time.Duration

	// CleanupInterval is the period of the background sweep started by Run
	CleanupInterval time.Duration

	Logger log.Logger

	// Now overrides the clock, for tests
	Now func() time.Time
}

// entry is a cached value with its insertion metadata
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
	size       int64
	seq        uint64 // insertion order, breaks insertedAt ties
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.insertedAt.Add(e.ttl))
}

// Cache is a TTL and size bounded key-value store.
//
// Reads never refresh an entry: eviction removes the entry inserted first,
// not the one used least recently.
type Cache struct {
	mu sync.Mutex

	items   map[string]*entry
	nextSeq uint64

	maxSize         int64
	defaultTTL      time.Duration
	cleanupInterval time.Duration

	currentSize int64
	hits        uint64
	misses      uint64
	evictions   uint64

	logger log.Logger
	now    func() time.Time
}

// New creates a cache with the given configuration. Zero values fall back to
// the package defaults.
func New(cfg Config) *Cache {
	c := &Cache{
		items:           make(map[string]*entry),
		maxSize:         cfg.MaxSizeBytes,
		defaultTTL:      cfg.DefaultTTL,
		cleanupInterval: cfg.CleanupInterval,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSizeBytes
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = DefaultCleanupInterval
	}
	if c.logger == nil {
		c.logger = log.NewNopLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get retrieves a value from the cache. Expired entries count as misses and
// are removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if ent.expired(c.now()) {
		c.removeLocked(key)
		c.misses++
		return nil, false
	}

	c.hits++
	return ent.value, true
}

// Set stores a value with the given TTL (DefaultTTL when ttl <= 0).
//
// When the new value would push the approximate size over budget, exactly
// one entry, the oldest inserted, is evicted first. The value is inserted
// even if that single eviction did not free enough room.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	size := EstimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentSize+size > c.maxSize {
		if oldest, ok := c.oldestLocked(); ok {
			c.removeLocked(oldest)
			c.evictions++
			level.Debug(c.logger).Log("msg", "evicted cache entry", "key", oldest, "size_bytes", c.currentSize)
		}
	}

	c.nextSeq++
	c.items[key] = &entry{
		value:      value,
		insertedAt: c.now(),
		ttl:        ttl,
		size:       size,
		seq:        c.nextSeq,
	}
	c.recomputeSizeLocked()
}

// Has reports whether a live entry exists. Hit and miss counters are not
// affected.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return false
	}
	if ent.expired(c.now()) {
		c.removeLocked(key)
		return false
	}
	return true
}

// Delete removes a key, reporting whether it was present
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear removes all entries. Hit and miss counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry)
	c.currentSize = 0
}

// Cleanup removes every expired entry and returns how many were removed
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, ent := range c.items {
		if ent.expired(now) {
			delete(c.items, key)
			removed++
		}
	}
	if removed > 0 {
		c.recomputeSizeLocked()
	}
	return removed
}

// Stats returns a snapshot of the cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:            c.hits,
		Misses:          c.misses,
		Evictions:       c.evictions,
		Entries:         len(c.items),
		ApproxSizeBytes: uint64(c.currentSize),
		MaxSizeBytes:    uint64(c.maxSize),
	}
}

// Run sweeps expired entries every CleanupInterval until ctx is cancelled
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				level.Debug(c.logger).Log("msg", "removed expired cache entries", "count", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// oldestLocked finds the entry inserted first (must be called with lock held)
func (c *Cache) oldestLocked() (string, bool) {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, ent := range c.items {
		if oldest == nil ||
			ent.insertedAt.Before(oldest.insertedAt) ||
			(ent.insertedAt.Equal(oldest.insertedAt) && ent.seq < oldest.seq) {
			oldestKey, oldest = key, ent
		}
	}
	return oldestKey, oldest != nil
}

// removeLocked deletes a key and recomputes the size (must be called with lock held)
func (c *Cache) removeLocked(key string) {
	delete(c.items, key)
	c.recomputeSizeLocked()
}

func (c *Cache) recomputeSizeLocked() {
	var total int64
	for _, ent := range c.items {
		total += ent.size
	}
	c.currentSize = total
}

// EstimateSize approximates the memory footprint of a value as twice the
// length of its JSON encoding. Values that cannot be encoded (cycles,
// channels, functions) are counted as a fixed 1000 bytes.
func EstimateSize(value any) (size int64) {
	defer func() {
		if r := recover(); r != nil {
			size = fallbackEntrySize
		}
	}()

	data, err := json.Marshal(value)
	if err != nil {
		return fallbackEntrySize
	}
	return int64(2 * len(data))
}
