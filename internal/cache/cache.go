// Package cache provides a bounded in-memory key/value cache with TTL expiry,
// size-aware LRU eviction and hit/miss statistics.
//
// The cache never returns errors: malformed values degrade to a default size
// estimate and over-budget inserts trigger eviction rather than rejection.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	// defaultEntrySize is assumed for values that cannot be serialized.
	defaultEntrySize = 1024

	// latencySampleCap bounds the rolling hit/miss latency samples so the
	// statistics themselves use constant memory.
	latencySampleCap = 1000

	// evictionTargetRatio is the share of entries removed per eviction pass.
	evictionTargetRatio = 0.25

	// memoryLowWater stops an eviction pass once usage drops below this
	// fraction of the memory budget.
	memoryLowWater = 0.9
)

// Config bounds a Cache. Zero values fall back to the defaults below.
type Config struct {
	MaxEntries int
	MaxMemory  int64
	DefaultTTL time.Duration
}

// DefaultConfig returns the bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 500,
		MaxMemory:  10 * 1024 * 1024,
		DefaultTTL: 5 * time.Minute,
	}
}

type entry[T any] struct {
	value        T
	expiresAt    time.Time
	size         int64
	lastAccessed time.Time
	accessCount  int64
}

// Cache is a bounded in-memory cache. Safe for concurrent use.
type Cache[T any] struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*entry[T]
	memory  int64

	hits      int64
	misses    int64
	evictions int64
	hitTimes  []time.Duration
	missTimes []time.Duration
}

// New creates a cache with the given bounds.
func New[T any](cfg Config) *Cache[T] {
	def := DefaultConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = def.MaxMemory
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	return &Cache[T]{
		cfg:     cfg,
		entries: make(map[string]*entry[T]),
	}
}

// Get returns the cached value for key. An entry whose TTL has passed is
// treated as a miss and removed lazily.
func (c *Cache[T]) Get(key string) (T, bool) {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		c.missTimes = appendSample(c.missTimes, time.Since(start))
		var zero T
		return zero, false
	}

	now := time.Now()
	if now.After(e.expiresAt) {
		c.removeLocked(key)
		c.misses++
		c.missTimes = appendSample(c.missTimes, time.Since(start))
		var zero T
		return zero, false
	}

	e.lastAccessed = now
	e.accessCount++
	c.hits++
	c.hitTimes = appendSample(c.hitTimes, time.Since(start))
	return e.value, true
}

// Set stores value under key using the default TTL.
func (c *Cache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.cfg.DefaultTTL)
}

// SetWithTTL stores value under key. If the insert would exceed the entry or
// memory budget, eviction runs first. Replacing an existing key adjusts the
// memory accounting by the size delta. A value larger than the whole memory
// budget can never fit; it is silently skipped, keeping the cache bounded.
func (c *Cache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	size := estimateSize(any(value))

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.memory -= old.size
		delete(c.entries, key)
	}
	if size > c.cfg.MaxMemory {
		return
	}

	c.evictForLocked(size)

	now := time.Now()
	c.entries[key] = &entry[T]{
		value:        value,
		expiresAt:    now.Add(ttl),
		size:         size,
		lastAccessed: now,
		accessCount:  1,
	}
	c.memory += size
}

// Has reports whether key holds a live, unexpired entry.
func (c *Cache[T]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(e.expiresAt) {
		c.removeLocked(key)
		return false
	}
	return true
}

// Delete removes key if present.
func (c *Cache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear removes every entry. Statistics are kept.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[T])
	c.memory = 0
}

// Len returns the number of live entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters, all derived on the fly.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Size:        len(c.entries),
		MemoryUsage: c.memory,
		AvgHitTime:  avgDuration(c.hitTimes),
		AvgMissTime: avgDuration(c.missTimes),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// removeLocked deletes an entry and keeps the memory accumulator consistent.
func (c *Cache[T]) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.memory -= e.size
		delete(c.entries, key)
	}
}

// evictForLocked makes room for an incoming entry of the given size. Entries
// are evicted in lastAccessed order, roughly the oldest quarter per pass,
// stopping early once memory usage falls below the low-water mark. Worst case
// the cache is evicted down to a single remaining entry.
func (c *Cache[T]) evictForLocked(incoming int64) {
	for len(c.entries) > 0 && !c.fitsLocked(incoming) {
		c.evictPassLocked(incoming)
	}
}

func (c *Cache[T]) fitsLocked(incoming int64) bool {
	return len(c.entries)+1 <= c.cfg.MaxEntries && c.memory+incoming <= c.cfg.MaxMemory
}

func (c *Cache[T]) evictPassLocked(incoming int64) {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].lastAccessed.Before(c.entries[keys[j]].lastAccessed)
	})

	target := int(float64(len(keys)) * evictionTargetRatio)
	if target < 1 {
		target = 1
	}

	lowWater := int64(float64(c.cfg.MaxMemory) * memoryLowWater)
	for i, k := range keys {
		if i >= target && c.fitsLocked(incoming) {
			break
		}
		if i > 0 && c.fitsLocked(incoming) && c.memory+incoming < lowWater {
			break
		}
		c.removeLocked(k)
		c.evictions++
	}
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	if len(samples) >= latencySampleCap {
		samples = samples[1:]
	}
	return append(samples, d)
}

func avgDuration(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return total / time.Duration(len(samples))
}

// estimateSize approximates the in-memory footprint of a value. It never
// fails: values that cannot be serialized get a fixed default size.
func estimateSize(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(x)) * 2
	case bool:
		return 1
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return 8
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return defaultEntrySize
		}
		return int64(len(b)) * 2
	}
}
