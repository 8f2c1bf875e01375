// Package cache memoises upstream query results for a caller-supplied time window.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/multichain-pay/internal/clock"
	"github.com/yourorg/multichain-pay/internal/metrics"
)

// Entry is one cached value and the time it was stored
type Entry struct {
	Value     any
	Timestamp time.Time
}

// Cache is a class-agnostic TTL cache; every lookup states its own TTL.
// Entries are overwritten on write and never read-modify-written, so staleness between
// concurrent refreshes is tolerated.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	clock    clock.Clock
	recorder metrics.Recorder
}

// New creates an empty cache on the wall clock
func New() *Cache {
	return &Cache{
		entries:  make(map[string]Entry),
		clock:    clock.Real{},
		recorder: metrics.NoopRecorder{},
	}
}

// WithClock replaces the time source and returns the cache
func (c *Cache) WithClock(clk clock.Clock) *Cache {
	c.clock = clk
	return c
}

// WithRecorder sets the metrics backend and returns the cache
func (c *Cache) WithRecorder(rec metrics.Recorder) *Cache {
	c.recorder = rec
	return c
}

// Key composes the cache key for a subject (usually an address) and a query type
func Key(subject, queryType string) string {
	return queryType + "_" + subject
}

// IsValid reports whether key holds an entry younger than ttl
func (c *Cache) IsValid(key string, ttl time.Duration) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return c.clock.Now().Sub(entry.Timestamp) < ttl
}

// Get returns the stored value regardless of age
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key stamped with the current time
func (c *Cache) Set(key string, value any) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Value: value, Timestamp: now}
}

// Clear drops the entry for subject and queryType
func (c *Cache) Clear(subject, queryType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(subject, queryType))
}

// ClearAll drops every entry
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key while it is younger than ttl, otherwise calls
// load and caches its result. Failed loads are not cached. class only labels metrics.
func GetOrLoad[T any](ctx context.Context, c *Cache, class, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if c.IsValid(key, ttl) {
		if v, ok := c.Get(key); ok {
			if typed, ok := v.(T); ok {
				c.recorder.IncCacheLookup(class, true)
				return typed, nil
			}
		}
	}
	c.recorder.IncCacheLookup(class, false)

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}
