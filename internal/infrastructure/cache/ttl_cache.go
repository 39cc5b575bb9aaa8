package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldops/backend/internal/application/settlement"
	"github.com/fieldops/backend/internal/domain/shared"
)

const defaultCleanupInterval = 30 * time.Second

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a process-local cache with per-entry expiry.
// Expired entries are never returned and are swept in the background.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	clock   shared.Clock

	stopCh    chan struct{}
	closeOnce sync.Once

	hits   int64
	misses int64
}

// TTLCacheOption configures a TTLCache
type TTLCacheOption[V any] func(*TTLCache[V])

// WithClock replaces the wall clock, used by tests to drive expiry
func WithClock[V any](clock shared.Clock) TTLCacheOption[V] {
	return func(c *TTLCache[V]) {
		c.clock = clock
	}
}

// NewTTLCache creates an empty cache and starts its sweeper
func NewTTLCache[V any](opts ...TTLCacheOption[V]) *TTLCache[V] {
	c := &TTLCache[V]{
		entries: make(map[string]cacheEntry[V]),
		clock:   shared.NewSystemClock(),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(defaultCleanupInterval)
	return c
}

// Get returns the value if present and not expired
func (c *TTLCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(e.expiresAt) {
		atomic.AddInt64(&c.misses, 1)
		var zero V
		return zero, false
	}
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl is a no-op.
func (c *TTLCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key
func (c *TTLCache[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix
func (c *TTLCache[V]) DeletePrefix(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of stored entries, expired ones included until swept
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters
func (c *TTLCache[V]) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close stops the sweeper. Safe to call more than once.
func (c *TTLCache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *TTLCache[V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *TTLCache[V]) sweep() {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// NoopCache never stores anything. Used when caching is disabled.
type NoopCache[V any] struct{}

func (NoopCache[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}

func (NoopCache[V]) Set(context.Context, string, V, time.Duration) {}
func (NoopCache[V]) Delete(context.Context, string)                {}
func (NoopCache[V]) DeletePrefix(context.Context, string)          {}

var (
	_ settlement.Cache[int] = (*TTLCache[int])(nil)
	_ settlement.Cache[int] = NoopCache[int]{}
)
