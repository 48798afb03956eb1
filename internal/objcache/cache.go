package objcache

import (
	"log/slog"
	"sync"

	"tickd/internal/logging"
)

// Invalidator drops every cached object so the next read refetches it.
type Invalidator interface {
	InvalidateAll()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

// InvalidateAll calls f.
func (f InvalidatorFunc) InvalidateAll() { f() }

// Cache is a thread-safe in-process object cache.
type Cache[K comparable, V any] struct {
	name   string
	logger *slog.Logger
	mu     sync.RWMutex
	items  map[K]V
}

// New returns an empty cache. name labels debug log lines.
func New[K comparable, V any](name string, logger *slog.Logger) *Cache[K, V] {
	return &Cache[K, V]{
		name:   name,
		logger: logging.NewComponentLogger(logger, "objcache"),
		items:  make(map[K]V),
	}
}

// Get returns the cached value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[key]
	return value, ok
}

// Put stores value under key, replacing any previous value.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Load errors are returned and nothing is cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := load(key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, value)
	return value, nil
}

// Delete removes key.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of cached objects.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// InvalidateAll empties the cache.
func (c *Cache[K, V]) InvalidateAll() {
	c.mu.Lock()
	dropped := len(c.items)
	c.items = make(map[K]V)
	c.mu.Unlock()
	if dropped > 0 {
		c.logger.Debug("object cache cleared", logging.String("cache", c.name), logging.Int("dropped", dropped))
	}
}

// Group fans InvalidateAll out to every registered Invalidator.
type Group struct {
	mu      sync.Mutex
	members []Invalidator
}

// NewGroup returns a group containing members.
func NewGroup(members ...Invalidator) *Group {
	g := &Group{}
	for _, m := range members {
		g.Register(m)
	}
	return g
}

// Register adds inv to the group. Nil invalidators are ignored.
func (g *Group) Register(inv Invalidator) {
	if inv == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, inv)
}

// InvalidateAll invalidates every member in registration order.
func (g *Group) InvalidateAll() {
	g.mu.Lock()
	members := append([]Invalidator(nil), g.members...)
	g.mu.Unlock()
	for _, m := range members {
		m.InvalidateAll()
	}
}
