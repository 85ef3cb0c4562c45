// Package doccache keeps expensive decoded documents open for bursts of
// requests. Entries are bounded by count (LRU) and by idle time (TTL); every
// evicted value is handed to the OnEvict hook exactly once.
package doccache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
)

const (
	DefaultMaxEntries = 20
	DefaultTTL        = time.Minute
)

// Eviction reasons reported to metrics.
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
	ReasonRemoved  = "removed"
	ReasonPurge    = "purge"
)

// LoadFunc opens the value for key on a cache miss.
type LoadFunc[V any] func(key string) (V, error)

type Options[V any] struct {
	// Name labels the cache in metrics and logs.
	Name       string
	MaxEntries int
	// TTL is the idle time after which an entry is evicted.
	TTL time.Duration
	// SweepInterval is how often Run scans for expired entries. Defaults to TTL/2.
	SweepInterval time.Duration
	// OnEvict releases an evicted value. It runs on the evicting goroutine,
	// outside the cache lock.
	OnEvict func(key string, value V)
	// Now overrides the clock.
	Now func() time.Time
}

type entry[V any] struct {
	key        string
	value      V
	lastAccess time.Time
}

type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is most recently used

	group singleflight.Group

	name       string
	maxEntries int
	ttl        time.Duration
	sweep      time.Duration
	onEvict    func(string, V)
	now        func() time.Time
}

func New[V any](opts Options[V]) *Cache[V] {
	c := &Cache[V]{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		name:       opts.Name,
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		sweep:      opts.SweepInterval,
		onEvict:    opts.OnEvict,
		now:        opts.Now,
	}
	if c.name == "" {
		c.name = "documents"
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.sweep <= 0 {
		c.sweep = c.ttl / 2
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Get returns the cached value for key, loading it on a miss. Concurrent
// misses for the same key share one load. A failed load is cached as the zero
// value until it expires or is evicted.
func (c *Cache[V]) Get(key string, load LoadFunc[V]) V {
	if v, ok := c.lookup(key); ok {
		metrics.RecordDocumentCacheHit(c.name)
		return v
	}
	metrics.RecordDocumentCacheMiss(c.name)

	res, _, _ := c.group.Do(key, func() (interface{}, error) {
		// A flight that finished just before this one may have stored the key.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		v, err := load(key)
		if err != nil {
			logging.L().Warn("Document load failed",
				logging.String("cache", c.name), logging.String("key", key), logging.Err(err))
			var zero V
			v = zero
		}
		c.insert(key, v)
		return v, nil
	})
	v, _ := res.(V)
	return v
}

// lookup returns a live entry and refreshes its access time. An expired entry
// is evicted on the way.
func (c *Cache[V]) lookup(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	if now.Sub(e.lastAccess) < c.ttl {
		e.lastAccess = now
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return e.value, true
	}
	c.removeLocked(el)
	c.mu.Unlock()

	c.release([]*entry[V]{e}, ReasonExpired)
	var zero V
	return zero, false
}

func (c *Cache[V]) insert(key string, value V) {
	var evicted []*entry[V]
	var replaced []*entry[V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		replaced = append(replaced, el.Value.(*entry[V]))
		c.removeLocked(el)
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, lastAccess: c.now()})
	for len(c.items) > c.maxEntries {
		back := c.order.Back()
		evicted = append(evicted, back.Value.(*entry[V]))
		c.removeLocked(back)
	}
	size := len(c.items)
	c.mu.Unlock()

	metrics.SetDocumentCacheSize(c.name, size)
	c.release(replaced, ReasonRemoved)
	c.release(evicted, ReasonCapacity)
}

// Remove evicts key if present.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e := el.Value.(*entry[V])
	c.removeLocked(el)
	c.mu.Unlock()

	c.release([]*entry[V]{e}, ReasonRemoved)
	return true
}

// Purge evicts every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	evicted := make([]*entry[V], 0, len(c.items))
	for el := c.order.Back(); el != nil; el = el.Prev() {
		evicted = append(evicted, el.Value.(*entry[V]))
	}
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	c.release(evicted, ReasonPurge)
}

// RemoveExpired evicts every entry idle for longer than the TTL.
func (c *Cache[V]) RemoveExpired() int {
	now := c.now()
	var expired []*entry[V]

	c.mu.Lock()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry[V])
		if now.Sub(e.lastAccess) >= c.ttl {
			expired = append(expired, e)
			c.removeLocked(el)
		}
		el = prev
	}
	c.mu.Unlock()

	c.release(expired, ReasonExpired)
	return len(expired)
}

// Run sweeps expired entries until ctx is done.
func (c *Cache[V]) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.RemoveExpired(); n > 0 {
				logging.L().Debug("Released idle documents", logging.String("cache", c.name), logging.Int("count", n))
			}
		}
	}
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns the cached keys, most recently used first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// removeLocked must be called with c.mu held.
func (c *Cache[V]) removeLocked(el *list.Element) {
	delete(c.items, el.Value.(*entry[V]).key)
	c.order.Remove(el)
}

func (c *Cache[V]) release(entries []*entry[V], reason string) {
	if len(entries) == 0 {
		return
	}
	metrics.SetDocumentCacheSize(c.name, c.Len())
	for _, e := range entries {
		metrics.RecordDocumentEviction(c.name, reason)
		if c.onEvict != nil {
			c.onEvict(e.key, e.value)
		}
	}
}
