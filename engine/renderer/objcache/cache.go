// Package objcache deduplicates expensive GPU objects (render passes,
// framebuffers, pipelines, samplers) by structural configuration keys.
package objcache

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
)

// Key is a comparable configuration record. Hash places it in a bucket;
// equality inside a bucket is exact.
type Key interface {
	comparable
	Hash() uint32
}

// Deferrer postpones destruction until in-flight frames no longer reference
// the object.
type Deferrer interface {
	QueueCleanup(fn func())
}

type Config[K Key, V any] struct {
	Name string
	// Create builds the object for a configuration seen for the first time.
	Create func(key K) (V, error)
	// Destroy releases the object. It is always invoked through the deferrer
	// during sweeps.
	Destroy func(value V)
	// EvictAfter is the number of consecutive unused frames after which an
	// entry is evicted. Zero disables eviction.
	EvictAfter int
}

type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

type entry[K Key, V any] struct {
	key           K
	value         V
	id            core.ObjectID
	usedThisFrame bool
	framesUnused  int
}

type Cache[K Key, V any] struct {
	cfg      Config[K, V]
	deferrer Deferrer
	buckets  map[uint32][]*entry[K, V]
	count    int
	stats    Stats
}

func New[K Key, V any](cfg Config[K, V], deferrer Deferrer) *Cache[K, V] {
	return &Cache[K, V]{
		cfg:      cfg,
		deferrer: deferrer,
		buckets:  make(map[uint32][]*entry[K, V]),
	}
}

// Get returns the object for key, constructing it on first use. The
// returned ID identifies the object in other cache keys.
func (c *Cache[K, V]) Get(key K) (V, core.ObjectID, error) {
	h := key.Hash()
	for _, e := range c.buckets[h] {
		if e.key == key {
			e.usedThisFrame = true
			c.stats.Hits++
			return e.value, e.id, nil
		}
	}

	c.stats.Misses++
	value, err := c.cfg.Create(key)
	if err != nil {
		var zero V
		return zero, core.InvalidObjectID, fmt.Errorf("%w: %s %+v: %w", core.ErrObjectCreation, c.cfg.Name, key, err)
	}
	e := &entry[K, V]{key: key, value: value, id: core.NewObjectID(), usedThisFrame: true}
	c.buckets[h] = append(c.buckets[h], e)
	c.count++
	return value, e.id, nil
}

// Sweep closes the current frame. Entries unused for EvictAfter frames are
// removed and their destruction is deferred. It returns the eviction count.
func (c *Cache[K, V]) Sweep() int {
	evicted := 0
	for h, bucket := range c.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.usedThisFrame {
				e.usedThisFrame = false
				e.framesUnused = 0
				kept = append(kept, e)
				continue
			}
			e.framesUnused++
			if c.cfg.EvictAfter > 0 && e.framesUnused >= c.cfg.EvictAfter {
				c.destroyDeferred(e.value)
				evicted++
				continue
			}
			kept = append(kept, e)
		}
		c.store(h, bucket, kept)
	}
	c.count -= evicted
	c.stats.Evictions += uint64(evicted)
	return evicted
}

// store replaces bucket with kept, a prefix-reusing filter of it. The
// dropped tail is cleared so evicted entries are not kept reachable.
func (c *Cache[K, V]) store(h uint32, bucket, kept []*entry[K, V]) {
	for i := len(kept); i < len(bucket); i++ {
		bucket[i] = nil
	}
	if len(kept) == 0 {
		delete(c.buckets, h)
	} else {
		c.buckets[h] = kept
	}
}

// Evict removes entries the predicate selects, e.g. every pipeline built for
// a shader that was released. Destruction is deferred.
func (c *Cache[K, V]) Evict(match func(key K) bool) int {
	evicted := 0
	for h, bucket := range c.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if match(e.key) {
				c.destroyDeferred(e.value)
				evicted++
				continue
			}
			kept = append(kept, e)
		}
		c.store(h, bucket, kept)
	}
	c.count -= evicted
	c.stats.Evictions += uint64(evicted)
	return evicted
}

// Clear destroys every object immediately. The caller guarantees the device
// is idle.
func (c *Cache[K, V]) Clear() {
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			if c.cfg.Destroy != nil {
				c.cfg.Destroy(e.value)
			}
		}
	}
	c.buckets = make(map[uint32][]*entry[K, V])
	c.count = 0
}

func (c *Cache[K, V]) Len() int {
	return c.count
}

func (c *Cache[K, V]) Stats() Stats {
	s := c.stats
	s.Entries = c.count
	return s
}

func (c *Cache[K, V]) destroyDeferred(value V) {
	if c.cfg.Destroy == nil {
		return
	}
	if c.deferrer == nil {
		c.cfg.Destroy(value)
		return
	}
	c.deferrer.QueueCleanup(func() { c.cfg.Destroy(value) })
}
