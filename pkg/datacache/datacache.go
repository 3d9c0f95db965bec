// Package datacache implements the safe data cache (spec.md §4.7): a
// sharded hash map from identifier to element, paired with a parallel
// sharded map from identifier to per-key mutex, so that iteration,
// modification, and external access coordinate cleanly. It is the primary
// data cache overlay described in spec.md §1 item 3.
//
// Grounded on the teacher's (Voskan/arena-cache) pkg/cache.go
// getOrLoad/Cache pairing — a fast lock-light path with a serialized slow
// path — generalized here to per-key mutexes rather than a single shard
// lock, and built directly on pkg/shardmap rather than re-implementing
// sharding.
//
// © 2025 corert authors. MIT License.
package datacache

import (
	"errors"
	"sync"

	"github.com/pulseforge/corert/internal/backoff"
	"github.com/pulseforge/corert/pkg/id"
	"github.com/pulseforge/corert/pkg/queue"
	"github.com/pulseforge/corert/pkg/shardmap"
)

// ErrNotFound is returned by Modify when the identifier is absent.
var ErrNotFound = errors.New("datacache: identifier not found")

// Cache is a safe data cache from id.Identifier to V.
type Cache[V any] struct {
	values *shardmap.Map[id.Identifier, V]
	guards *shardmap.Map[id.Identifier, *sync.Mutex]
}

// New constructs an empty Cache using the given shardmap profile.
func New[V any](profile shardmap.Profile, opts ...shardmap.Option) *Cache[V] {
	return &Cache[V]{
		values: shardmap.New[id.Identifier, V](profile, opts...),
		guards: shardmap.New[id.Identifier, *sync.Mutex](profile, opts...),
	}
}

// Insert inserts value under identifier. If the value insert succeeds but
// the paired guard insert fails (which should not happen absent a racing
// Insert of the same identifier), the value insert is rolled back so the
// two maps never diverge. Returns true iff a fresh entry was created.
func (c *Cache[V]) Insert(identifier id.Identifier, value V) bool {
	if !c.values.Insert(identifier, value) {
		return false
	}
	if !c.guards.Insert(identifier, &sync.Mutex{}) {
		c.values.Erase(identifier)
		return false
	}
	return true
}

// Erase removes identifier from both maps atomically with respect to this
// call. Returns true iff the value map actually removed an entry.
func (c *Cache[V]) Erase(identifier id.Identifier) bool {
	removed := c.values.Erase(identifier)
	c.guards.Erase(identifier)
	return removed
}

// Get returns an immutable copy of the value for identifier, or the zero
// value and false if absent. Get does not take the per-key mutex: callers
// that only read accept the possibility of observing state concurrent with
// an in-flight Modify (spec.md §4.7).
func (c *Cache[V]) Get(identifier id.Identifier) (V, bool) {
	return c.values.Find(identifier)
}

// Modify locks the per-key mutex for identifier, invokes fn with a mutable
// pointer to the current value, commits any change fn made, then unlocks.
// fn must not retain the pointer beyond return and must not suspend
// (spec.md §4.7).
func (c *Cache[V]) Modify(identifier id.Identifier, fn func(*V)) error {
	guard, ok := c.guards.Find(identifier)
	if !ok {
		return ErrNotFound
	}
	guard.Lock()
	defer guard.Unlock()

	v, ok := c.values.Find(identifier)
	if !ok {
		return ErrNotFound
	}
	fn(&v)
	c.values.Set(identifier, v)
	return nil
}

// Len returns the approximate number of entries (weakly consistent, like
// the underlying shardmap).
func (c *Cache[V]) Len() int { return c.values.Size() }

// SafeLoopForEach applies fn to every identifier in ids under that
// identifier's per-key mutex, using a try-lock-then-retry policy: ids whose
// mutex is currently held are pushed onto a retry queue and revisited after
// the first pass, repeatedly, until every id has either been applied or is
// confirmed absent. This guarantees forward progress without ever blocking
// on a peer holding the lock, which is the mechanism by which subsystem
// ticks interleave with external Modify calls (spec.md §4.7).
func (c *Cache[V]) SafeLoopForEach(ids []id.Identifier, fn func(id.Identifier, *V)) {
	pending := queue.New[id.Identifier]()
	for _, i := range ids {
		_ = pending.Enqueue(i)
	}

	var b backoff.Backoff
	for pending.Size() > 0 {
		remaining := int(pending.Size())
		progressedAny := false
		for n := 0; n < remaining; n++ {
			next, ok := pending.TryPop()
			if !ok {
				break
			}
			if c.tryApply(next, fn) {
				progressedAny = true
				continue
			}
			_ = pending.Enqueue(next)
		}
		if !progressedAny {
			b.Pause()
		} else {
			b.Reset()
		}
	}
}

// tryApply attempts to apply fn to identifier under a try-lock. It returns
// true if the identifier was resolved this attempt (applied, or confirmed
// absent), false if the guard was contended and the id should be retried.
func (c *Cache[V]) tryApply(identifier id.Identifier, fn func(id.Identifier, *V)) bool {
	guard, ok := c.guards.Find(identifier)
	if !ok {
		return true
	}
	if !guard.TryLock() {
		return false
	}
	defer guard.Unlock()

	v, ok := c.values.Find(identifier)
	if !ok {
		return true
	}
	fn(identifier, &v)
	c.values.Set(identifier, v)
	return true
}
