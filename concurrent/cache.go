// Package concurrent gives momo's otherwise single-writer containers
// (spec.md §5: "No operation ... performs or requires synchronization;
// racing writers to any one instance is undefined") an optional
// coarse-grained thread-safe facade for callers that need one, the way
// the teacher wraps its own lock-free hashmap with a mutex-guarded
// cache.Instance and store.Store rather than exposing the bare map to
// concurrent callers.
package concurrent

import (
	"errors"
	"sync"

	"github.com/morzhovets/momo/internal/nocopy"
)

// ErrNotFound is returned by Cache.Get when key is absent, matching
// the teacher's cache.ErrNotFound.
var ErrNotFound = errors.New("concurrent: key not found")

// Cache is an RWMutex-guarded key/value store: momo's standalone
// containers assume single-writer access, so this is the facade a
// caller reaches for when several goroutines need to share one cache
// of, say, table.Selection results keyed by a query signature.
//
// Grounded on the teacher's cache.Instance (cache/types.go,
// cache/new.go, cache/get.go, cache/put.go, cache/const.go): same
// RWMutex-guarded map shape, generalized from map[string]interface{}
// to Cache[K comparable, V any] via Go generics, and from
// github.com/gramework/gramework/nocopy to this module's own
// internal/nocopy (a copylocks marker, not a third-party dependency
// worth keeping for its own sake).
type Cache[K comparable, V any] struct {
	_       nocopy.NoCopy
	mu      sync.RWMutex
	storage map[K]V
}

// New builds an empty Cache, matching the teacher's cache.New.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{storage: make(map[K]V)}
}

// Get returns the value stored under key, or ErrNotFound, matching the
// teacher's cache.Instance.Get.
func (c *Cache[K, V]) Get(key K) (V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.storage[key]; ok {
		return v, nil
	}
	var zero V
	return zero, ErrNotFound
}

// Put stores value under key, replacing any existing entry, matching
// the teacher's cache.Instance.Put.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage[key] = value
}

// Delete removes key, a no-op if it was never present. Not present in
// the teacher's cache package (which never evicts); added since a
// query-result cache needs to invalidate entries once the underlying
// table mutates.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.storage, key)
}

// Len reports the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.storage)
}

// GetOrCompute returns the cached value for key, computing and storing
// it via compute on a miss. compute runs outside the lock so a slow
// computation (e.g. a table.Select call) does not block concurrent
// reads of unrelated keys.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, err := c.Get(key); err == nil {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}
