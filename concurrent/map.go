package concurrent

import (
	"sync"

	"github.com/morzhovets/momo/hashmap"
	"github.com/morzhovets/momo/internal/nocopy"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/internal/xhash"
)

// Map is an RWMutex-guarded facade over hashmap.Map, for the same
// reason Cache exists: momo's hash map is single-writer by spec.md §5,
// so a caller sharing one key/value map across goroutines needs an
// explicit lock around it.
//
// Grounded on the teacher's store.Store (store/types.go): same
// Put/Get surface over an underlying hash map, generalized from
// github.com/gramework/threadsafe/hashmap (a lock-free concurrent map)
// to this module's own single-writer hashmap.Map plus an explicit
// sync.RWMutex, since momo's hash table was never built to be safe for
// concurrent access the way the teacher's own hashmap is.
type Map[K comparable, V any] struct {
	_     nocopy.NoCopy
	mu    sync.RWMutex
	store *hashmap.Map[K, V]
}

// NewMap builds a Map using hash to derive key hashes.
func NewMap[K comparable, V any](hash hashmap.Hash64[K], metrics *telemetry.Metrics) *Map[K, V] {
	return &Map[K, V]{store: hashmap.NewMap[K, V](hash, metrics)}
}

// NewStringMap builds a Map[string, V].
func NewStringMap[V any](metrics *telemetry.Metrics) *Map[string, V] {
	return NewMap[string, V](xhash.String, metrics)
}

// NewIntMap builds a Map[int, V].
func NewIntMap[V any](metrics *telemetry.Metrics) *Map[int, V] {
	return NewMap[int, V](func(k int) uint64 { return xhash.Int64(int64(k)) }, metrics)
}

// Put inserts or replaces the value for key, matching the teacher's
// store.Store.Put.
func (m *Map[K, V]) Put(key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(key, value)
}

// Get returns the value for key and whether it was present, matching
// the teacher's store.Store.Get.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Get(key)
}

// Delete removes key, returning the removed value if present. Not
// present on the teacher's store.Store (which never deletes); added
// since a shared cache map needs eviction.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(key)
}

// Len reports the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}
