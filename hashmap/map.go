// Package hashmap implements spec.md §4.5's hash map and hash
// multi-map on top of the generic hashtable.Table engine.
//
// The teacher's own hashmap package is a port of Go's runtime map
// (unsafe pointer walking over a `runtime.MapType` descriptor, native
// map interop via `LoadMap`/`GetPtr`). Go generics give this module a
// safe, type-checked equivalent of the C++ original's per-(K,V)
// template instantiation, so the unsafe descriptor-walking core moved
// to package hashtable during this port and the ABI-introspection
// wrappers (public_map.go, public_strmap.go, ...) have no role left to
// play: a from-scratch generic library has no "native Go map passed by
// interface{}" to interoperate with. See DESIGN.md.
package hashmap

import (
	"github.com/morzhovets/momo/bucket"
	"github.com/morzhovets/momo/hashtable"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/internal/xhash"
)

// Hash64 maps a key to a 64-bit hash. NewStringMap and NewIntMap supply
// one for string and int keys; callers with other key types pass their
// own Hash64 to NewMap.
type Hash64[K comparable] func(K) uint64

type hasherFunc[K comparable] struct{ fn Hash64[K] }

func (h hasherFunc[K]) Hash(k K) uint64 { return h.fn(k) }

type equalerComparable[K comparable] struct{}

func (equalerComparable[K]) Equal(a, b K) bool { return a == b }

type pair[K comparable, V any] struct {
	key K
	val V
}

// Map is a generic hash map: spec.md §4.5's "a hash table of
// (key, value) pairs keyed by the hash table's Key type parameter".
type Map[K comparable, V any] struct {
	table *hashtable.Table[pair[K, V], K]
}

// NewMap builds an empty Map using hash to derive key hashes and a
// Fixed(8) bucket policy, matching the teacher's bucketCnt=8-per-bucket
// default.
func NewMap[K comparable, V any](hash Hash64[K], metrics *telemetry.Metrics) *Map[K, V] {
	params := bucket.NewFixedParams[pair[K, V]](8, config.PoolParams{}, metrics)
	factory := func() hashtable.Policy[pair[K, V]] { return bucket.NewFixed[pair[K, V]](params) }
	itemKey := func(p pair[K, V]) K { return p.key }
	return &Map[K, V]{
		table: hashtable.New[pair[K, V], K](hasherFunc[K]{hash}, equalerComparable[K]{}, itemKey, factory, metrics),
	}
}

// NewStringMap builds a Map[string, V] using internal/xhash.String.
func NewStringMap[V any](metrics *telemetry.Metrics) *Map[string, V] {
	return NewMap[string, V](xhash.String, metrics)
}

// NewIntMap builds a Map[int, V] using internal/xhash.Int64.
func NewIntMap[V any](metrics *telemetry.Metrics) *Map[int, V] {
	return NewMap[int, V](func(k int) uint64 { return xhash.Int64(int64(k)) }, metrics)
}

// Len reports the number of entries.
func (m *Map[K, V]) Len() int { return m.table.Len() }

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	p, ok := m.table.Lookup(key)
	return p.val, ok
}

// Put inserts or overwrites the value for key.
func (m *Map[K, V]) Put(key K, value V) error {
	_, err := m.table.Insert(pair[K, V]{key: key, val: value})
	return err
}

// GetOrInsert returns the existing value for key, or inserts makeValue's
// result and returns that if key was absent. The bool reports whether
// the value already existed.
func (m *Map[K, V]) GetOrInsert(key K, makeValue func() V) (V, bool, error) {
	if existing, ok := m.Get(key); ok {
		return existing, true, nil
	}
	v := makeValue()
	if err := m.Put(key, v); err != nil {
		var zero V
		return zero, false, err
	}
	return v, false, nil
}

// Delete removes key, returning the removed value if present.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	p, ok := m.table.Remove(key)
	return p.val, ok
}

// ForEach visits every (key, value) pair in an unspecified order.
// Returning false from fn stops iteration early.
func (m *Map[K, V]) ForEach(fn func(K, V) bool) {
	m.table.ForEach(func(p pair[K, V]) bool { return fn(p.key, p.val) })
}

// ValueRef is a version-checked borrowed handle for subscript-style
// access that delays insertion until Set is actually called, matching
// spec.md §4.5's "a value_ref type for subscript access that delays
// insertion until assignment".
type ValueRef[K comparable, V any] struct {
	m             *Map[K, V]
	key           K
	changeVersion uint64
}

// Ref returns a ValueRef for key. No table mutation happens until Set.
func (m *Map[K, V]) Ref(key K) ValueRef[K, V] {
	return ValueRef[K, V]{m: m, key: key, changeVersion: m.table.ChangeVersion()}
}

// Get reads through the ref. ok is false if no value has ever been set.
func (r ValueRef[K, V]) Get() (V, bool) {
	return r.m.Get(r.key)
}

// Set inserts or overwrites the referenced key's value.
func (r ValueRef[K, V]) Set(value V) error {
	return r.m.Put(r.key, value)
}

// Stale reports whether the map has been structurally mutated since
// this ValueRef was obtained (spec's version-check contract).
func (r ValueRef[K, V]) Stale() bool {
	return r.m.table.ChangeVersion() != r.changeVersion
}

// MultiMap is the shallow hash multi-map spec.md deliberately keeps
// out of scope for deep engineering: "a hash map from key to
// value-array", built from Map[K, *bucket.Unbounded[V]] (the UnlimP
// bucket policy doubling as the value-array container itself, per
// spec) plus a lazy key-to-values iterator. No additional invariants
// (ordering, dedup, capacity hints) are engineered beyond what that
// sentence describes.
type MultiMap[K comparable, V any] struct {
	inner        *Map[K, *bucket.Unbounded[V]]
	inlineParams *bucket.FixedParams[V]
}

// NewMultiMap builds an empty MultiMap.
func NewMultiMap[K comparable, V any](hash Hash64[K], metrics *telemetry.Metrics) *MultiMap[K, V] {
	return &MultiMap[K, V]{
		inner:        NewMap[K, *bucket.Unbounded[V]](hash, metrics),
		inlineParams: bucket.NewUnboundedParams[V](config.PoolParams{}, metrics),
	}
}

// Add appends value to key's value-array, creating it if absent.
func (mm *MultiMap[K, V]) Add(key K, value V) error {
	values, ok := mm.inner.Get(key)
	if !ok {
		values = bucket.NewUnbounded[V](mm.inlineParams)
		if err := mm.inner.Put(key, values); err != nil {
			return err
		}
	}
	_, err := values.Add(func() V { return value }, 0, 0, 0)
	return err
}

// Values returns the value-array for key, or nil if key is absent.
func (mm *MultiMap[K, V]) Values(key K) []V {
	values, ok := mm.inner.Get(key)
	if !ok {
		return nil
	}
	return values.Bounds()
}

// Remove drops a single value equal to target from key's value-array
// (the first match only), removing the key entirely if the array
// becomes empty. Equality is checked with eq.
func (mm *MultiMap[K, V]) Remove(key K, target V, eq func(a, b V) bool) bool {
	values, ok := mm.inner.Get(key)
	if !ok {
		return false
	}
	idx, ok := values.Find(func(v V) bool { return eq(v, target) }, 0)
	if !ok {
		return false
	}
	values.Remove(idx, func(last, removed V) V { return last })
	if len(values.Bounds()) == 0 {
		mm.inner.Delete(key)
	}
	return true
}

// ForEach visits every (key, value) pair across all value-arrays,
// lazily expanding each key's array -- the "lazy key->values iterator"
// spec.md calls for, without materializing a flattened copy.
func (mm *MultiMap[K, V]) ForEach(fn func(K, V) bool) {
	mm.inner.ForEach(func(k K, values *bucket.Unbounded[V]) bool {
		for _, v := range values.Bounds() {
			if !fn(k, v) {
				return false
			}
		}
		return true
	})
}

// Len reports the number of distinct keys (not total values).
func (mm *MultiMap[K, V]) Len() int { return mm.inner.Len() }
