package bucket

import (
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
)

// unboundedFastCount is the inline small-vector threshold of spec.md
// §4.3's UnlimP: "small items up to a fast-count threshold live in an
// inline small-vector backed by per-size memory pools; beyond that, the
// bucket holds a growable array."
const unboundedFastCount = 8

// Unbounded is the UnlimP bucket policy: max_count = UNBOUNDED. Used
// when the table must accept arbitrary collisions without triggering
// growth, most notably the multi-hash index's value-array bucket
// (spec.md §4.5, §4.8).
//
// Up to unboundedFastCount items this stores inline in a
// FixedParams-backed slab exactly like the Fixed family; beyond that it
// spills into a plain growable slice, which is the Go-idiomatic
// equivalent of spec's "growable array" and needs no further pooling
// since Go's allocator already amortizes slice growth.
type Unbounded[Item any] struct {
	inline  *Fixed[Item]
	spill   []Item
	wasFull bool // always false: UNBOUNDED buckets never report full
}

// NewUnboundedParams builds the inline-params set an Unbounded bucket
// family shares; exported since unboundedFastCount itself is not, so
// callers outside this package (e.g. hashmap.MultiMap's value-array
// buckets) cannot size a FixedParams for NewUnbounded by hand.
func NewUnboundedParams[Item any](poolParams config.PoolParams, metrics *telemetry.Metrics) *FixedParams[Item] {
	return NewFixedParams[Item](unboundedFastCount, poolParams, metrics)
}

// NewUnbounded constructs an empty Unbounded bucket. inlineParams is
// shared across every Unbounded bucket in the table (its pool caps the
// fast-path allocation overhead).
func NewUnbounded[Item any](inlineParams *FixedParams[Item]) *Unbounded[Item] {
	if inlineParams.cap != unboundedFastCount {
		momoerr.AssertionFailure("Unbounded: inlineParams must be sized to unboundedFastCount")
	}
	return &Unbounded[Item]{inline: NewFixed[Item](inlineParams)}
}

func (b *Unbounded[Item]) MaxCount() int { return UnboundedMaxCount }

func (b *Unbounded[Item]) Bounds() []Item {
	if len(b.spill) > 0 {
		return b.spill
	}
	return b.inline.Bounds()
}

func (b *Unbounded[Item]) Find(pred func(Item) bool, hashCode uint64) (int, bool) {
	if len(b.spill) > 0 {
		for i, it := range b.spill {
			if pred(it) {
				return i, true
			}
		}
		return -1, false
	}
	return b.inline.Find(pred, hashCode)
}

func (b *Unbounded[Item]) Add(create func() Item, hashCode uint64, logBucketCount uint8, probe int) (int, error) {
	if len(b.spill) == 0 && b.inline.count < unboundedFastCount {
		return b.inline.Add(create, hashCode, logBucketCount, probe)
	}
	if len(b.spill) == 0 {
		// migrate the inline items into the spill slice
		b.spill = append(b.spill, b.inline.Bounds()...)
		b.inline.Clear()
	}
	b.spill = append(b.spill, create())
	return len(b.spill) - 1, nil
}

func (b *Unbounded[Item]) Remove(idx int, replace func(last, removed Item) Item) {
	if len(b.spill) > 0 {
		last := len(b.spill) - 1
		if idx != last {
			b.spill[idx] = replace(b.spill[last], b.spill[idx])
		}
		b.spill = b.spill[:last]
		return
	}
	b.inline.Remove(idx, replace)
}

func (b *Unbounded[Item]) IsFull() bool { return false }

func (b *Unbounded[Item]) WasFull() bool { return b.wasFull }

func (b *Unbounded[Item]) Clear() {
	b.inline.Clear()
	b.spill = nil
}
