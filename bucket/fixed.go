package bucket

import (
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/pool"
	"github.com/morzhovets/momo/internal/telemetry"
)

// MaxFixedCapacity is the largest capacity the Fixed family supports,
// matching spec.md's LimP upper bound ("max_count up to 15").
const MaxFixedCapacity = 15

// fixedSlab is the payload a Fixed bucket's tagged pointer refers to in
// the C++ original; here it is just the struct a FixedParams size-class
// pool serves. Its arrays are always MaxFixedCapacity long; a bucket
// with a smaller Cap only ever touches a prefix of them.
type fixedSlab[Item any] struct {
	hashes [MaxFixedCapacity]uint8
	items  [MaxFixedCapacity]Item
}

// FixedParams is the Params[Item] for the Fixed family: one memory
// pool per size class 1..cap, exactly spec.md §4.3's "tagged pointer
// into one of 4 size-class memory pools" for LimP4 (cap=4), generalized
// to any cap up to MaxFixedCapacity (LimP/LimP1 go up to 15, Lim4 to
// 16 -- we cap Lim4 at MaxFixedCapacity too since nothing in this port
// needs the 32-bit relative-pointer trick Lim4 uses only to keep
// bucket headers at 4 bytes, an optimization with no Go equivalent
// worth chasing; see DESIGN.md).
type FixedParams[Item any] struct {
	cap     int
	classes []*pool.Pool[fixedSlab[Item]]
}

// NewFixedParams builds the size-class pool set for a Fixed family
// bucket policy capped at cap items (1 <= cap <= MaxFixedCapacity).
func NewFixedParams[Item any](cap int, poolParams config.PoolParams, metrics *telemetry.Metrics) *FixedParams[Item] {
	if cap < 1 || cap > MaxFixedCapacity {
		momoerr.AssertionFailure("FixedParams: cap %d out of range", cap)
	}
	classes := make([]*pool.Pool[fixedSlab[Item]], cap+1)
	for c := 1; c <= cap; c++ {
		classes[c] = pool.New[fixedSlab[Item]](poolParams, metrics)
	}
	return &FixedParams[Item]{cap: cap, classes: classes}
}

// Fixed is the LimP/LimP4/Lim4 bucket family of spec.md §4.3:
// max_count in {1..cap}, items stored contiguously with a parallel
// short-hash byte per item, payload reallocated to the next size class
// as the bucket grows.
type Fixed[Item any] struct {
	params  *FixedParams[Item]
	cap     int
	class   int // current slab's size class, 0 == no slab allocated
	slab    *fixedSlab[Item]
	count   int
	wasFull bool
}

// NewFixed constructs an empty Fixed bucket against params.
func NewFixed[Item any](params *FixedParams[Item]) *Fixed[Item] {
	return &Fixed[Item]{params: params, cap: params.cap}
}

func (b *Fixed[Item]) MaxCount() int { return b.cap }

func (b *Fixed[Item]) Bounds() []Item {
	if b.slab == nil {
		return nil
	}
	return b.slab.items[:b.count]
}

func (b *Fixed[Item]) Find(pred func(Item) bool, hashCode uint64) (int, bool) {
	if b.slab == nil {
		return -1, false
	}
	top := topByte(hashCode)
	for i := 0; i < b.count; i++ {
		if b.slab.hashes[i] != top {
			continue
		}
		if pred(b.slab.items[i]) {
			return i, true
		}
	}
	return -1, false
}

func (b *Fixed[Item]) Add(create func() Item, hashCode uint64, _ uint8, _ int) (int, error) {
	if b.count == b.cap {
		momoerr.AssertionFailure("Fixed: Add called on a full bucket")
	}
	if b.slab == nil || b.count == b.class {
		if err := b.growSlab(); err != nil {
			return -1, err
		}
	}
	idx := b.count
	b.slab.items[idx] = create()
	b.slab.hashes[idx] = topByte(hashCode)
	b.count++
	if b.count == b.cap {
		b.wasFull = true
	}
	return idx, nil
}

func (b *Fixed[Item]) growSlab() error {
	nextClass := b.class + 1
	if nextClass > b.cap {
		nextClass = b.cap
	}
	newSlab, err := b.params.classes[nextClass].Allocate()
	if err != nil {
		return err
	}
	if b.slab != nil {
		copy(newSlab.items[:b.count], b.slab.items[:b.count])
		copy(newSlab.hashes[:b.count], b.slab.hashes[:b.count])
		b.params.classes[b.class].Deallocate(b.slab)
	}
	b.slab = newSlab
	b.class = nextClass
	return nil
}

func (b *Fixed[Item]) Remove(idx int, replace func(last, removed Item) Item) {
	if b.slab == nil || idx >= b.count {
		momoerr.AssertionFailure("Fixed: Remove index %d out of range", idx)
	}
	last := b.count - 1
	if idx != last {
		b.slab.items[idx] = replace(b.slab.items[last], b.slab.items[idx])
		b.slab.hashes[idx] = b.slab.hashes[last]
	}
	var zero Item
	b.slab.items[last] = zero
	b.slab.hashes[last] = 0
	b.count--
	if b.count == 0 {
		b.params.classes[b.class].Deallocate(b.slab)
		b.slab = nil
		b.class = 0
	}
}

func (b *Fixed[Item]) IsFull() bool { return b.count == b.cap }

func (b *Fixed[Item]) WasFull() bool { return b.wasFull }

func (b *Fixed[Item]) Clear() {
	if b.slab != nil {
		b.params.classes[b.class].Deallocate(b.slab)
	}
	b.slab = nil
	b.class = 0
	b.count = 0
	b.wasFull = false
}

func topByte(hashCode uint64) uint8 {
	return uint8(hashCode >> 56)
}
