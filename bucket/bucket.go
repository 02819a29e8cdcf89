// Package bucket implements the bucket contract of spec.md §4.2 and
// the concrete bucket policies of §4.3: the pluggable strategy a
// hashtable.Table uses to store the small cluster of items that share
// one hash-table slot.
//
// Grounded on the teacher repo's bmap/tophash/overflow design
// (gramework/threadsafe/hashmap.go, itself a from-scratch port of Go's
// runtime hashmap): a short partial-hash byte per stored item, an
// explicit was-full flag, and a contract that lets the owning table
// stay oblivious to layout. Where the C++ original encodes bucket
// state into the low bits of a tagged payload pointer (spec.md §4.3,
// §9 "Tagged pointer encoding"), this port uses a sibling field
// instead: Go gives no portable guarantee about spare low bits in an
// arbitrary pointer, and spec.md §9 explicitly sanctions that
// substitution ("a re-implementation that cannot guarantee pointer
// alignment must either pad the payload or move the tag into a
// separate byte").
package bucket

const (
	// UnboundedMaxCount is the MaxCount() value a bucket policy with no
	// per-bucket cap reports (spec.md §4.2: "max_count (constant or
	// UNBOUNDED)").
	UnboundedMaxCount = -1
)

// Params is the per-hash-table shared state a bucket policy operates
// against: typically one or more memory pools keyed by the bucket's
// current size class (spec.md §4.2).
type Params[Item any] any

// Policy is the bucket contract every concrete policy in this package
// satisfies. A hashtable.Table is parameterized by one Policy
// implementation and never branches on which one it holds (spec.md
// §4.3: "the table is oblivious to which policy it holds").
type Policy[Item any] interface {
	// MaxCount returns the bucket's item cap, or UnboundedMaxCount.
	MaxCount() int

	// Bounds returns the current items as a contiguous slice view.
	Bounds() []Item

	// Find does a linear walk over Bounds looking for the first item
	// satisfying pred; hashCode is provided so policies that store a
	// partial hash per item can skip the predicate call entirely on a
	// partial-hash mismatch.
	Find(pred func(Item) bool, hashCode uint64) (int, bool)

	// Add grows the bucket by one item built by create, returning the
	// new item's index. hashCode/logBucketCount/probe are provided so
	// policies that store per-item partial hashes or track a max-probe
	// can update that bookkeeping.
	Add(create func() Item, hashCode uint64, logBucketCount uint8, probe int) (int, error)

	// Remove shrinks the bucket by one. replace is called with
	// (last, removed) when the removed slot is not already the last
	// one, and must return the value to move into the removed slot
	// (spec.md §4.2: "replacer(last, removed) moves the last item into
	// the removed slot").
	Remove(idx int, replace func(last, removed Item) Item)

	// IsFull reports whether Bounds() has reached MaxCount().
	IsFull() bool

	// WasFull reports whether the bucket has ever reached MaxCount()
	// since the last Clear (spec.md: "monotone non-decreasing").
	WasFull() bool

	// Clear empties the bucket and resets WasFull.
	Clear()
}

// MaxProbeTracker is the optional capability (spec.md §4.2) for
// policies that track the longest successful probe from a bucket, to
// shorten negative lookups.
type MaxProbeTracker interface {
	UpdateMaxProbe(probe int)
	GetMaxProbe(logBucketCount uint8) int
}

// Prober is the optional capability (spec.md §4.2) for policies that
// overflow into other buckets of the table's array: hashtable.Table
// walks NextBucketIndex for such a policy. Policies without it do not
// probe; the hash table links an in-bucket overflow chain for them
// instead.
type Prober interface {
	NextBucketIndex(bucketIndex int, hashCode uint64, bucketCount int, probe int) int
}

// NothrowAddable is an optional marker a policy implements to tell the
// hash table Add cannot fail given a nothrow-creatable item (spec.md
// §4.3: "a policy advertises is_nothrow_addable_if_nothrow_creatable").
type NothrowAddable interface {
	NothrowAddable() bool
}
