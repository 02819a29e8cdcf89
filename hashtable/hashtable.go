// Package hashtable implements the incrementally-rehashing hash table
// of spec.md §4.4: a bucket array addressed by the low bits of an
// item's key hash, with a bucket.Policy[Item] per slot and Go generics
// standing in for the C++ original's Item-type template instantiation.
//
// The design is a direct generalization of the teacher's runtime map
// (package hashmap, ported from Go's own map implementation): the same
// "grow by allocating a second, bigger bucket array and incrementally
// evacuate old buckets into it on every subsequent write" strategy,
// the same tophash-style short-hash byte stored per item (here,
// delegated to whichever bucket.Policy the table was built with), and
// the same overflow-chaining when a single bucket policy instance fills
// up before the table-wide load factor trips growth (teacher:
// h.setoverflow/b.overflow). Unlike the teacher, there is no unsafe
// pointer walking or runtime type descriptor: the bucket layout is a
// Go slice of chained Policy[Item] values and growth/evacuation operate
// through the Policy interface instead of raw memory.
package hashtable

import (
	"github.com/aristanetworks/glog"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
)

// Hasher produces a 64-bit hash for a Key. Implementations for the
// primitive key kinds live in internal/xhash; struct keys (column
// tuples, spec §4.8) supply their own.
type Hasher[Key any] interface {
	Hash(Key) uint64
}

// Equaler compares two keys for equality.
type Equaler[Key any] interface {
	Equal(a, b Key) bool
}

// PolicyFactory builds a fresh, empty bucket for a layer of the table.
type PolicyFactory[Item any] func() Policy[Item]

// Policy is the subset of bucket.Policy[Item] the table needs; defined
// here rather than imported so hashtable has no hard dependency on the
// bucket package's concrete types -- any type satisfying this shape
// (including bucket.Policy[Item] itself) plugs in.
type Policy[Item any] interface {
	MaxCount() int
	Bounds() []Item
	Find(pred func(Item) bool, hashCode uint64) (int, bool)
	Add(create func() Item, hashCode uint64, logBucketCount uint8, probe int) (int, error)
	Remove(idx int, replace func(last, removed Item) Item)
	IsFull() bool
	WasFull() bool
	Clear()
}

// prober mirrors bucket.Prober's shape locally, for the same reason
// Policy does: a policy satisfying it plugs the table into real
// open addressing across the bucket array (spec.md §4.3/§4.4) instead
// of the default in-bucket chain overflow below. A Prober-capable
// bucket never grows a chain link: NextBucketIndex is how it overflows.
type prober interface {
	NextBucketIndex(bucketIndex int, hashCode uint64, bucketCount int, probe int) int
}

// maxProbeTracker mirrors bucket.MaxProbeTracker locally: an optional
// bound on how many probes a negative lookup must walk before
// concluding a key is absent.
type maxProbeTracker interface {
	UpdateMaxProbe(probe int)
	GetMaxProbe(logBucketCount uint8) int
}

func asProber[Item any](p Policy[Item]) (prober, bool) {
	pr, ok := any(p).(prober)
	return pr, ok
}

func asMaxProbeTracker[Item any](p Policy[Item]) (maxProbeTracker, bool) {
	mpt, ok := any(p).(maxProbeTracker)
	return mpt, ok
}

// probeLimit bounds a negative-lookup probe walk: a MaxProbeTracker's
// sticky high-water mark if it is shorter than a full pass over the
// bucket array, else the full pass (spec.md §4.2).
func probeLimit[Item any](head Policy[Item], logBuckets uint8, bucketCount int) int {
	limit := bucketCount
	if mpt, ok := asMaxProbeTracker[Item](head); ok {
		if bound := mpt.GetMaxProbe(logBuckets); bound >= 0 && bound < limit {
			limit = bound
		}
	}
	return limit
}

// findProbed walks idx's open-addressing probe sequence across
// buckets: probe 0 is idx itself, every probe after that comes from
// pr.NextBucketIndex. It stops the instant a visited bucket was never
// full -- spec.md's was_full negative-lookup witness, the reason open
// addressing never needs to scan past the point a key could have been
// displaced from.
func findProbed[Item any](buckets []*chain[Item], logBuckets uint8, idx int, hash uint64, pred func(Item) bool, pr prober) (bucketIdx, itemIdx int, found bool) {
	bucketCount := len(buckets)
	head := buckets[idx].policy
	limit := probeLimit[Item](head, logBuckets, bucketCount)
	cur := idx
	for probe := 0; probe <= limit; probe++ {
		if probe > 0 {
			cur = pr.NextBucketIndex(idx, hash, bucketCount, probe)
		}
		b := buckets[cur].policy
		if i, ok := b.Find(pred, hash); ok {
			return cur, i, true
		}
		if !b.WasFull() {
			break
		}
	}
	return 0, 0, false
}

// addProbed places item into the first non-full bucket along idx's
// probe sequence. A linear probe step of the form (i+probe) mod
// bucketCount (the only stride any Prober in this package uses) visits
// every bucket at most once as probe ranges over [0, bucketCount), so
// a full pass either finds room or proves the array is exhausted.
func addProbed[Item any](buckets []*chain[Item], logBuckets uint8, idx int, hash uint64, create func() Item, pr prober) error {
	bucketCount := len(buckets)
	head := buckets[idx].policy
	cur := idx
	for probe := 0; probe < bucketCount; probe++ {
		if probe > 0 {
			cur = pr.NextBucketIndex(idx, hash, bucketCount, probe)
		}
		b := buckets[cur].policy
		if !b.IsFull() {
			if _, err := b.Add(create, hash, logBuckets, probe); err != nil {
				return err
			}
			if mpt, ok := asMaxProbeTracker[Item](head); ok {
				mpt.UpdateMaxProbe(probe)
			}
			return nil
		}
	}
	return momoerr.ErrTooManyCollisions
}

// probeSequenceFull reports whether every bucket along idx's probe
// sequence is already at capacity. The table's usual load-factor check
// (shouldGrow) is an average over the whole bucket array and can stay
// below threshold even while one local probe sequence -- a small,
// fixed-capacity Prober policy's, in particular -- has nowhere left to
// place an item, so Insert consults this too before committing.
func probeSequenceFull[Item any](buckets []*chain[Item], idx int, hash uint64, pr prober) bool {
	bucketCount := len(buckets)
	cur := idx
	for probe := 0; probe < bucketCount; probe++ {
		if probe > 0 {
			cur = pr.NextBucketIndex(idx, hash, bucketCount, probe)
		}
		if !buckets[cur].policy.IsFull() {
			return false
		}
	}
	return true
}

// removeProbed finds and removes the item matching pred along idx's
// probe sequence.
func removeProbed[Item any](buckets []*chain[Item], logBuckets uint8, idx int, hash uint64, pred func(Item) bool, pr prober) (Item, bool) {
	var zero Item
	bucketIdx, itemIdx, found := findProbed[Item](buckets, logBuckets, idx, hash, pred, pr)
	if !found {
		return zero, false
	}
	b := buckets[bucketIdx].policy
	removed := b.Bounds()[itemIdx]
	b.Remove(itemIdx, func(last, rm Item) Item { return last })
	return removed, true
}

// chain is one bucket slot's policy instance plus, once it fills,
// a linked overflow instance -- the Go-idiomatic stand-in for the
// teacher's bmap.overflow pointer chain. A Prober-capable policy never
// grows this link; see addProbed/findProbed above.
type chain[Item any] struct {
	policy Policy[Item]
	next   *chain[Item]
}

func (c *chain[Item]) find(pred func(Item) bool, hash uint64) (Item, bool) {
	var zero Item
	for b := c; b != nil; b = b.next {
		if i, ok := b.policy.Find(pred, hash); ok {
			return b.policy.Bounds()[i], true
		}
	}
	return zero, false
}

func (c *chain[Item]) forEach(fn func(Item) bool) bool {
	for b := c; b != nil; b = b.next {
		for _, item := range b.policy.Bounds() {
			if !fn(item) {
				return false
			}
		}
	}
	return true
}

func (c *chain[Item]) clear() {
	for b := c; b != nil; b = b.next {
		b.policy.Clear()
	}
}

// growth shift: normally the bucket array doubles (shift=1); while the
// table is small it quadruples (shift=2) to avoid several cheap, early
// rehashes in a row, mirroring spec.md's small-table growth-shift rule.
const smallTableLogThreshold = 4 // 1<<4 == 16

// loadFactorNumerator/Denominator reproduce the teacher's loadFactor =
// 6.5 average items per bucket before growth triggers.
const (
	loadFactorNumerator   = 13
	loadFactorDenominator = 2
)

// Table is the generic incremental-rehash hash table of spec.md §4.4.
type Table[Item, Key any] struct {
	hasher    Hasher[Key]
	equaler   Equaler[Key]
	itemKey   func(Item) Key
	newPolicy PolicyFactory[Item]
	metrics   *telemetry.Metrics

	buckets    []*chain[Item]
	logBuckets uint8

	old           []*chain[Item]
	oldLogBuckets uint8
	nevacuate     int

	count int

	changeVersion uint64 // bumped on every structural mutation
	removeVersion uint64 // bumped only on removal (row/iterator staleness)
}

// New builds an empty table with a single bucket.
func New[Item, Key any](hasher Hasher[Key], equaler Equaler[Key], itemKey func(Item) Key, newPolicy PolicyFactory[Item], metrics *telemetry.Metrics) *Table[Item, Key] {
	t := &Table[Item, Key]{
		hasher:    hasher,
		equaler:   equaler,
		itemKey:   itemKey,
		newPolicy: newPolicy,
		metrics:   metrics,
	}
	t.buckets = []*chain[Item]{{policy: newPolicy()}}
	return t
}

// Len reports the number of items in the table.
func (t *Table[Item, Key]) Len() int { return t.count }

func (t *Table[Item, Key]) bucketCount() int { return 1 << t.logBuckets }

func bucketIndex(hash uint64, logBuckets uint8) int {
	mask := uint64(1)<<logBuckets - 1
	return int(hash & mask)
}

func (t *Table[Item, Key]) growthShift() uint8 {
	if t.logBuckets < smallTableLogThreshold {
		return 2
	}
	return 1
}

// growing reports whether an evacuation from t.old is in progress.
func (t *Table[Item, Key]) growing() bool { return t.old != nil }

// lookupIn finds the item for pred/hash at idx within buckets, probing
// across bucket slots for a Prober-capable policy or walking the
// in-bucket overflow chain otherwise.
func lookupIn[Item any](buckets []*chain[Item], logBuckets uint8, idx int, hash uint64, pred func(Item) bool) (Item, bool) {
	var zero Item
	if pr, ok := asProber[Item](buckets[idx].policy); ok {
		bIdx, iIdx, found := findProbed[Item](buckets, logBuckets, idx, hash, pred, pr)
		if !found {
			return zero, false
		}
		return buckets[bIdx].policy.Bounds()[iIdx], true
	}
	return buckets[idx].find(pred, hash)
}

// Lookup finds the item for key, consulting the old (pre-growth)
// bucket array first when this slot lies at or past the evacuation
// cursor, then the new array (drainStep can evacuate a slot ahead of
// the cursor, moving its items into the new array early), like the
// teacher's mapaccess1 checking h.oldbuckets.
func (t *Table[Item, Key]) Lookup(key Key) (Item, bool) {
	hash := t.hasher.Hash(key)
	pred := func(it Item) bool { return t.equaler.Equal(t.itemKey(it), key) }

	if t.growing() {
		oldIdx := bucketIndex(hash, t.oldLogBuckets)
		if oldIdx >= t.nevacuate {
			if it, ok := lookupIn[Item](t.old, t.oldLogBuckets, oldIdx, hash, pred); ok {
				return it, true
			}
		}
	}
	idx := bucketIndex(hash, t.logBuckets)
	return lookupIn[Item](t.buckets, t.logBuckets, idx, hash, pred)
}

// Insert adds item, replacing any existing item whose key equals
// itemKey(item). Returns whether an existing item was replaced.
func (t *Table[Item, Key]) Insert(item Item) (bool, error) {
	key := t.itemKey(item)
	hash := t.hasher.Hash(key)
	pred := func(it Item) bool { return t.equaler.Equal(t.itemKey(it), key) }

again:
	idx := bucketIndex(hash, t.logBuckets)
	if t.growing() {
		t.drainStep(idx)
	}

	head := t.buckets[idx]
	if pr, ok := asProber[Item](head.policy); ok {
		bIdx, iIdx, found := findProbed[Item](t.buckets, t.logBuckets, idx, hash, pred, pr)
		if found {
			t.buckets[bIdx].policy.Remove(iIdx, func(last, removed Item) Item { return last })
			if err := addProbed[Item](t.buckets, t.logBuckets, idx, hash, func() Item { return item }, pr); err != nil {
				return false, err
			}
			t.changeVersion++
			return true, nil
		}
		if !t.growing() && (t.shouldGrow() || probeSequenceFull[Item](t.buckets, idx, hash, pr)) {
			if err := t.startGrow(); err != nil {
				return false, err
			}
			goto again
		}
		if err := addProbed[Item](t.buckets, t.logBuckets, idx, hash, func() Item { return item }, pr); err != nil {
			return false, err
		}
		t.count++
		t.changeVersion++
		return false, nil
	}

	for b := head; b != nil; b = b.next {
		if i, ok := b.policy.Find(pred, hash); ok {
			b.policy.Remove(i, func(last, removed Item) Item { return last })
			if _, err := b.policy.Add(func() Item { return item }, hash, t.logBuckets, 0); err != nil {
				return false, err
			}
			t.changeVersion++
			return true, nil
		}
	}

	if !t.growing() && t.shouldGrow() {
		if err := t.startGrow(); err != nil {
			return false, err
		}
		goto again
	}

	tail := head
	for tail.next != nil {
		tail = tail.next
	}
	if tail.policy.IsFull() {
		tail.next = &chain[Item]{policy: t.newPolicy()}
		tail = tail.next
	}
	if _, err := tail.policy.Add(func() Item { return item }, hash, t.logBuckets, 0); err != nil {
		return false, err
	}
	t.count++
	t.changeVersion++
	return false, nil
}

func (t *Table[Item, Key]) shouldGrow() bool {
	if t.bucketCount() == 0 {
		return false
	}
	return t.count*loadFactorDenominator >= t.bucketCount()*loadFactorNumerator
}

func (t *Table[Item, Key]) startGrow() error {
	shift := t.growthShift()
	newLog := t.logBuckets + shift
	newBuckets := make([]*chain[Item], 1<<newLog)
	for i := range newBuckets {
		newBuckets[i] = &chain[Item]{policy: t.newPolicy()}
	}
	t.old = t.buckets
	t.oldLogBuckets = t.logBuckets
	t.buckets = newBuckets
	t.logBuckets = newLog
	t.nevacuate = 0
	if t.metrics != nil {
		t.metrics.IncRehashStarted()
	}
	glog.V(2).Infof("hashtable: growing bucket array from %d to %d buckets, count=%d", 1<<t.oldLogBuckets, 1<<newLog, t.count)
	return nil
}

// drainStep evacuates the old bucket that the in-flight write's target
// bucket depends on, then evacuates one more to make incremental
// progress, mirroring growWork's two-evacuate-per-write cadence.
func (t *Table[Item, Key]) drainStep(newBucketIdx int) {
	if !t.growing() {
		return
	}
	oldMask := 1<<t.oldLogBuckets - 1
	t.evacuate(newBucketIdx & oldMask)
	if t.growing() {
		t.evacuate(t.nevacuate)
	}
}

func (t *Table[Item, Key]) evacuate(oldIdx int) {
	if oldIdx < t.nevacuate || oldIdx >= len(t.old) {
		return
	}
	old := t.old[oldIdx]
	old.forEach(func(item Item) bool {
		key := t.itemKey(item)
		hash := t.hasher.Hash(key)
		newIdx := bucketIndex(hash, t.logBuckets)
		head := t.buckets[newIdx].policy
		if pr, ok := asProber[Item](head); ok {
			if err := addProbed[Item](t.buckets, t.logBuckets, newIdx, hash, func() Item { return item }, pr); err != nil {
				momoerr.AssertionFailure("hashtable: evacuate failed to re-insert: %v", err)
			}
			return true
		}
		tail := t.buckets[newIdx]
		for tail.next != nil {
			tail = tail.next
		}
		if tail.policy.IsFull() {
			tail.next = &chain[Item]{policy: t.newPolicy()}
			tail = tail.next
		}
		if _, err := tail.policy.Add(func() Item { return item }, hash, t.logBuckets, 0); err != nil {
			momoerr.AssertionFailure("hashtable: evacuate failed to re-insert: %v", err)
		}
		return true
	})
	old.clear()
	if t.metrics != nil {
		t.metrics.IncDrainSteps()
	}
	total := len(t.old)
	if oldIdx == t.nevacuate {
		t.nevacuate++
	}
	glog.V(2).Infof("hashtable: drained bucket %d, %d/%d evacuated", oldIdx, t.nevacuate, total)
	if t.nevacuate >= len(t.old) {
		glog.V(2).Infof("hashtable: grow finished, %d buckets retired", total)
		t.old = nil
		t.oldLogBuckets = 0
		t.nevacuate = 0
	}
}

// Remove deletes the item for key, if present, returning it.
func (t *Table[Item, Key]) Remove(key Key) (Item, bool) {
	var zero Item
	hash := t.hasher.Hash(key)
	pred := func(it Item) bool { return t.equaler.Equal(t.itemKey(it), key) }

	idx := bucketIndex(hash, t.logBuckets)
	if t.growing() {
		t.drainStep(idx)
	}

	if pr, ok := asProber[Item](t.buckets[idx].policy); ok {
		removed, found := removeProbed[Item](t.buckets, t.logBuckets, idx, hash, pred, pr)
		if !found {
			return zero, false
		}
		t.count--
		t.changeVersion++
		t.removeVersion++
		return removed, true
	}

	for b := t.buckets[idx]; b != nil; b = b.next {
		i, ok := b.policy.Find(pred, hash)
		if !ok {
			continue
		}
		removed := b.policy.Bounds()[i]
		b.policy.Remove(i, func(last, rm Item) Item { return last })
		t.count--
		t.changeVersion++
		t.removeVersion++
		return removed, true
	}
	return zero, false
}

// ForEach visits every item in an unspecified order, consulting the
// old array for buckets not yet evacuated -- the hash-table analogue
// of the teacher's mapiternext bucket/oldbucket resolution, simplified
// since this port has no partial in-flight iterator staleness to
// reconcile (ForEach completes synchronously).
func (t *Table[Item, Key]) ForEach(fn func(Item) bool) {
	if t.growing() {
		for i, b := range t.old {
			if i < t.nevacuate {
				continue
			}
			if !b.forEach(fn) {
				return
			}
		}
	}
	for _, b := range t.buckets {
		if !b.forEach(fn) {
			return
		}
	}
}

// ChangeVersion and RemoveVersion expose the table's mutation counters
// for version-checked borrowed views (row.RowRef, spec §4.7).
func (t *Table[Item, Key]) ChangeVersion() uint64 { return t.changeVersion }
func (t *Table[Item, Key]) RemoveVersion() uint64 { return t.removeVersion }
