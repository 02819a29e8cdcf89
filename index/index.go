package index

import (
	"github.com/aristanetworks/glog"
	"github.com/morzhovets/momo/bucket"
	"github.com/morzhovets/momo/hashtable"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/row"
)

// UniqueHashIndex is spec.md §4.8's unique-hash secondary index: at
// most one row per distinct key tuple.
type UniqueHashIndex struct {
	name    string
	columns []KeyColumn // sorted ascending by offset
	table   *hashtable.Table[*row.Raw, tupleKey]
}

// Name implements momoerr.IndexDescriptor for UniqueIndexViolation.
func (u *UniqueHashIndex) Name() string { return u.name }

// NewUniqueHashIndex builds an empty unique-hash index over columns.
func NewUniqueHashIndex(name string, columns []KeyColumn, metrics *telemetry.Metrics) *UniqueHashIndex {
	sorted := sortedKeyColumns(columns)
	params := bucket.NewFixedParams[*row.Raw](4, config.PoolParams{}, metrics)
	factory := func() hashtable.Policy[*row.Raw] { return bucket.NewFixed[*row.Raw](params) }
	itemKey := func(r *row.Raw) tupleKey { return rawKey(sorted, r) }
	return &UniqueHashIndex{
		name:    name,
		columns: sorted,
		table:   hashtable.New[*row.Raw, tupleKey](tupleHasher{}, tupleEqualer{}, itemKey, factory, metrics),
	}
}

// wouldViolate reports whether raw's key already has a different row
// registered -- the read-only "prepare" half of the two-phase add.
func (u *UniqueHashIndex) wouldViolate(raw *row.Raw) (*row.Raw, bool) {
	existing, ok := u.table.Lookup(rawKey(u.columns, raw))
	if !ok || existing == raw {
		return nil, false
	}
	return existing, true
}

func (u *UniqueHashIndex) acceptAdd(raw *row.Raw) error {
	_, err := u.table.Insert(raw)
	return err
}

func (u *UniqueHashIndex) acceptRemove(raw *row.Raw) {
	u.table.Remove(rawKey(u.columns, raw))
}

// snapshotKey copies raw's current key-column bytes into a detached
// search key, so the key survives a subsequent in-place write to raw's
// buffer (the update-row path needs the pre-write key to clean up the
// stale index entry after the write has already landed).
func snapshotKey(columns []KeyColumn, raw *row.Raw) tupleKey {
	values := make(map[uintptr][]byte, len(columns))
	for _, kc := range columns {
		b := raw.Buf[kc.Offset : kc.Offset+kc.Size]
		values[kc.Offset] = append([]byte(nil), b...)
	}
	return searchKey(columns, values)
}

// Find looks up the row for a pre-tupled search key's column values.
func (u *UniqueHashIndex) Find(values map[uintptr][]byte) (*row.Raw, bool) {
	return u.table.Lookup(searchKey(u.columns, values))
}

// Add runs the two-phase add protocol against this index alone, for
// callers building a single index outside an IndexSet (table's
// add_unique_hash_index bulk-load backfill).
func (u *UniqueHashIndex) Add(raw *row.Raw) error {
	if existing, violated := u.wouldViolate(raw); violated {
		glog.Warningf("momo: index %q rejected a row during bulk load: key already held by another row", u.name)
		return &momoerr.UniqueIndexViolation{Index: u, Existing: existing}
	}
	return u.acceptAdd(raw)
}

// Columns returns the index's sorted key-column descriptors.
func (u *UniqueHashIndex) Columns() []KeyColumn { return u.columns }

// Len reports the number of rows indexed.
func (u *UniqueHashIndex) Len() int { return u.table.Len() }

// MultiHashIndex is spec.md §4.8's multi-hash secondary index: any
// number of rows may share a key tuple. The value-array per key uses
// bucket.Unbounded, matching the same "UnlimP as the value-array
// bucket type" choice as hashmap.MultiMap.
type MultiHashIndex struct {
	name         string
	columns      []KeyColumn
	table        *hashtable.Table[*multiSlot, tupleKey]
	inlineParams *bucket.FixedParams[*row.Raw]
}

type multiSlot struct {
	key  tupleKey
	raws *bucket.Unbounded[*row.Raw]
}

// Name implements momoerr.IndexDescriptor.
func (m *MultiHashIndex) Name() string { return m.name }

// NewMultiHashIndex builds an empty multi-hash index over columns.
func NewMultiHashIndex(name string, columns []KeyColumn, metrics *telemetry.Metrics) *MultiHashIndex {
	sorted := sortedKeyColumns(columns)
	slotParams := bucket.NewFixedParams[*multiSlot](4, config.PoolParams{}, metrics)
	factory := func() hashtable.Policy[*multiSlot] { return bucket.NewFixed[*multiSlot](slotParams) }
	itemKey := func(s *multiSlot) tupleKey { return s.key }
	return &MultiHashIndex{
		name:         name,
		columns:      sorted,
		table:        hashtable.New[*multiSlot, tupleKey](tupleHasher{}, tupleEqualer{}, itemKey, factory, metrics),
		inlineParams: bucket.NewUnboundedParams[*row.Raw](config.PoolParams{}, metrics),
	}
}

func (m *MultiHashIndex) acceptAdd(raw *row.Raw) error {
	key := rawKey(m.columns, raw)
	slot, ok := m.table.Lookup(key)
	created := false
	if !ok {
		slot = &multiSlot{key: rawKey(m.columns, raw), raws: bucket.NewUnbounded[*row.Raw](m.inlineParams)}
		if _, err := m.table.Insert(slot); err != nil {
			return err
		}
		created = true
	}
	if _, err := slot.raws.Add(func() *row.Raw { return raw }, 0, 0, 0); err != nil {
		if created {
			// Leave no trace of a slot this call alone introduced: a
			// freshly created key with zero raws is otherwise
			// indistinguishable from one IndexSet.AddRow's rollback is
			// still expected to undo.
			m.table.Remove(key)
		}
		return err
	}
	return nil
}

func (m *MultiHashIndex) acceptRemove(raw *row.Raw) {
	key := rawKey(m.columns, raw)
	slot, ok := m.table.Lookup(key)
	if !ok {
		return
	}
	idx, ok := slot.raws.Find(func(r *row.Raw) bool { return r == raw }, 0)
	if !ok {
		return
	}
	slot.raws.Remove(idx, func(last, removed *row.Raw) *row.Raw { return last })
	if len(slot.raws.Bounds()) == 0 {
		m.table.Remove(key)
	}
}

// Find returns every row registered under a pre-tupled search key.
func (m *MultiHashIndex) Find(values map[uintptr][]byte) []*row.Raw {
	slot, ok := m.table.Lookup(searchKey(m.columns, values))
	if !ok {
		return nil
	}
	return slot.raws.Bounds()
}

// Add registers raw under its key, for callers building a single index
// outside an IndexSet (table's add_multi_hash_index bulk-load backfill).
func (m *MultiHashIndex) Add(raw *row.Raw) error { return m.acceptAdd(raw) }

// Columns returns the index's sorted key-column descriptors.
func (m *MultiHashIndex) Columns() []KeyColumn { return m.columns }

// Len reports the number of distinct key tuples indexed.
func (m *MultiHashIndex) Len() int { return m.table.Len() }

// IndexSet owns a table's unique-hash and multi-hash indexes and
// mediates the two-phase add/remove/update protocol of spec.md §4.8.
type IndexSet struct {
	unique []*UniqueHashIndex
	multi  []*MultiHashIndex
}

// AddUniqueHashIndex registers a new unique-hash index. Callers must
// ensure existing rows are backfilled before relying on it (spec.md
// leaves index-from-existing-rows population to the table package).
func (s *IndexSet) AddUniqueHashIndex(idx *UniqueHashIndex) { s.unique = append(s.unique, idx) }

// AddMultiHashIndex registers a new multi-hash index.
func (s *IndexSet) AddMultiHashIndex(idx *MultiHashIndex) { s.multi = append(s.multi, idx) }

// RemoveUniqueHashIndexes drops every registered unique-hash index.
func (s *IndexSet) RemoveUniqueHashIndexes() { s.unique = nil }

// RemoveMultiHashIndexes drops every registered multi-hash index.
func (s *IndexSet) RemoveMultiHashIndexes() { s.multi = nil }

// UniqueIndexes returns the registered unique-hash indexes.
func (s *IndexSet) UniqueIndexes() []*UniqueHashIndex { return s.unique }

// MultiIndexes returns the registered multi-hash indexes.
func (s *IndexSet) MultiIndexes() []*MultiHashIndex { return s.multi }

// AddRow runs the two-phase add protocol: every unique-hash index is
// checked for a violation first (a pure read, so nothing has mutated
// yet), ruling out the UniqueIndexViolation case before any index
// commits. Commit itself can still fail (ErrOutOfMemory from a pool
// that cannot grow) after some indexes already accepted the row, so
// every commit that lands is tracked and undone via acceptRemove if a
// later one fails -- spec.md §5's strong-exception-safety contract:
// a failed AddRow must leave every index exactly as it found it.
func (s *IndexSet) AddRow(raw *row.Raw) error {
	for _, uh := range s.unique {
		if existing, violated := uh.wouldViolate(raw); violated {
			return &momoerr.UniqueIndexViolation{Index: uh, Existing: existing}
		}
	}

	var committedUnique []*UniqueHashIndex
	var committedMulti []*MultiHashIndex
	rollback := func() {
		for _, uh := range committedUnique {
			uh.acceptRemove(raw)
		}
		for _, mh := range committedMulti {
			mh.acceptRemove(raw)
		}
	}

	for _, uh := range s.unique {
		if err := uh.acceptAdd(raw); err != nil {
			rollback()
			return err
		}
		committedUnique = append(committedUnique, uh)
	}
	for _, mh := range s.multi {
		if err := mh.acceptAdd(raw); err != nil {
			rollback()
			return err
		}
		committedMulti = append(committedMulti, mh)
	}
	return nil
}

// RemoveRow removes raw from every registered index.
func (s *IndexSet) RemoveRow(raw *row.Raw) {
	for _, uh := range s.unique {
		uh.acceptRemove(raw)
	}
	for _, mh := range s.multi {
		mh.acceptRemove(raw)
	}
}

// UpdateRow performs spec.md §4.8's optimized in-place update: finds
// every index whose sorted key columns cover changedOffset, stages an
// update-key add for each (checking unique violations before assign
// runs), calls assign only if every stage passed, then removes the
// stale key from each affected index now that assign has committed the
// new bytes.
func (s *IndexSet) UpdateRow(raw *row.Raw, changedOffset uintptr, newBytes []byte, assign func()) error {
	var affectedUnique []*UniqueHashIndex
	var affectedMulti []*MultiHashIndex
	for _, uh := range s.unique {
		if coversOffset(uh.columns, changedOffset) {
			affectedUnique = append(affectedUnique, uh)
		}
	}
	for _, mh := range s.multi {
		if coversOffset(mh.columns, changedOffset) {
			affectedMulti = append(affectedMulti, mh)
		}
	}
	if len(affectedUnique) == 0 && len(affectedMulti) == 0 {
		assign()
		return nil
	}

	for _, uh := range affectedUnique {
		candidate := updateKey(uh.columns, raw, changedOffset, newBytes)
		if existing, ok := uh.table.Lookup(candidate); ok && existing != raw {
			return &momoerr.UniqueIndexViolation{Index: uh, Existing: existing}
		}
	}

	// Snapshot each affected index's pre-write key now, since assign
	// below overwrites raw's buffer in place and a key bound to raw
	// would read the new bytes, not the ones it is meant to clean up.
	oldUniqueKeys := make([]tupleKey, len(affectedUnique))
	for i, uh := range affectedUnique {
		oldUniqueKeys[i] = snapshotKey(uh.columns, raw)
	}
	oldMultiKeys := make([]tupleKey, len(affectedMulti))
	for i, mh := range affectedMulti {
		oldMultiKeys[i] = snapshotKey(mh.columns, raw)
	}

	assign()

	for i, uh := range affectedUnique {
		uh.table.Remove(oldUniqueKeys[i])
		if _, err := uh.table.Insert(raw); err != nil {
			momoerr.AssertionFailure("index: re-insert after update failed: %v", err)
		}
	}
	for i, mh := range affectedMulti {
		if slot, ok := mh.table.Lookup(oldMultiKeys[i]); ok {
			if idx, found := slot.raws.Find(func(r *row.Raw) bool { return r == raw }, 0); found {
				slot.raws.Remove(idx, func(last, removed *row.Raw) *row.Raw { return last })
				if len(slot.raws.Bounds()) == 0 {
					mh.table.Remove(oldMultiKeys[i])
				}
			}
		}
		if err := mh.acceptAdd(raw); err != nil {
			momoerr.AssertionFailure("index: re-insert after update failed: %v", err)
		}
	}
	return nil
}
