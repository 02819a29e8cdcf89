// Package index implements spec.md §4.8's data index set: unique-hash
// and multi-hash secondary indexes over a table's rows, mediated by a
// two-phase add/remove/update protocol so a mid-mutation failure never
// leaves an index partially updated.
//
// Grounded on the teacher's hashmap overlay pattern (an index is "just"
// a hashtable.Table keyed by a derived tuple rather than the row
// itself) generalized to the three key shapes spec.md's "Indexing hash
// traits" paragraph describes: a raw-row key (reads columns live from
// the row buffer), a pre-tupled search key (caller-supplied column
// bytes, no backing row), and an update-key (reads the row but
// substitutes one column's pending new bytes) -- unified here into one
// tupleKey type with a small per-offset override map instead of three
// separate key types, since all three only ever differ in where a
// given column's bytes come from.
package index

import (
	"bytes"
	"sort"

	"github.com/morzhovets/momo/internal/xhash"
	"github.com/morzhovets/momo/row"
)

// KeyColumn is one key column's location within a row buffer.
type KeyColumn struct {
	Offset uintptr
	Size   uintptr
}

// tupleKey is the unified key shape backing all three of spec's
// "Indexing hash traits" key kinds.
type tupleKey struct {
	columns   []KeyColumn
	raw       *row.Raw
	overrides map[uintptr][]byte
}

func (k tupleKey) bytesFor(kc KeyColumn) []byte {
	if v, ok := k.overrides[kc.Offset]; ok {
		return v
	}
	return k.raw.Buf[kc.Offset : kc.Offset+kc.Size]
}

// rawKey builds a raw-row key: hash reads every column live from raw.
func rawKey(columns []KeyColumn, raw *row.Raw) tupleKey {
	return tupleKey{columns: columns, raw: raw}
}

// searchKey builds a pre-tupled search key from explicit column bytes,
// keyed by offset; no backing row is read.
func searchKey(columns []KeyColumn, values map[uintptr][]byte) tupleKey {
	return tupleKey{columns: columns, overrides: values}
}

// updateKey builds the key that would result if raw's column at
// changedOffset were overwritten with newBytes -- spec's "as if raw had
// *item_ptr at offset" update-key.
func updateKey(columns []KeyColumn, raw *row.Raw, changedOffset uintptr, newBytes []byte) tupleKey {
	return tupleKey{
		columns:   columns,
		raw:       raw,
		overrides: map[uintptr][]byte{changedOffset: newBytes},
	}
}

type tupleHasher struct{}

func (tupleHasher) Hash(k tupleKey) uint64 {
	var acc uint64
	for _, kc := range k.columns {
		acc = xhash.Combine(acc, xhash.Bytes(k.bytesFor(kc)))
	}
	return acc
}

type tupleEqualer struct{}

func (tupleEqualer) Equal(a, b tupleKey) bool {
	if len(a.columns) != len(b.columns) {
		return false
	}
	for i, kc := range a.columns {
		if !bytes.Equal(a.bytesFor(kc), b.bytesFor(kc)) {
			return false
		}
	}
	return true
}

// sortedKeyColumns returns columns sorted ascending by offset, matching
// spec's "each index carries a sorted-offsets array" descriptor.
func sortedKeyColumns(columns []KeyColumn) []KeyColumn {
	out := append([]KeyColumn(nil), columns...)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// coversOffset reports whether a sorted key-column list includes
// offset, via binary search (spec's O(log k) "is this index affected
// by this write" check).
func coversOffset(sorted []KeyColumn, offset uintptr) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].Offset >= offset })
	return i < len(sorted) && sorted[i].Offset == offset
}
