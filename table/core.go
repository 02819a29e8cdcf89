// Package table implements spec.md §4.9's data table: a column-oriented
// row store built on package row's raw buffers and package index's
// secondary indexes. Both exported variants -- Table[Row] (compile-time
// struct columns) and DynTable (columns declared at runtime) -- share
// this file's unexported core engine; they differ only in how their
// ColumnList gets built (see table.go / dyntable.go) and in the typed
// convenience layer wrapped around core's byte-buffer operations.
//
// Grounded on no single pack file (the pack has no data-table-shaped
// library); core's row-vector/index/version-counter bookkeeping follows
// spec.md §4.9/§5/§6 directly, reusing row/index/columnlist for
// everything spec delegates to the hash containers. See DESIGN.md.
package table

import (
	"encoding/binary"
	"sort"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/index"
	"github.com/morzhovets/momo/internal/freelist"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/row"
)

// InvalidRowNumber is the sentinel spec §4.9's batch-remove marks a
// to-be-removed row's row-number with before compaction.
const InvalidRowNumber = ^uint64(0)

// selectEqualerMaxCount bounds how many equality predicates select()
// will try to satisfy via an index lookup before folding the excess
// into the row-filter predicate (spec §4.9 step 2). Not named by
// spec.md as a concrete number; 4 keeps the common case (PK plus a
// couple of secondary columns) on the index path without growing the
// subset-search past what a handful of registered indexes need.
const selectEqualerMaxCount = 4

// Predicate is one `column == value` equality term for select/select_count.
type Predicate struct {
	Code  uint64
	Value []byte
}

// TryResult is the outcome of a try_add_row/try_insert_row call: a
// non-nil ViolatedIndex means the operation did not take effect.
type TryResult struct {
	RowRef        row.RowRef
	ViolatedIndex momoerr.IndexDescriptor
}

// core is the shared engine behind Table[Row] and DynTable.
type core struct {
	columns  *columnlist.ColumnList
	freeRaws *freelist.Stack[*row.Raw]
	indexes  index.IndexSet
	metrics  *telemetry.Metrics

	rows          []*row.Raw
	changeVersion uint64
	removeVersion uint64
}

func newCore(columns *columnlist.ColumnList, metrics *telemetry.Metrics) *core {
	return &core{columns: columns, freeRaws: &freelist.Stack[*row.Raw]{}, metrics: metrics}
}

func (c *core) bumpChange() { c.changeVersion++ }
func (c *core) bumpRemove() { c.removeVersion++ }

func (c *core) rowNumberOf(raw *row.Raw) (uint64, bool) {
	off, ok := c.columns.RowNumberOffset()
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(raw.Buf[off : off+8]), true
}

func (c *core) setRowNumber(raw *row.Raw, n uint64) {
	off, ok := c.columns.RowNumberOffset()
	if !ok {
		return
	}
	binary.LittleEndian.PutUint64(raw.Buf[off:off+8], n)
}

func (c *core) renumberFrom(pos int) {
	for i := pos; i < len(c.rows); i++ {
		c.setRowNumber(c.rows[i], uint64(i))
	}
}

// positionOf locates raw's index in the row vector, by row-number when
// tracked, else by a linear scan (spec §4.9 "Row removal" step 1).
func (c *core) positionOf(raw *row.Raw) (int, bool) {
	if n, ok := c.rowNumberOf(raw); ok && n != InvalidRowNumber && int(n) < len(c.rows) && c.rows[n] == raw {
		return int(n), true
	}
	for i, r := range c.rows {
		if r == raw {
			return i, true
		}
	}
	return 0, false
}

// Len reports the number of live rows.
func (c *core) Len() int { return len(c.rows) }

// RowRefAt returns a version-checked reference to the row currently at
// pos (spec §4.9's positional row access, shared by both table
// variants).
func (c *core) RowRefAt(pos int) (row.RowRef, error) {
	if pos < 0 || pos >= len(c.rows) {
		return row.RowRef{}, momoerr.InvalidArgument("row_at: position out of range")
	}
	return row.NewRowRef(c.columns, c.rows[pos], &c.removeVersion), nil
}

// Reserve hints the row vector's backing array should hold at least n
// rows without reallocating (original_source supplement, §E.1).
func (c *core) Reserve(n int) {
	if n <= cap(c.rows) {
		return
	}
	grown := make([]*row.Raw, len(c.rows), n)
	copy(grown, c.rows)
	c.rows = grown
}

// ShrinkToFit drops the row vector's excess capacity (original_source
// supplement, §E.1).
func (c *core) ShrinkToFit() {
	if len(c.rows) == cap(c.rows) {
		return
	}
	shrunk := make([]*row.Raw, len(c.rows))
	copy(shrunk, c.rows)
	c.rows = shrunk
}

// NewRow allocates a fresh or recycled Row, applying assigners in order.
func (c *core) NewRow(assigners ...func(*row.Raw)) *row.Row {
	r := row.New(c.columns, c.freeRaws)
	for _, assign := range assigners {
		assign(r.Raw())
	}
	return r
}

// TryAddRow implements spec §4.9's add_row steps 1-4.
func (c *core) TryAddRow(r *row.Row) (TryResult, error) {
	raw := r.Raw()
	if err := c.indexes.AddRow(raw); err != nil {
		if viol, ok := momoerr.AsUniqueIndexViolation(err); ok {
			return TryResult{ViolatedIndex: viol.Index}, nil
		}
		return TryResult{}, err
	}
	n := uint64(len(c.rows))
	c.setRowNumber(raw, n)
	c.rows = append(c.rows, raw)
	r.Steal()
	c.bumpChange()
	return TryResult{RowRef: row.NewRowRef(c.columns, raw, &c.removeVersion)}, nil
}

// AddRow is try_add_row with a thrown UniqueIndexViolation on rejection.
func (c *core) AddRow(r *row.Row) (row.RowRef, error) {
	res, err := c.TryAddRow(r)
	if err != nil {
		return row.RowRef{}, err
	}
	if res.ViolatedIndex != nil {
		return row.RowRef{}, &momoerr.UniqueIndexViolation{Index: res.ViolatedIndex}
	}
	return res.RowRef, nil
}

// TryInsertRow implements insert_row(n, row) at an explicit position.
func (c *core) TryInsertRow(n int, r *row.Row) (TryResult, error) {
	if n < 0 || n > len(c.rows) {
		return TryResult{}, momoerr.InvalidArgument("insert_row: position out of range")
	}
	raw := r.Raw()
	if err := c.indexes.AddRow(raw); err != nil {
		if viol, ok := momoerr.AsUniqueIndexViolation(err); ok {
			return TryResult{ViolatedIndex: viol.Index}, nil
		}
		return TryResult{}, err
	}
	c.rows = append(c.rows, nil)
	copy(c.rows[n+1:], c.rows[n:])
	c.rows[n] = raw
	c.renumberFrom(n)
	r.Steal()
	c.bumpChange()
	return TryResult{RowRef: row.NewRowRef(c.columns, raw, &c.removeVersion)}, nil
}

// InsertRow is try_insert_row with a thrown UniqueIndexViolation.
func (c *core) InsertRow(n int, r *row.Row) (row.RowRef, error) {
	res, err := c.TryInsertRow(n, r)
	if err != nil {
		return row.RowRef{}, err
	}
	if res.ViolatedIndex != nil {
		return row.RowRef{}, &momoerr.UniqueIndexViolation{Index: res.ViolatedIndex}
	}
	return res.RowRef, nil
}

// removeAt implements spec §4.9's "Row removal" steps 2-4, returning the
// freed raw without touching the pool/free-raws list (the two public
// callers differ only in what they do with that raw afterward).
func (c *core) removeAt(pos int, keepOrder bool) *row.Raw {
	raw := c.rows[pos]
	c.indexes.RemoveRow(raw)
	if keepOrder {
		copy(c.rows[pos:], c.rows[pos+1:])
		c.rows = c.rows[:len(c.rows)-1]
		c.renumberFrom(pos)
	} else {
		last := len(c.rows) - 1
		c.rows[pos] = c.rows[last]
		c.rows[last] = nil
		c.rows = c.rows[:last]
		if pos != last {
			c.setRowNumber(c.rows[pos], uint64(pos))
		}
	}
	c.bumpChange()
	c.bumpRemove()
	return raw
}

// RemoveRowAt frees the raw back to the free-raws list (spec step 5).
func (c *core) RemoveRowAt(pos int, keepOrder bool) {
	raw := c.removeAt(pos, keepOrder)
	clear(raw.Buf)
	c.freeRaws.Push(raw)
}

// RemoveRowByRef locates raw's current position and frees it.
func (c *core) RemoveRowByRef(ref row.RowRef, keepOrder bool) error {
	pos, ok := c.positionOf(ref.Raw())
	if !ok {
		return momoerr.InvalidArgument("remove_row: row does not belong to this table")
	}
	c.RemoveRowAt(pos, keepOrder)
	return nil
}

// ExtractRowAt removes the row but hands the caller ownership of its
// buffer rather than freeing it (spec: "extract_row is identical but
// returns a Row owning the raw rather than freeing it").
func (c *core) ExtractRowAt(pos int, keepOrder bool) *row.Row {
	raw := c.removeAt(pos, keepOrder)
	return row.Adopt(c.columns, raw, c.freeRaws)
}

// TryUpdateRowFull implements spec's "wholesale replacement" update:
// the new raw is added before the old one is removed, so a rejected add
// leaves the table untouched.
func (c *core) TryUpdateRowFull(pos int, newRow *row.Row) (TryResult, error) {
	oldRaw := c.rows[pos]
	newRaw := newRow.Raw()
	if err := c.indexes.AddRow(newRaw); err != nil {
		if viol, ok := momoerr.AsUniqueIndexViolation(err); ok {
			return TryResult{ViolatedIndex: viol.Index}, nil
		}
		return TryResult{}, err
	}
	c.indexes.RemoveRow(oldRaw)
	c.setRowNumber(newRaw, uint64(pos))
	c.rows[pos] = newRaw
	newRow.Steal()
	clear(oldRaw.Buf)
	c.freeRaws.Push(oldRaw)
	c.bumpChange()
	c.bumpRemove()
	return TryResult{RowRef: row.NewRowRef(c.columns, newRaw, &c.removeVersion)}, nil
}

// UpdateColumn implements spec's in-place single-column update via
// index.IndexSet's optimized two-phase path.
func (c *core) UpdateColumn(ref row.RowRef, code uint64, newBytes []byte) error {
	raw := ref.Raw()
	off, ok := c.columns.Offset(code)
	if !ok {
		return momoerr.InvalidArgument("update_row: unknown column code")
	}
	size := uintptr(len(newBytes))
	err := c.indexes.UpdateRow(raw, off, newBytes, func() {
		copy(raw.Buf[off:off+size], newBytes)
	})
	if err != nil {
		return err
	}
	c.bumpChange()
	return nil
}

// AssignRows permutes the row vector (spec §6 "row-permutation").
func (c *core) AssignRows(perm []int) error {
	if len(perm) != len(c.rows) {
		return momoerr.InvalidArgument("assign_rows: permutation length mismatch")
	}
	seen := make([]bool, len(perm))
	newRows := make([]*row.Raw, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(c.rows) || seen[p] {
			return momoerr.InvalidArgument("assign_rows: invalid permutation")
		}
		seen[p] = true
		newRows[i] = c.rows[p]
	}
	c.rows = newRows
	c.renumberFrom(0)
	c.bumpChange()
	return nil
}

// removeBatch implements spec's batch-remove-via-sentinel-then-compact:
// mark, filter indexes, compact, with reset_row_numbers recovery on
// failure (spec §4.9 "Batch remove and filter").
func (c *core) removeBatch(keep func(*row.Raw) bool) (removed int, err error) {
	original := make([]uint64, len(c.rows))
	for i, raw := range c.rows {
		original[i], _ = c.rowNumberOf(raw)
	}
	defer func() {
		if err != nil {
			for i, raw := range c.rows {
				c.setRowNumber(raw, original[i])
			}
		}
	}()

	var toRemove []*row.Raw
	for _, raw := range c.rows {
		if !keep(raw) {
			c.setRowNumber(raw, InvalidRowNumber)
			toRemove = append(toRemove, raw)
		}
	}
	for _, raw := range toRemove {
		c.indexes.RemoveRow(raw)
	}

	compacted := c.rows[:0]
	for _, raw := range c.rows {
		if n, ok := c.rowNumberOf(raw); ok && n == InvalidRowNumber {
			clear(raw.Buf)
			c.freeRaws.Push(raw)
			continue
		}
		compacted = append(compacted, raw)
	}
	c.rows = compacted
	c.renumberFrom(0)
	removed = len(toRemove)
	if removed > 0 {
		c.bumpChange()
		c.bumpRemove()
	}
	return removed, nil
}

// FilterRows keeps only rows matching keep, removing the rest.
func (c *core) FilterRows(keep func(*row.Raw) bool) (int, error) { return c.removeBatch(keep) }

// RemoveRowsWhere removes rows matching remove, keeping the rest.
func (c *core) RemoveRowsWhere(remove func(*row.Raw) bool) (int, error) {
	return c.removeBatch(func(raw *row.Raw) bool { return !remove(raw) })
}

func subsetOf(idxOffsets []uintptr, predicateOffsets map[uintptr]bool) bool {
	for _, o := range idxOffsets {
		if !predicateOffsets[o] {
			return false
		}
	}
	return true
}

func (c *core) findCoveringUnique(predicateOffsets map[uintptr]bool) *index.UniqueHashIndex {
	for _, uh := range c.indexes.UniqueIndexes() {
		cols := uh.Columns()
		offs := make([]uintptr, len(cols))
		for i, kc := range cols {
			offs[i] = kc.Offset
		}
		if subsetOf(offs, predicateOffsets) {
			return uh
		}
	}
	return nil
}

// findCoveringMultiLargest picks the covering multi-hash index with the
// largest key-column count (spec §4.9 step 3's tiebreak).
func (c *core) findCoveringMultiLargest(predicateOffsets map[uintptr]bool) *index.MultiHashIndex {
	var best *index.MultiHashIndex
	bestCount := -1
	for _, mh := range c.indexes.MultiIndexes() {
		cols := mh.Columns()
		offs := make([]uintptr, len(cols))
		for i, kc := range cols {
			offs[i] = kc.Offset
		}
		if subsetOf(offs, predicateOffsets) && len(cols) > bestCount {
			best = mh
			bestCount = len(cols)
		}
	}
	return best
}

func (c *core) matchesAll(raw *row.Raw, predicates []Predicate) bool {
	for _, p := range predicates {
		off, ok := c.columns.Offset(p.Code)
		if !ok {
			return false
		}
		size := uintptr(len(p.Value))
		if !bytesEqual(raw.Buf[off:off+size], p.Value) {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Select implements spec §4.9's "Select" algorithm.
func (c *core) Select(predicates []Predicate, filter func(*row.Raw) bool) ([]*row.Raw, error) {
	if len(predicates) > selectEqualerMaxCount {
		head := predicates[:selectEqualerMaxCount]
		tail := append([]Predicate(nil), predicates[selectEqualerMaxCount:]...)
		folded := func(raw *row.Raw) bool {
			for _, p := range tail {
				off, ok := c.columns.Offset(p.Code)
				if !ok || !bytesEqual(raw.Buf[off:off+uintptr(len(p.Value))], p.Value) {
					return false
				}
			}
			return filter == nil || filter(raw)
		}
		return c.Select(head, folded)
	}

	if len(predicates) == 0 {
		return c.allFiltered(filter), nil
	}

	offsets := make(map[uintptr]bool, len(predicates))
	values := make(map[uintptr][]byte, len(predicates))
	for _, p := range predicates {
		off, ok := c.columns.Offset(p.Code)
		if !ok {
			return nil, momoerr.InvalidArgument("select: unknown column code")
		}
		offsets[off] = true
		values[off] = p.Value
	}

	if uh := c.findCoveringUnique(offsets); uh != nil {
		raw, ok := uh.Find(values)
		if !ok || (filter != nil && !filter(raw)) {
			return nil, nil
		}
		return []*row.Raw{raw}, nil
	}
	if mh := c.findCoveringMultiLargest(offsets); mh != nil {
		matches := mh.Find(values)
		out := make([]*row.Raw, 0, len(matches))
		for _, raw := range matches {
			if filter == nil || filter(raw) {
				out = append(out, raw)
			}
		}
		return out, nil
	}

	out := make([]*row.Raw, 0)
	for _, raw := range c.rows {
		if c.matchesAll(raw, predicates) && (filter == nil || filter(raw)) {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (c *core) allFiltered(filter func(*row.Raw) bool) []*row.Raw {
	if filter == nil {
		out := make([]*row.Raw, len(c.rows))
		copy(out, c.rows)
		return out
	}
	out := make([]*row.Raw, 0, len(c.rows))
	for _, raw := range c.rows {
		if filter(raw) {
			out = append(out, raw)
		}
	}
	return out
}

// SelectCount is select without materializing a Selection.
func (c *core) SelectCount(predicates []Predicate, filter func(*row.Raw) bool) (int, error) {
	rows, err := c.Select(predicates, filter)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// AddUniqueHashIndex builds and backfills a unique-hash index, rejecting
// mutable columns (spec: "indexes refuse to be built over mutable
// offsets") and destroying the partial index on a backfill violation
// (spec §5's exception-safety contract for index-adding operations).
func (c *core) AddUniqueHashIndex(name string, codes []uint64) (*index.UniqueHashIndex, error) {
	cols, err := c.keyColumnsFor(codes)
	if err != nil {
		return nil, err
	}
	idx := index.NewUniqueHashIndex(name, cols, c.metrics)
	for _, raw := range c.rows {
		if err := idx.Add(raw); err != nil {
			return nil, err
		}
	}
	c.indexes.AddUniqueHashIndex(idx)
	return idx, nil
}

// AddMultiHashIndex builds and backfills a multi-hash index.
func (c *core) AddMultiHashIndex(name string, codes []uint64) (*index.MultiHashIndex, error) {
	cols, err := c.keyColumnsFor(codes)
	if err != nil {
		return nil, err
	}
	idx := index.NewMultiHashIndex(name, cols, c.metrics)
	for _, raw := range c.rows {
		if err := idx.Add(raw); err != nil {
			return nil, err
		}
	}
	c.indexes.AddMultiHashIndex(idx)
	return idx, nil
}

func (c *core) keyColumnsFor(codes []uint64) ([]index.KeyColumn, error) {
	cols := make([]index.KeyColumn, len(codes))
	for i, code := range codes {
		off, ok := c.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("add_*_index: unknown column code")
		}
		if c.columns.IsMutable(off) {
			return nil, momoerr.InvalidArgument("add_*_index: column is mutable")
		}
		cols[i] = index.KeyColumn{Offset: off, Size: c.columnSize(code)}
	}
	return cols, nil
}

// columnSize looks up a declared column's byte size by scanning the
// column list's declarations; used only at index-construction time, not
// on any hot path.
func (c *core) columnSize(code uint64) uintptr {
	for i := 0; i < c.columns.NumColumns(); i++ {
		if c.columns.Code(i) == code {
			return c.columns.Decl(i).Size
		}
	}
	return 0
}

func (c *core) RemoveUniqueHashIndexes() { c.indexes.RemoveUniqueHashIndexes() }
func (c *core) RemoveMultiHashIndexes()  { c.indexes.RemoveMultiHashIndexes() }

// sortDescending is a small helper for callers that collect positions to
// remove and need them processed back-to-front so earlier removals
// don't shift later indices out from under them.
func sortDescending(positions []int) {
	sort.Sort(sort.Reverse(sort.IntSlice(positions)))
}
