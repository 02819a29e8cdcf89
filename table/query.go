package table

import (
	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/index"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/row"
)

// IndexHandle is the opaque "UniqueHashIndex" / "MultiHashIndex"
// return value spec.md §6 names for add_unique_hash_index /
// add_multi_hash_index: exactly one of unique/multi is set.
type IndexHandle struct {
	unique *index.UniqueHashIndex
	multi  *index.MultiHashIndex
}

// Name returns the index's caller-assigned label.
func (h *IndexHandle) Name() string {
	if h.unique != nil {
		return h.unique.Name()
	}
	return h.multi.Name()
}

// Selection is a materialized list of row references produced by a
// select() call (spec.md §4.9 "Select").
type Selection struct {
	t    *DynTable
	rows []*row.Raw
}

// Len reports the selection's row count.
func (s *Selection) Len() int { return len(s.rows) }

// At returns a version-checked row reference for the i'th selected row.
func (s *Selection) At(i int) row.RowRef {
	return row.NewRowRef(s.t.core.columns, s.rows[i], &s.t.core.removeVersion)
}

// Select implements spec §6's table.select(predicates…, row_filter?).
func (t *DynTable) Select(predicates []Predicate, filter func(row.RowRef) bool) (*Selection, error) {
	var rawFilter func(*row.Raw) bool
	if filter != nil {
		rawFilter = func(raw *row.Raw) bool {
			return filter(row.NewRowRef(t.core.columns, raw, &t.core.removeVersion))
		}
	}
	rows, err := t.core.Select(predicates, rawFilter)
	if err != nil {
		return nil, err
	}
	return &Selection{t: t, rows: rows}, nil
}

// SelectCount implements spec §6's table.select_count.
func (t *DynTable) SelectCount(predicates []Predicate, filter func(row.RowRef) bool) (int, error) {
	sel, err := t.Select(predicates, filter)
	if err != nil {
		return 0, err
	}
	return sel.Len(), nil
}

func valuesByOffset(t *DynTable, codes []uint64, values [][]byte) (map[uintptr][]byte, error) {
	out := make(map[uintptr][]byte, len(codes))
	for i, code := range codes {
		off, ok := t.core.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("find_by_index: unknown column code")
		}
		out[off] = values[i]
	}
	return out, nil
}

// FindByUniqueHash implements spec §6's
// table.find_by_unique_hash(index, key): codes/values must list the
// index's key columns in any order, one value per code.
func (t *DynTable) FindByUniqueHash(h *IndexHandle, codes []uint64, values [][]byte) (row.RowRef, bool, error) {
	if h.unique == nil {
		return row.RowRef{}, false, momoerr.InvalidArgument("find_by_unique_hash: handle is a multi-hash index")
	}
	byOffset, err := valuesByOffset(t, codes, values)
	if err != nil {
		return row.RowRef{}, false, err
	}
	raw, ok := h.unique.Find(byOffset)
	if !ok {
		return row.RowRef{}, false, nil
	}
	return row.NewRowRef(t.core.columns, raw, &t.core.removeVersion), true, nil
}

// FindByMultiHash implements spec §6's table.find_by_multi_hash(index, key).
func (t *DynTable) FindByMultiHash(h *IndexHandle, codes []uint64, values [][]byte) (*Selection, error) {
	if h.multi == nil {
		return nil, momoerr.InvalidArgument("find_by_multi_hash: handle is a unique-hash index")
	}
	byOffset, err := valuesByOffset(t, codes, values)
	if err != nil {
		return nil, err
	}
	return &Selection{t: t, rows: h.multi.Find(byOffset)}, nil
}

// Project implements spec §4.9's "Project": build a sibling table over
// a subset of columns and copy each selected row's matching bytes
// across. filter selects which rows to copy; pass nil to project every
// row.
func (t *DynTable) Project(cols []columnlist.ColumnDeclarer, filter func(row.RowRef) bool, cfg config.Config, metrics *telemetry.Metrics) (*DynTable, error) {
	dst, err := NewDynTable(cols, cfg, metrics)
	if err != nil {
		return nil, err
	}
	codes := codesOf(cols)
	srcOffsets := make([]uintptr, len(codes))
	dstOffsets := make([]uintptr, len(codes))
	sizes := make([]uintptr, len(codes))
	for i, code := range codes {
		srcOff, ok := t.core.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("project: unknown column code")
		}
		dstOff, ok := dst.core.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("project: column missing from projection")
		}
		srcOffsets[i] = srcOff
		dstOffsets[i] = dstOff
		sizes[i] = cols[i].Decl().Size
	}

	for _, raw := range t.core.rows {
		ref := row.NewRowRef(t.core.columns, raw, &t.core.removeVersion)
		if filter != nil && !filter(ref) {
			continue
		}
		newRow := dst.core.NewRow()
		dstRaw := newRow.Raw()
		for i := range codes {
			copy(dstRaw.Buf[dstOffsets[i]:dstOffsets[i]+sizes[i]], raw.Buf[srcOffsets[i]:srcOffsets[i]+sizes[i]])
		}
		if _, err := dst.core.AddRow(newRow); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// ProjectDistinct implements spec §4.9's "Project"'s distinct variant:
// a unique-hash index is built over the projected columns while rows
// are copied, so a source row whose projected key tuple was already
// seen is skipped instead of raising a violation; the index is dropped
// before returning (spec: "The distinct variant adds a unique-hash
// index over the projected columns to de-duplicate and drops it before
// returning").
func (t *DynTable) ProjectDistinct(cols []columnlist.ColumnDeclarer, filter func(row.RowRef) bool, cfg config.Config, metrics *telemetry.Metrics) (*DynTable, error) {
	dst, err := NewDynTable(cols, cfg, metrics)
	if err != nil {
		return nil, err
	}
	if _, err := dst.AddUniqueHashIndex("__distinct", cols...); err != nil {
		return nil, err
	}

	codes := codesOf(cols)
	srcOffsets := make([]uintptr, len(codes))
	dstOffsets := make([]uintptr, len(codes))
	sizes := make([]uintptr, len(codes))
	for i, code := range codes {
		srcOff, ok := t.core.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("project: unknown column code")
		}
		dstOff, ok := dst.core.columns.Offset(code)
		if !ok {
			return nil, momoerr.InvalidArgument("project: column missing from projection")
		}
		srcOffsets[i] = srcOff
		dstOffsets[i] = dstOff
		sizes[i] = cols[i].Decl().Size
	}

	for _, raw := range t.core.rows {
		ref := row.NewRowRef(t.core.columns, raw, &t.core.removeVersion)
		if filter != nil && !filter(ref) {
			continue
		}
		newRow := dst.core.NewRow()
		dstRaw := newRow.Raw()
		for i := range codes {
			copy(dstRaw.Buf[dstOffsets[i]:dstOffsets[i]+sizes[i]], raw.Buf[srcOffsets[i]:srcOffsets[i]+sizes[i]])
		}
		if _, err := dst.core.TryAddRow(newRow); err != nil {
			return nil, err
		}
		// A nil error with a non-nil ViolatedIndex means the unique
		// index rejected a duplicate key tuple; TryAddRow leaves the row
		// unstolen, to be recycled by newRow's finalizer in that case,
		// so there is nothing further to undo here.
	}
	dst.core.RemoveUniqueHashIndexes()
	return dst, nil
}
