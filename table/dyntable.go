package table

import (
	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/row"
)

// DynTable is spec.md §6's table over a runtime-declared set of
// columns: `ColumnList::new(columns…)` plus every table.* operation
// §6 names. Column offsets resolve through the dynamic ColumnList's
// perfect hash (spec §4.6); Table[Row] in table.go shares this same
// core engine with an offset list derived from Row's reflected struct
// shape instead.
type DynTable struct {
	*core
}

// NewDynTable builds a DynTable over cols in declaration order,
// enabling row-numbering (spec §4.6: "Row number. When row-numbering
// is enabled..."). Returns momoerr.ErrTooManyCollisions if the
// perfect-hash construction can't find a working salt within
// cfg.MaxCodeParam tries.
func NewDynTable(cols []columnlist.ColumnDeclarer, cfg config.Config, metrics *telemetry.Metrics) (*DynTable, error) {
	decls := make([]columnlist.ColumnDecl, len(cols))
	for i, c := range cols {
		decls[i] = c.Decl()
	}
	cl, err := columnlist.Build(decls, true, cfg.MaxCodeParam, cfg.LogVertexCount)
	if err != nil {
		return nil, err
	}
	return &DynTable{core: newCore(cl, metrics)}, nil
}

// Columns exposes the table's column list, e.g. for SetMutable calls
// made before any index is built (spec §4.6: "indexes refuse to be
// built over mutable offsets").
func (t *DynTable) Columns() *columnlist.ColumnList { return t.core.columns }

// Assign returns a row-construction assigner writing value into col's
// slot, for use with NewRow (spec §6: "table.new_row(col₁ = v₁, …)").
func Assign[Tag, T any](t *DynTable, col columnlist.Column[Tag, T], value T) func(*row.Raw) {
	return func(raw *row.Raw) {
		off, ok := t.core.columns.Offset(col.Code())
		if !ok {
			momoerr.AssertionFailure("table: Assign: column %q not in this table", col.Name())
		}
		decl := col.Decl()
		columnlist.EncodeValue(raw.Buf[off:off+decl.Size], value)
	}
}

// Get reads col's value out of a borrowed row reference (spec §6:
// "row.get(col)"), subject to ref's version check unless col is
// mutable.
func Get[Tag, T any](ref row.RowRef, col columnlist.Column[Tag, T]) (T, error) {
	decl := col.Decl()
	b, err := ref.Field(col.Code(), decl.Size)
	if err != nil {
		var zero T
		return zero, err
	}
	return columnlist.DecodeValue[T](b), nil
}

// Eq builds a select() equality predicate over col (spec §6:
// "table.select(predicates…, row_filter?)").
func Eq[Tag, T any](col columnlist.Column[Tag, T], value T) Predicate {
	decl := col.Decl()
	buf := make([]byte, decl.Size)
	columnlist.EncodeValue(buf, value)
	return Predicate{Code: col.Code(), Value: buf}
}

// UpdateColumnValue implements spec's single-column in-place
// update_row(row_ref, col, value) overload, routed through the
// index-aware core.UpdateColumn.
func UpdateColumnValue[Tag, T any](t *DynTable, ref row.RowRef, col columnlist.Column[Tag, T], value T) error {
	decl := col.Decl()
	buf := make([]byte, decl.Size)
	columnlist.EncodeValue(buf, value)
	return t.core.UpdateColumn(ref, col.Code(), buf)
}

// SetMutable marks col's offset as bypassing index synchronization on
// write (spec §4.6: "set_mutable(col) marks; indexes refuse to be
// built over mutable offsets").
func (t *DynTable) SetMutable(code uint64) error {
	off, ok := t.core.columns.Offset(code)
	if !ok {
		return momoerr.InvalidArgument("set_mutable: unknown column code")
	}
	t.core.columns.SetMutable(off)
	return nil
}

// AddUniqueHashIndex builds and backfills a unique-hash index over
// cols (spec §6: "table.add_unique_hash_index(cols…)").
func (t *DynTable) AddUniqueHashIndex(name string, cols ...columnlist.ColumnDeclarer) (*IndexHandle, error) {
	codes := codesOf(cols)
	idx, err := t.core.AddUniqueHashIndex(name, codes)
	if err != nil {
		return nil, err
	}
	return &IndexHandle{unique: idx}, nil
}

// AddMultiHashIndex builds and backfills a multi-hash index over cols
// (spec §6: "table.add_multi_hash_index(cols…)").
func (t *DynTable) AddMultiHashIndex(name string, cols ...columnlist.ColumnDeclarer) (*IndexHandle, error) {
	codes := codesOf(cols)
	idx, err := t.core.AddMultiHashIndex(name, codes)
	if err != nil {
		return nil, err
	}
	return &IndexHandle{multi: idx}, nil
}

func codesOf(cols []columnlist.ColumnDeclarer) []uint64 {
	codes := make([]uint64, len(cols))
	for i, c := range cols {
		codes[i] = c.Code()
	}
	return codes
}
