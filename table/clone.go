package table

import (
	"github.com/morzhovets/momo/index"
)

// codeByOffset maps every declared column's byte offset back to its
// code, for translating an existing index's KeyColumn list (offsets)
// into the code list AddUniqueHashIndex/AddMultiHashIndex expect.
func (c *core) codeByOffset() map[uintptr]uint64 {
	out := make(map[uintptr]uint64, c.columns.NumColumns())
	for i := 0; i < c.columns.NumColumns(); i++ {
		code := c.columns.Code(i)
		off, _ := c.columns.Offset(code)
		out[off] = code
	}
	return out
}

func codesFromKeyColumns(byOffset map[uintptr]uint64, cols []index.KeyColumn) []uint64 {
	codes := make([]uint64, len(cols))
	for i, kc := range cols {
		codes[i] = byOffset[kc.Offset]
	}
	return codes
}

// clone builds an independent core sharing this core's ColumnList (an
// identity projection needs no new layout) with every row deep-copied
// and every index rebuilt and backfilled from the copies (spec.md
// §E.2: "Clone() is a few lines on top of project, specialized to the
// identity column projection").
func (c *core) clone() (*core, error) {
	dst := newCore(c.columns, c.metrics)
	dst.Reserve(len(c.rows))

	byOffset := c.codeByOffset()
	for _, uh := range c.indexes.UniqueIndexes() {
		codes := codesFromKeyColumns(byOffset, uh.Columns())
		if _, err := dst.AddUniqueHashIndex(uh.Name(), codes); err != nil {
			return nil, err
		}
	}
	for _, mh := range c.indexes.MultiIndexes() {
		codes := codesFromKeyColumns(byOffset, mh.Columns())
		if _, err := dst.AddMultiHashIndex(mh.Name(), codes); err != nil {
			return nil, err
		}
	}

	for _, raw := range c.rows {
		newRow := dst.NewRow()
		copy(newRow.Raw().Buf, raw.Buf)
		if _, err := dst.AddRow(newRow); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// Clone returns an independent deep copy of t: its own row storage and
// its own rebuilt secondary indexes, sharing only the (immutable once
// built) column layout.
func (t *DynTable) Clone() (*DynTable, error) {
	dst, err := t.core.clone()
	if err != nil {
		return nil, err
	}
	return &DynTable{core: dst}, nil
}

// Clone returns an independent deep copy of t, see DynTable.Clone.
func (t *Table[Row]) Clone() (*Table[Row], error) {
	dst, err := t.core.clone()
	if err != nil {
		return nil, err
	}
	return &Table[Row]{core: dst, fields: t.fields}, nil
}
