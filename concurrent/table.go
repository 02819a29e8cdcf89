package concurrent

import (
	"sync"

	"github.com/morzhovets/momo/internal/nocopy"
	"github.com/morzhovets/momo/row"
	"github.com/morzhovets/momo/table"
)

// Table is an RWMutex-guarded facade over table.Table[Row], letting
// several goroutines share one table the way the teacher's
// cache.Instance lets several goroutines share one map: reads take
// RLock, mutations take Lock, nothing below this layer is touched
// concurrently. Mutating operations (Add, UpdateField, RemoveAt) still
// give momo's usual strong exception-safety guarantee per call; this
// layer only adds mutual exclusion between calls.
type Table[Row any] struct {
	_   nocopy.NoCopy
	mu  sync.RWMutex
	tbl *table.Table[Row]
}

// NewTable wraps a freshly built table.Table[Row].
func NewTable[Row any](tbl *table.Table[Row]) *Table[Row] {
	return &Table[Row]{tbl: tbl}
}

// Add builds and inserts a new row, returning its reference.
func (t *Table[Row]) Add(value Row) (row.RowRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tbl.AddRow(t.tbl.NewRow(value))
}

// Get reads back a row by reference.
func (t *Table[Row]) Get(ref row.RowRef) (Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Get(ref)
}

// UpdateField writes a single named field in place.
func (t *Table[Row]) UpdateField(ref row.RowRef, name string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tbl.UpdateField(ref, name, value)
}

// RemoveAt removes the row at pos.
func (t *Table[Row]) RemoveAt(pos int, keepOrder bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tbl.RemoveRowAt(pos, keepOrder)
}

// Len reports the current row count.
func (t *Table[Row]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Len()
}

// Clone returns an independent, unguarded deep copy of the wrapped
// table (spec.md §E.2); wrap the result in a new Table if the copy
// also needs concurrent access.
func (t *Table[Row]) Clone() (*table.Table[Row], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Clone()
}

// DynTable is Table's counterpart for table.DynTable.
type DynTable struct {
	_   nocopy.NoCopy
	mu  sync.RWMutex
	tbl *table.DynTable
}

// NewDynTable wraps a freshly built table.DynTable.
func NewDynTable(tbl *table.DynTable) *DynTable {
	return &DynTable{tbl: tbl}
}

// AddRow inserts r, which must have been built via the wrapped table's
// NewRow, and returns its reference.
func (t *DynTable) AddRow(r *row.Row) (row.RowRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tbl.AddRow(r)
}

// NewRow builds a row against the wrapped table's column layout.
// Construction touches only the table's immutable column list and its
// recycled-buffer pool, both already safe for concurrent use (the pool
// via internal/freelist's atomic stack), so this does not need the
// table lock.
func (t *DynTable) NewRow(assigners ...func(*row.Raw)) *row.Row {
	return t.tbl.NewRow(assigners...)
}

// Select runs a predicate/filter query under a read lock.
func (t *DynTable) Select(predicates []table.Predicate, filter func(row.RowRef) bool) (*table.Selection, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Select(predicates, filter)
}

// Len reports the current row count.
func (t *DynTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Len()
}

// Clone returns an independent, unguarded deep copy of the wrapped
// table.
func (t *DynTable) Clone() (*table.DynTable, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tbl.Clone()
}
