// Package row implements spec.md §4.7's row and row-reference types:
// a move-only raw row buffer plus version-checked borrowed views over
// it.
//
// Grounded on the teacher's nocopy-marked, single-owner types (the
// `store`/`cache` packages guard their maps with an embedded
// `nocopy.NoCopy` the same way), generalized here to a raw byte buffer
// whose destruction recycles into an `internal/freelist.Stack` instead
// of being garbage collected outright -- spec.md's own substitution
// note for the C++ original's free-raws intrusive stack.
package row

import (
	"runtime"
	"sync/atomic"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/freelist"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/nocopy"
)

// Raw is a row's backing buffer, sized and aligned by a ColumnList.
type Raw struct {
	Buf []byte
}

// Row is a move-only owner of a Raw buffer. Constructed by a table's
// new_row operation; Drop returns the (destroyed) buffer to recycle
// free-raws []freelist.
type Row struct {
	_          nocopy.NoCopy
	columns    *columnlist.ColumnList
	raw        *Raw
	freeRaws   *freelist.Stack[*Raw]
	dropped    bool
}

// New constructs a Row owning a freshly zeroed buffer sized by columns,
// or one recycled from freeRaws if available.
func New(columns *columnlist.ColumnList, freeRaws *freelist.Stack[*Raw]) *Row {
	var raw *Raw
	if recycled := freeRaws.DrainAll(); len(recycled) > 0 {
		raw = recycled[0]
		for _, extra := range recycled[1:] {
			freeRaws.Push(extra)
		}
		if uintptr(len(raw.Buf)) != columns.TotalSize() {
			raw.Buf = make([]byte, columns.TotalSize())
		} else {
			clear(raw.Buf)
		}
	} else {
		raw = &Raw{Buf: make([]byte, columns.TotalSize())}
	}
	r := &Row{columns: columns, raw: raw, freeRaws: freeRaws}
	runtime.SetFinalizer(r, func(r *Row) { r.Drop() })
	return r
}

// Raw exposes the row's backing buffer for direct column access by the
// table package, which knows how to locate columns within it.
func (r *Row) Raw() *Raw { return r.raw }

// Steal detaches the owned Raw from Row without recycling it. Used by
// the table's add_row/insert_row path once the add has committed (spec
// §4.9 step 3: "steal the raw from row").
func (r *Row) Steal() *Raw {
	r.dropped = true
	runtime.SetFinalizer(r, nil)
	return r.raw
}

// Adopt wraps an existing Raw in a new owning Row, for extract_row's
// "hand the removed buffer back to the caller instead of freeing it".
func Adopt(columns *columnlist.ColumnList, raw *Raw, freeRaws *freelist.Stack[*Raw]) *Row {
	r := &Row{columns: columns, raw: raw, freeRaws: freeRaws}
	runtime.SetFinalizer(r, func(r *Row) { r.Drop() })
	return r
}

// Columns returns the column list this row was sized against.
func (r *Row) Columns() *columnlist.ColumnList { return r.columns }

// Drop destroys the buffer's contents and recycles it onto the
// free-raws list (spec §4.7: "prepends the now-raw buffer onto the
// table's atomic free-raws list"). Safe to call more than once; safe
// to call from any goroutine, matching the free-raws list's
// cross-goroutine recycle contract.
func (r *Row) Drop() {
	if r.dropped {
		return
	}
	r.dropped = true
	runtime.SetFinalizer(r, nil)
	clear(r.raw.Buf)
	r.freeRaws.Push(r.raw)
}

// RowRef is a version-checked borrowed mutable view over a row's
// buffer, spec.md §4.7's RowReference. It captures the table's
// remove-version at construction; every access re-checks it against
// the live value and returns ErrVersionCheckFailed on mismatch.
type RowRef struct {
	columns       *columnlist.ColumnList
	raw           *Raw
	removeVersion *uint64
	captured      uint64
}

// NewRowRef builds a RowRef snapshotting *removeVersion.
func NewRowRef(columns *columnlist.ColumnList, raw *Raw, removeVersion *uint64) RowRef {
	return RowRef{
		columns:       columns,
		raw:           raw,
		removeVersion: removeVersion,
		captured:      atomic.LoadUint64(removeVersion),
	}
}

// Raw exposes the referenced buffer directly, for table package
// internals that need raw identity (position lookup, index mutation)
// rather than a version-checked field view.
func (r RowRef) Raw() *Raw { return r.raw }

func (r RowRef) checkVersion() error {
	if atomic.LoadUint64(r.removeVersion) != r.captured {
		return momoerr.ErrVersionCheckFailed
	}
	return nil
}

// Field returns the byte slice for the named column's offset within
// the row buffer. Returns ErrVersionCheckFailed if the table has
// removed rows since this ref was obtained, unless the column is
// marked mutable (spec: "accesses that mutate a mutable column bypass
// this check").
func (r RowRef) Field(code uint64, size uintptr) ([]byte, error) {
	off, ok := r.columns.Offset(code)
	if !ok {
		return nil, momoerr.InvalidArgument("unknown column code")
	}
	if !r.columns.IsMutable(off) {
		if err := r.checkVersion(); err != nil {
			return nil, err
		}
	}
	return r.raw.Buf[off : off+size], nil
}

// ConstRowRef is the read-only counterpart of RowRef: identical version
// checking, but Field returns a slice the caller must not write
// through.
type ConstRowRef struct {
	RowRef
}

// NewConstRowRef builds a ConstRowRef snapshotting *removeVersion.
func NewConstRowRef(columns *columnlist.ColumnList, raw *Raw, removeVersion *uint64) ConstRowRef {
	return ConstRowRef{RowRef: NewRowRef(columns, raw, removeVersion)}
}
