package table

import (
	"reflect"
	"unsafe"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/internal/xhash"
	"github.com/morzhovets/momo/row"
)

// Table[Row] is spec.md §4.6's "static variant": a row type fixed at
// compile time via a Go generic parameter rather than a hand-built
// column declaration list. Its ColumnDecl list is derived once, at
// construction, from Row's reflected struct fields (see the package
// doc comment on columnlist.ColumnList) and fed into the same dynamic
// ColumnList DynTable uses, so both variants share every byte of the
// row/index/select/perfect-hash machinery below this type.
type Table[Row any] struct {
	*core
	fields []reflect.StructField
}

// NewTable builds a Table[Row] whose columns are Row's exported struct
// fields in declaration order.
func NewTable[Row any](cfg config.Config, metrics *telemetry.Metrics) (*Table[Row], error) {
	var zero Row
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, momoerr.InvalidArgument("table.NewTable: Row must be a struct type")
	}

	fields := make([]reflect.StructField, 0, rt.NumField())
	decls := make([]columnlist.ColumnDecl, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		fields = append(fields, f)
		decls = append(decls, columnlist.ColumnDecl{Name: f.Name, Size: fieldSize(f), Align: fieldAlign(f)})
	}

	cl, err := columnlist.Build(decls, true, cfg.MaxCodeParam, cfg.LogVertexCount)
	if err != nil {
		return nil, err
	}
	return &Table[Row]{core: newCore(cl, metrics), fields: fields}, nil
}

// Columns exposes the table's column list.
func (t *Table[Row]) Columns() *columnlist.ColumnList { return t.core.columns }

// fieldSize is a struct field's row-buffer slot size: a string field
// gets columnlist.DefaultStringWidth bytes of real content (like
// columnlist.Column[Tag,string]'s Decl, not the 16-byte Go string
// header reflect.Type.Size() would report), every other field its
// natural reflected size.
func fieldSize(f reflect.StructField) uintptr {
	if f.Type.Kind() == reflect.String {
		return columnlist.DefaultStringWidth
	}
	return f.Type.Size()
}

// fieldAlign mirrors fieldSize's string special case: a fixed content
// slot needs no alignment wider than a byte.
func fieldAlign(f reflect.StructField) uintptr {
	if f.Type.Kind() == reflect.String {
		return 1
	}
	return uintptr(f.Type.Align())
}

// fieldOffset resolves one reflected struct field's byte offset inside
// the row buffer via the column list's perfect hash.
func (t *Table[Row]) fieldOffset(name string) uintptr {
	off, ok := t.core.columns.Offset(xhash.ColumnCode(name))
	if !ok {
		momoerr.AssertionFailure("table: field %q missing from column list", name)
	}
	return off
}

// NewRow builds a Row owning a freshly populated buffer, copying value
// field-by-field (spec §6: "table.new_row(col₁ = v₁, …)" specialized
// to whole-struct initialization for the static variant).
func (t *Table[Row]) NewRow(value Row) *row.Row {
	r := t.core.NewRow()
	raw := r.Raw()
	src := reflect.New(reflect.TypeOf(value)).Elem()
	src.Set(reflect.ValueOf(value))
	for _, f := range t.fields {
		off := t.fieldOffset(f.Name)
		writeReflectField(raw.Buf[off:off+fieldSize(f)], src.FieldByIndex(f.Index))
	}
	return r
}

// Get materializes a Row value from a borrowed row reference, subject
// to ref's version check on every non-mutable field (spec §4.7).
func (t *Table[Row]) Get(ref row.RowRef) (Row, error) {
	var out Row
	dst := reflect.New(reflect.TypeOf(out)).Elem()
	for _, f := range t.fields {
		b, err := ref.Field(xhash.ColumnCode(f.Name), fieldSize(f))
		if err != nil {
			return out, err
		}
		readReflectField(dst.FieldByIndex(f.Index), b)
	}
	return dst.Interface().(Row), nil
}

// UpdateField implements the static variant's update_row(row_ref, col,
// value) overload for one named field.
func (t *Table[Row]) UpdateField(ref row.RowRef, name string, value any) error {
	for _, f := range t.fields {
		if f.Name != name {
			continue
		}
		v := reflect.ValueOf(value)
		if !v.IsValid() || v.Type() != f.Type {
			return momoerr.InvalidArgument("update_row: value type does not match field " + name)
		}
		buf := make([]byte, fieldSize(f))
		writeReflectField(buf, v)
		return t.core.UpdateColumn(ref, xhash.ColumnCode(name), buf)
	}
	return momoerr.InvalidArgument("update_row: unknown field " + name)
}

// writeReflectField copies v's representation into dst. Strings are
// copied by content (truncated/zero-padded to len(dst)), exactly like
// columnlist.EncodeValue's string case, so a row's plain []byte buffer
// never ends up holding a hidden pointer the garbage collector can't
// see; every other field is copied via its raw in-memory bytes.
func writeReflectField(dst []byte, v reflect.Value) {
	if v.Kind() == reflect.String {
		n := copy(dst, v.String())
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		return
	}
	if !v.CanAddr() {
		// UpdateField's value arrives as an `any`, which reflect.ValueOf
		// never reports addressable; copy it into an addressable local
		// so the raw-byte view below has somewhere to point.
		addressable := reflect.New(v.Type()).Elem()
		addressable.Set(v)
		v = addressable
	}
	size := v.Type().Size()
	src := unsafe.Slice((*byte)(v.Addr().UnsafePointer()), size)
	copy(dst, src)
}

// readReflectField is writeReflectField's inverse.
func readReflectField(dst reflect.Value, src []byte) {
	if dst.Kind() == reflect.String {
		end := len(src)
		for end > 0 && src[end-1] == 0 {
			end--
		}
		dst.SetString(string(src[:end]))
		return
	}
	size := dst.Type().Size()
	out := unsafe.Slice((*byte)(dst.Addr().UnsafePointer()), size)
	copy(out, src)
}
