// Package columnlist implements spec.md §4.6's column list: an opaque
// row buffer whose column offsets resolve in O(1) via a minimal
// perfect hash over column codes (a two-coloring / bipartite
// assignment over an undirected multigraph, the classic Czech-Havas-
// Majewski construction spec §9 names). The same ColumnList backs both
// of the table package's variants -- spec's static/dynamic split
// collapses to one implementation here, since Go generics already give
// Table[Row] its own per-instantiation specialization without a second
// runtime offset-resolution data structure; Table[Row] just derives its
// ColumnDecl list from Row's reflected struct shape instead of taking
// one by hand. See DESIGN.md.
//
// No file in the retrieval pack builds a perfect-hash column list --
// the teacher and the rest of the pack are hash-table/cache libraries,
// not data-table engines -- so this package's core algorithm has no
// direct corpus file to port from; it is implemented from the
// algorithm description in spec.md §4.6/§9 directly. See DESIGN.md.
package columnlist

import (
	"reflect"
	"unsafe"

	"github.com/morzhovets/momo/internal/xhash"
)

// DefaultStringWidth is the fixed byte width a string-typed column
// reserves in the row buffer when declared via NewColumn rather than
// NewStringColumn. A Go string carries no fixed byte length the way a
// numeric or array type does, so a data-table column typed string is,
// like a fixed-width VARCHAR column in a column store, a byte slot its
// content is copied into and truncated against -- not a pointer to the
// original string's backing array. Spec.md's item model calls items
// "of arbitrary user type", but the column list's raw-buffer layout
// (§4.6) needs a fixed per-column size; embedding string content
// directly keeps index key equality a plain byte compare instead of
// needing a separate indirection table.
const DefaultStringWidth = 64

// ColumnDeclarer is the shape any Column[Tag, T] satisfies via its
// Decl method, letting a dynamic table collect a heterogeneous list of
// typed column declarations (spec.md §6: "ColumnList::new(columns…)").
type ColumnDeclarer interface {
	Decl() ColumnDecl
	Code() uint64
	Name() string
}

// Column pairs a marker Tag type with an item type T, purely at the Go
// type-system level (spec.md: "compile-time pairing of a tag and an
// item type"). Two columns are equal iff both their Tag (by reflected
// type identity) and Code match.
type Column[Tag any, T any] struct {
	name     string
	code     uint64
	strWidth uintptr // only meaningful when T == string
}

// NewColumn declares a column named name. The name derives the column
// code via xxhash64 (spec §6 resolves its "FNV-1a" note to xxhash64
// for this module; see DESIGN.md). T must be a fixed-size, pointer-free
// type (numeric, bool, a fixed-size array, or a struct composed only of
// such fields) or string; NewColumn picks DefaultStringWidth for string
// columns -- use NewStringColumn to choose a narrower or wider slot.
func NewColumn[Tag any, T any](name string) Column[Tag, T] {
	return Column[Tag, T]{name: name, code: xhash.ColumnCode(name), strWidth: DefaultStringWidth}
}

// NewStringColumn declares a string-typed column with an explicit fixed
// byte width; values longer than width are truncated on write.
func NewStringColumn[Tag any](name string, width uintptr) Column[Tag, string] {
	return Column[Tag, string]{name: name, code: xhash.ColumnCode(name), strWidth: width}
}

// Name returns the column's declared name.
func (c Column[Tag, T]) Name() string { return c.name }

// Code returns the column's 64-bit code.
func (c Column[Tag, T]) Code() uint64 { return c.code }

// Equal reports whether two columns share the same Tag type and code.
func (c Column[Tag, T]) Equal(other Column[Tag, T]) bool {
	var tagA, tagB Tag
	return reflect.TypeOf(tagA) == reflect.TypeOf(tagB) && c.code == other.code
}

// itemType returns T's reflect.Type, for cross-checking a declared
// column's type against a struct field's reflected type.
func (c Column[Tag, T]) itemType() reflect.Type {
	var zero T
	return reflect.TypeOf(zero)
}

// Decl computes this column's ColumnDecl: byte size and alignment for
// the row-buffer layout step of spec.md §4.6. String columns get a
// fixed slot of strWidth bytes, byte-aligned; every other T gets its
// natural reflected size/alignment.
func (c Column[Tag, T]) Decl() ColumnDecl {
	var zero T
	if _, isString := any(zero).(string); isString {
		width := c.strWidth
		if width == 0 {
			width = DefaultStringWidth
		}
		return ColumnDecl{Name: c.name, Size: width, Align: 1}
	}
	t := reflect.TypeOf(zero)
	if t == nil {
		return ColumnDecl{Name: c.name, Size: 0, Align: 1}
	}
	return ColumnDecl{Name: c.name, Size: t.Size(), Align: uintptr(t.Align())}
}

// EncodeValue writes v's representation into dst, which must be exactly
// Decl().Size bytes. Strings are copied byte-for-byte (truncated if
// longer than the slot, zero-padded if shorter) so the slot holds real
// content rather than a pointer the row's plain []byte buffer would
// hide from the garbage collector; every other T is copied via its raw
// in-memory representation, which is safe because such T are required
// to be pointer-free.
func EncodeValue[T any](dst []byte, v T) {
	if s, ok := any(v).(string); ok {
		n := copy(dst, s)
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		return
	}
	copy(dst, valueBytes(v))
}

// DecodeValue reads a T back out of src, the inverse of EncodeValue.
func DecodeValue[T any](src []byte) T {
	var zero T
	if _, ok := any(zero).(string); ok {
		end := len(src)
		for end > 0 && src[end-1] == 0 {
			end--
		}
		return any(string(src[:end])).(T)
	}
	// valueBytes takes its argument by value, so it cannot be the copy
	// target here: write into zero's own memory instead.
	if size := unsafe.Sizeof(zero); size > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&zero)), size), src)
	}
	return zero
}

// valueBytes views v's in-memory representation as a byte slice. Only
// safe for pointer-free T -- callers (EncodeValue/DecodeValue) special
// case string, the one reference type this package lets a column hold.
func valueBytes[T any](v T) []byte {
	size := unsafe.Sizeof(v)
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
}
