package columnlist

import (
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/xhash"
)

// sentinelAddend marks a perfect-hash graph vertex no declared column
// maps to. spec.md §9's Open Question ("pick any non-zero sentinel of
// at least total_row_size") is resolved to the sign bit: always larger
// than any realistic row size, so a stray lookup through an unused
// vertex is unmistakably wrong rather than silently plausible.
const sentinelAddend = int64(-1) << 63

// ColumnDecl is one column's static declaration: name (which derives
// its code), payload size and alignment. Declaration order determines
// layout order, matching spec §4.6 step 3.
type ColumnDecl struct {
	Name  string
	Size  uintptr
	Align uintptr
}

// ColumnList is the dynamic variant of spec.md §4.6: an opaque row
// buffer whose column offsets are resolved in O(1) via a minimal
// perfect hash (two-coloring over an undirected multigraph keyed by
// each column's two hash-derived vertices).
type ColumnList struct {
	decls        []ColumnDecl
	codes        []uint64
	offsets      []uintptr // parallel to decls; declaration-order layout
	offsetByCode map[uint64]uintptr

	codeParam      uint8
	logVertexCount uint8
	addend         []int64 // size 1<<logVertexCount

	totalSize       uintptr
	rowNumbering    bool
	rowNumberOffset uintptr
	mutable         []uint64 // bitset, index = offset/64, bit = offset%64
}

// MaxCodeParam bounds the code_param retry loop (spec §4.6 step 5).
const MaxCodeParam = 255

// DefaultLogVertexCount is V = 2^8 = 256, spec's "typically 256".
const DefaultLogVertexCount = 8

// Build constructs a ColumnList from decls in declaration order. Returns
// momoerr.ErrTooManyCollisions if no code_param in [0, maxCodeParam]
// yields a consistent two-coloring.
func Build(decls []ColumnDecl, rowNumbering bool, maxCodeParam uint8, logVertexCount uint8) (*ColumnList, error) {
	cl := &ColumnList{
		decls:          append([]ColumnDecl(nil), decls...),
		rowNumbering:   rowNumbering,
		logVertexCount: logVertexCount,
	}
	cl.codes = make([]uint64, len(decls))
	for i, d := range decls {
		cl.codes[i] = xhash.ColumnCode(d.Name)
	}

	cl.layoutOffsets()

	for codeParam := 0; codeParam <= int(maxCodeParam); codeParam++ {
		addend, ok := tryAssign(cl.codes, cl.offsets, uint8(codeParam), logVertexCount)
		if ok {
			cl.codeParam = uint8(codeParam)
			cl.addend = addend
			cl.offsetByCode = make(map[uint64]uintptr, len(decls))
			for i, code := range cl.codes {
				cl.offsetByCode[code] = cl.offsets[i]
			}
			cl.mutable = make([]uint64, (int(cl.totalSize)+63)/64+1)
			return cl, nil
		}
	}
	return nil, momoerr.ErrTooManyCollisions
}

// layoutOffsets assigns each column a byte offset in declaration order,
// aligning each to its own alignment, then appends an 8-byte row-number
// slot and aligns total_size to the widest alignment seen (spec §4.6
// step 3/6).
func (cl *ColumnList) layoutOffsets() {
	cl.offsets = make([]uintptr, len(cl.decls))
	var cursor uintptr
	var maxAlign uintptr = 1
	for i, d := range cl.decls {
		align := d.Align
		if align == 0 {
			align = 1
		}
		if align > maxAlign {
			maxAlign = align
		}
		cursor = alignUp(cursor, align)
		cl.offsets[i] = cursor
		cursor += d.Size
	}
	if cl.rowNumbering {
		cursor = alignUp(cursor, 8)
		cl.rowNumberOffset = cursor
		cursor += 8
	}
	cl.totalSize = alignUp(cursor, maxAlign)
}

func alignUp(v, align uintptr) uintptr {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// tryAssign attempts the two-coloring / addend assignment for one
// code_param: builds the (v1,v2,offset)-edge multigraph and BFS-colors
// each connected component, returning ok=false on the first conflicting
// edge (same edge constraint violated, or v1==v2 for some column).
func tryAssign(codes []uint64, offsets []uintptr, codeParam uint8, logVertexCount uint8) ([]int64, bool) {
	vcount := 1 << logVertexCount
	type edge struct {
		v1, v2 uint32
		offset int64
	}
	edges := make([]edge, len(codes))
	adj := make([][]int, vcount) // vertex -> edge indices
	for i, code := range codes {
		v1, v2 := xhash.Vertices(code, codeParam, logVertexCount)
		if v1 == v2 {
			return nil, false
		}
		edges[i] = edge{v1: v1, v2: v2, offset: int64(offsets[i])}
		adj[v1] = append(adj[v1], i)
		adj[v2] = append(adj[v2], i)
	}

	addend := make([]int64, vcount)
	visited := make([]bool, vcount)
	for i := range addend {
		addend[i] = sentinelAddend
	}

	for start := 0; start < vcount; start++ {
		if visited[start] || len(adj[start]) == 0 {
			continue
		}
		addend[start] = 0
		visited[start] = true
		queue := []uint32{uint32(start)}
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, ei := range adj[u] {
				e := edges[ei]
				var v uint32
				if e.v1 == u {
					v = e.v2
				} else {
					v = e.v1
				}
				if visited[v] {
					if addend[u]+addend[v] != e.offset {
						return nil, false
					}
					continue
				}
				addend[v] = e.offset - addend[u]
				visited[v] = true
				queue = append(queue, v)
			}
		}
	}
	return addend, true
}

// Offset resolves a column code to its byte offset through a map keyed
// by code, reporting false for a code no column declared. FastOffset is
// the addend-table path (two vertex derivations, two addend lookups).
func (cl *ColumnList) Offset(code uint64) (uintptr, bool) {
	off, ok := cl.offsetByCode[code]
	return off, ok
}

// FastOffset resolves a column code via the addend table directly,
// without the presence-checking map -- the branch-free path spec.md
// describes for trusted, already-validated column codes.
func (cl *ColumnList) FastOffset(code uint64) uintptr {
	v1, v2 := xhash.Vertices(code, cl.codeParam, cl.logVertexCount)
	return uintptr(cl.addend[v1] + cl.addend[v2])
}

// TotalSize is the row buffer size after row-number and alignment
// padding.
func (cl *ColumnList) TotalSize() uintptr { return cl.totalSize }

// NumColumns reports the number of declared columns.
func (cl *ColumnList) NumColumns() int { return len(cl.decls) }

// Decl returns the i'th column's declaration.
func (cl *ColumnList) Decl(i int) ColumnDecl { return cl.decls[i] }

// Code returns the i'th column's code.
func (cl *ColumnList) Code(i int) uint64 { return cl.codes[i] }

// RowNumberOffset returns the offset of the trailing row-number slot,
// valid only when row-numbering was enabled at Build time. Stored
// explicitly at layout time rather than derived as totalSize-8, since a
// column with alignment wider than 8 can push totalSize past the row-
// number field with trailing padding.
func (cl *ColumnList) RowNumberOffset() (uintptr, bool) {
	if !cl.rowNumbering {
		return 0, false
	}
	return cl.rowNumberOffset, true
}

// SetMutable marks offset as bypassing index synchronization on write
// (spec §4.6: "indexes refuse to be built over mutable offsets").
func (cl *ColumnList) SetMutable(offset uintptr) {
	word, bit := offset/64, offset%64
	cl.mutable[word] |= 1 << bit
}

// IsMutable reports whether offset was marked via SetMutable.
func (cl *ColumnList) IsMutable(offset uintptr) bool {
	word, bit := offset/64, offset%64
	if int(word) >= len(cl.mutable) {
		return false
	}
	return cl.mutable[word]&(1<<bit) != 0
}
