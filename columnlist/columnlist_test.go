package columnlist_test

import (
	"testing"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/xhash"
	"github.com/stretchr/testify/require"
)

func TestBuildResolvesOffsetsForEveryColumn(t *testing.T) {
	decls := []columnlist.ColumnDecl{
		{Name: "id", Size: 8, Align: 8},
		{Name: "name", Size: 16, Align: 8},
		{Name: "score", Size: 8, Align: 8},
		{Name: "flags", Size: 4, Align: 4},
		{Name: "ts", Size: 8, Align: 8},
	}
	cl, err := columnlist.Build(decls, true, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)
	require.Equal(t, len(decls), cl.NumColumns())

	seen := map[uintptr]bool{}
	for i, d := range decls {
		code := xhash.ColumnCode(d.Name)
		off, ok := cl.Offset(code)
		require.True(t, ok, "column %s should resolve", d.Name)
		require.Equal(t, cl.FastOffset(code), off)
		require.False(t, seen[off], "offset %d reused by two columns", off)
		seen[off] = true
		require.Equal(t, cl.Code(i), code)
	}

	rowNumOff, ok := cl.RowNumberOffset()
	require.True(t, ok)
	require.Equal(t, cl.TotalSize()-8, rowNumOff)
}

func TestUnknownColumnCodeNotFound(t *testing.T) {
	decls := []columnlist.ColumnDecl{{Name: "a", Size: 8, Align: 8}}
	cl, err := columnlist.Build(decls, false, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)

	_, ok := cl.Offset(xhash.ColumnCode("not-declared"))
	require.False(t, ok)
}

func TestMutabilityBitmap(t *testing.T) {
	decls := []columnlist.ColumnDecl{
		{Name: "a", Size: 8, Align: 8},
		{Name: "b", Size: 8, Align: 8},
	}
	cl, err := columnlist.Build(decls, false, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)

	offA, _ := cl.Offset(xhash.ColumnCode("a"))
	offB, _ := cl.Offset(xhash.ColumnCode("b"))
	require.False(t, cl.IsMutable(offA))
	cl.SetMutable(offA)
	require.True(t, cl.IsMutable(offA))
	require.False(t, cl.IsMutable(offB))
}

func TestManyColumnsStillResolve(t *testing.T) {
	decls := make([]columnlist.ColumnDecl, 40)
	for i := range decls {
		decls[i] = columnlist.ColumnDecl{Name: string(rune('a' + i%26)) + string(rune('A'+i/26)), Size: 8, Align: 8}
	}
	cl, err := columnlist.Build(decls, false, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)
	for _, d := range decls {
		_, ok := cl.Offset(xhash.ColumnCode(d.Name))
		require.True(t, ok)
	}
}
