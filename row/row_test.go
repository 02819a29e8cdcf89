package row_test

import (
	"testing"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/freelist"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/xhash"
	"github.com/morzhovets/momo/row"
	"github.com/stretchr/testify/require"
)

func buildColumns(t *testing.T) *columnlist.ColumnList {
	decls := []columnlist.ColumnDecl{
		{Name: "a", Size: 8, Align: 8},
		{Name: "b", Size: 8, Align: 8},
	}
	cl, err := columnlist.Build(decls, false, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)
	return cl
}

func TestRowDropRecyclesBuffer(t *testing.T) {
	cols := buildColumns(t)
	freeRaws := &freelist.Stack[*row.Raw]{}

	r1 := row.New(cols, freeRaws)
	buf1 := r1.Raw()
	r1.Drop()

	r2 := row.New(cols, freeRaws)
	require.Same(t, buf1, r2.Raw())
}

func TestRowRefFieldVersionCheck(t *testing.T) {
	cols := buildColumns(t)
	freeRaws := &freelist.Stack[*row.Raw]{}
	r := row.New(cols, freeRaws)

	var removeVersion uint64
	ref := row.NewRowRef(cols, r.Raw(), &removeVersion)

	codeA := xhash.ColumnCode("a")
	field, err := ref.Field(codeA, 8)
	require.NoError(t, err)
	require.Len(t, field, 8)

	removeVersion++
	_, err = ref.Field(codeA, 8)
	require.ErrorIs(t, err, momoerr.ErrVersionCheckFailed)
}

func TestRowRefMutableColumnBypassesVersionCheck(t *testing.T) {
	cols := buildColumns(t)
	offA, _ := cols.Offset(xhash.ColumnCode("a"))
	cols.SetMutable(offA)

	freeRaws := &freelist.Stack[*row.Raw]{}
	r := row.New(cols, freeRaws)
	var removeVersion uint64
	ref := row.NewRowRef(cols, r.Raw(), &removeVersion)

	removeVersion++
	_, err := ref.Field(xhash.ColumnCode("a"), 8)
	require.NoError(t, err)
}
