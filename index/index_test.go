package index

import (
	"encoding/binary"
	"testing"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/xhash"
	"github.com/morzhovets/momo/row"
	"github.com/stretchr/testify/require"
)

func buildColumns(t *testing.T) *columnlist.ColumnList {
	decls := []columnlist.ColumnDecl{
		{Name: "id", Size: 8, Align: 8},
		{Name: "group", Size: 8, Align: 8},
	}
	cl, err := columnlist.Build(decls, false, columnlist.MaxCodeParam, columnlist.DefaultLogVertexCount)
	require.NoError(t, err)
	return cl
}

func newRaw(t *testing.T, cl *columnlist.ColumnList, id, group uint64) *row.Raw {
	r := &row.Raw{Buf: make([]byte, cl.TotalSize())}
	idOff, ok := cl.Offset(xhash.ColumnCode("id"))
	require.True(t, ok)
	groupOff, ok := cl.Offset(xhash.ColumnCode("group"))
	require.True(t, ok)
	binary.LittleEndian.PutUint64(r.Buf[idOff:idOff+8], id)
	binary.LittleEndian.PutUint64(r.Buf[groupOff:groupOff+8], group)
	return r
}

func idColumns(t *testing.T, cl *columnlist.ColumnList) []KeyColumn {
	off, ok := cl.Offset(xhash.ColumnCode("id"))
	require.True(t, ok)
	return []KeyColumn{{Offset: off, Size: 8}}
}

func groupColumns(t *testing.T, cl *columnlist.ColumnList) []KeyColumn {
	off, ok := cl.Offset(xhash.ColumnCode("group"))
	require.True(t, ok)
	return []KeyColumn{{Offset: off, Size: 8}}
}

func TestUniqueHashIndexRejectsDuplicateKey(t *testing.T) {
	cl := buildColumns(t)
	set := &IndexSet{}
	set.AddUniqueHashIndex(NewUniqueHashIndex("by_id", idColumns(t, cl), nil))

	r1 := newRaw(t, cl, 1, 10)
	r2 := newRaw(t, cl, 1, 20) // same id, must be rejected

	require.NoError(t, set.AddRow(r1))
	err := set.AddRow(r2)
	require.Error(t, err)
	viol, ok := momoerr.AsUniqueIndexViolation(err)
	require.True(t, ok)
	require.Equal(t, "by_id", viol.Index.Name())
	require.Equal(t, r1, viol.Existing)

	// r2 must not have been committed to the unique index, since the
	// add never got past the violation check.
	require.Equal(t, 1, set.unique[0].Len())
}

func TestMultiHashIndexGroupsByKey(t *testing.T) {
	cl := buildColumns(t)
	set := &IndexSet{}
	set.AddUniqueHashIndex(NewUniqueHashIndex("by_id", idColumns(t, cl), nil))
	set.AddMultiHashIndex(NewMultiHashIndex("by_group", groupColumns(t, cl), nil))

	r1 := newRaw(t, cl, 1, 100)
	r2 := newRaw(t, cl, 2, 100)
	r3 := newRaw(t, cl, 3, 200)
	require.NoError(t, set.AddRow(r1))
	require.NoError(t, set.AddRow(r2))
	require.NoError(t, set.AddRow(r3))

	groupOff, _ := cl.Offset(xhash.ColumnCode("group"))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 100)
	rows := set.multi[0].Find(map[uintptr][]byte{groupOff: buf[:]})
	require.ElementsMatch(t, []*row.Raw{r1, r2}, rows)

	set.RemoveRow(r1)
	rows = set.multi[0].Find(map[uintptr][]byte{groupOff: buf[:]})
	require.Equal(t, []*row.Raw{r2}, rows)
}

func TestUpdateRowMovesUniqueAndMultiEntries(t *testing.T) {
	cl := buildColumns(t)
	set := &IndexSet{}
	set.AddUniqueHashIndex(NewUniqueHashIndex("by_id", idColumns(t, cl), nil))
	set.AddMultiHashIndex(NewMultiHashIndex("by_group", groupColumns(t, cl), nil))

	r1 := newRaw(t, cl, 1, 100)
	require.NoError(t, set.AddRow(r1))

	idOff, _ := cl.Offset(xhash.ColumnCode("id"))
	var newID [8]byte
	binary.LittleEndian.PutUint64(newID[:], 42)

	err := set.UpdateRow(r1, idOff, newID[:], func() {
		binary.LittleEndian.PutUint64(r1.Buf[idOff:idOff+8], 42)
	})
	require.NoError(t, err)

	got, ok := set.unique[0].Find(map[uintptr][]byte{idOff: newID[:]})
	require.True(t, ok)
	require.Equal(t, r1, got)

	var oldID [8]byte
	binary.LittleEndian.PutUint64(oldID[:], 1)
	_, ok = set.unique[0].Find(map[uintptr][]byte{idOff: oldID[:]})
	require.False(t, ok)

	groupOff, _ := cl.Offset(xhash.ColumnCode("group"))
	var groupBuf [8]byte
	binary.LittleEndian.PutUint64(groupBuf[:], 100)
	rows := set.multi[0].Find(map[uintptr][]byte{groupOff: groupBuf[:]})
	require.Equal(t, []*row.Raw{r1}, rows)
}

func TestUpdateRowRejectsUniqueViolation(t *testing.T) {
	cl := buildColumns(t)
	set := &IndexSet{}
	set.AddUniqueHashIndex(NewUniqueHashIndex("by_id", idColumns(t, cl), nil))

	r1 := newRaw(t, cl, 1, 100)
	r2 := newRaw(t, cl, 2, 200)
	require.NoError(t, set.AddRow(r1))
	require.NoError(t, set.AddRow(r2))

	idOff, _ := cl.Offset(xhash.ColumnCode("id"))
	var collideID [8]byte
	binary.LittleEndian.PutUint64(collideID[:], 1)

	assignCalled := false
	err := set.UpdateRow(r2, idOff, collideID[:], func() { assignCalled = true })
	require.Error(t, err)
	require.False(t, assignCalled, "assigner must not run when the update would violate a unique index")
}
