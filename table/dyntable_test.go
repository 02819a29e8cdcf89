package table_test

import (
	"testing"

	"github.com/morzhovets/momo/columnlist"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/row"
	"github.com/morzhovets/momo/table"
	"github.com/stretchr/testify/require"
)

type idTag struct{}
type nameTag struct{}
type scoreTag struct{}

var (
	idCol    = columnlist.NewColumn[idTag, int64]("id")
	nameCol  = columnlist.NewStringColumn[nameTag]("name", 16)
	scoreCol = columnlist.NewColumn[scoreTag, float64]("score")
)

func newTestTable(t *testing.T) *table.DynTable {
	t.Helper()
	cols := []columnlist.ColumnDeclarer{idCol, nameCol, scoreCol}
	dt, err := table.NewDynTable(cols, config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	return dt
}

func addPerson(t *testing.T, dt *table.DynTable, id int64, name string, score float64) row.RowRef {
	t.Helper()
	r := dt.NewRow(
		table.Assign(dt, idCol, id),
		table.Assign(dt, nameCol, name),
		table.Assign(dt, scoreCol, score),
	)
	ref, err := dt.AddRow(r)
	require.NoError(t, err)
	return ref
}

func TestDynTableAddAndGet(t *testing.T) {
	dt := newTestTable(t)
	ref := addPerson(t, dt, 1, "ada", 9.5)
	require.Equal(t, 1, dt.Len())

	id, err := table.Get(ref, idCol)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	name, err := table.Get(ref, nameCol)
	require.NoError(t, err)
	require.Equal(t, "ada", name)

	score, err := table.Get(ref, scoreCol)
	require.NoError(t, err)
	require.InDelta(t, 9.5, score, 1e-9)
}

func TestDynTableStringColumnTruncates(t *testing.T) {
	dt := newTestTable(t)
	ref := addPerson(t, dt, 2, "a-very-long-name-that-overflows", 0)
	name, err := table.Get(ref, nameCol)
	require.NoError(t, err)
	require.Len(t, name, 16)
}

func TestDynTableUniqueHashIndexViolation(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 1)
	_, err := dt.AddUniqueHashIndex("by_id", idCol)
	require.NoError(t, err)

	dup := dt.NewRow(
		table.Assign(dt, idCol, int64(1)),
		table.Assign(dt, nameCol, "eve"),
		table.Assign(dt, scoreCol, 2),
	)
	res, err := dt.TryAddRow(dup)
	require.NoError(t, err)
	require.NotNil(t, res.ViolatedIndex)
	require.Equal(t, "by_id", res.ViolatedIndex.Name())
	require.Equal(t, 1, dt.Len(), "rejected row must not be added")
}

func TestDynTableFindByUniqueHash(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 1)
	addPerson(t, dt, 2, "eve", 2)
	idx, err := dt.AddUniqueHashIndex("by_id", idCol)
	require.NoError(t, err)

	buf := make([]byte, 8)
	columnlist.EncodeValue(buf, int64(2))
	ref, found, err := dt.FindByUniqueHash(idx, []uint64{idCol.Code()}, [][]byte{buf})
	require.NoError(t, err)
	require.True(t, found)
	name, err := table.Get(ref, nameCol)
	require.NoError(t, err)
	require.Equal(t, "eve", name)
}

func TestDynTableMultiHashIndex(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 9)
	addPerson(t, dt, 2, "ada", 7)
	addPerson(t, dt, 3, "eve", 5)
	idx, err := dt.AddMultiHashIndex("by_name", nameCol)
	require.NoError(t, err)

	buf := make([]byte, 16)
	columnlist.EncodeValue(buf, "ada")
	sel, err := dt.FindByMultiHash(idx, []uint64{nameCol.Code()}, [][]byte{buf})
	require.NoError(t, err)
	require.Equal(t, 2, sel.Len())
}

func TestDynTableSelectByEqualityPredicate(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 9)
	addPerson(t, dt, 2, "eve", 7)

	sel, err := dt.Select([]table.Predicate{table.Eq(nameCol, "eve")}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, sel.Len())
	id, err := table.Get(sel.At(0), idCol)
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
}

func TestDynTableUpdateColumnValue(t *testing.T) {
	dt := newTestTable(t)
	ref := addPerson(t, dt, 1, "ada", 9)
	require.NoError(t, table.UpdateColumnValue(dt, ref, scoreCol, 10.0))

	score, err := table.Get(ref, scoreCol)
	require.NoError(t, err)
	require.InDelta(t, 10.0, score, 1e-9)
}

func TestDynTableUpdateColumnValueRespectsUniqueIndex(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 9)
	ref2 := addPerson(t, dt, 2, "eve", 7)
	_, err := dt.AddUniqueHashIndex("by_id", idCol)
	require.NoError(t, err)

	err = table.UpdateColumnValue(dt, ref2, idCol, int64(1))
	require.Error(t, err)
}

func TestDynTableRemoveRowByRef(t *testing.T) {
	dt := newTestTable(t)
	ref := addPerson(t, dt, 1, "ada", 9)
	addPerson(t, dt, 2, "eve", 7)
	require.NoError(t, dt.RemoveRowByRef(ref, true))
	require.Equal(t, 1, dt.Len())

	_, err := table.Get(ref, idCol)
	require.Error(t, err, "a removed row's reference must fail its version check")
}

func TestDynTableProjectAndProjectDistinct(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 9)
	addPerson(t, dt, 2, "ada", 7)
	addPerson(t, dt, 3, "eve", 5)

	proj, err := dt.Project([]columnlist.ColumnDeclarer{nameCol}, nil, config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	require.Equal(t, 3, proj.Len())

	distinct, err := dt.ProjectDistinct([]columnlist.ColumnDeclarer{nameCol}, nil, config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, distinct.Len())
}

func TestDynTableSetMutableRejectsIndexing(t *testing.T) {
	dt := newTestTable(t)
	require.NoError(t, dt.SetMutable(scoreCol.Code()))
	_, err := dt.AddUniqueHashIndex("by_score", scoreCol)
	require.Error(t, err)
}
