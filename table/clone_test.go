package table_test

import (
	"testing"

	"github.com/morzhovets/momo/table"
	"github.com/stretchr/testify/require"
)

func TestDynTableCloneIsIndependent(t *testing.T) {
	dt := newTestTable(t)
	addPerson(t, dt, 1, "ada", 9)
	addPerson(t, dt, 2, "eve", 7)
	_, err := dt.AddUniqueHashIndex("by_id", idCol)
	require.NoError(t, err)

	clone, err := dt.Clone()
	require.NoError(t, err)
	require.Equal(t, dt.Len(), clone.Len())

	addPerson(t, dt, 3, "bob", 1)
	require.Equal(t, 3, dt.Len())
	require.Equal(t, 2, clone.Len(), "clone must not see rows added to the source after cloning")

	dup := clone.NewRow(
		table.Assign(clone, idCol, int64(1)),
		table.Assign(clone, nameCol, "mallory"),
		table.Assign(clone, scoreCol, 0),
	)
	res, err := clone.TryAddRow(dup)
	require.NoError(t, err)
	require.NotNil(t, res.ViolatedIndex, "clone must rebuild the unique-hash index over id")
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := newPersonTable(t)
	ref, err := tbl.AddRow(tbl.NewRow(Person{ID: 1, Name: "ada", Score: 9.5}))
	require.NoError(t, err)

	clone, err := tbl.Clone()
	require.NoError(t, err)

	require.NoError(t, tbl.UpdateField(ref, "Score", 1.0))
	cloneRef, err := clone.RowRefAt(0)
	require.NoError(t, err)
	got, err := clone.Get(cloneRef)
	require.NoError(t, err)
	require.InDelta(t, 9.5, got.Score, 1e-9, "clone's row must be unaffected by a later update to the source")
}
