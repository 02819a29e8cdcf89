package table_test

import (
	"testing"

	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/table"
	"github.com/stretchr/testify/require"
)

type Person struct {
	ID    int64
	Name  string
	Score float64
}

func newPersonTable(t *testing.T) *table.Table[Person] {
	t.Helper()
	tbl, err := table.NewTable[Person](config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	return tbl
}

func TestTableNewRowAndGet(t *testing.T) {
	tbl := newPersonTable(t)
	ref, err := tbl.AddRow(tbl.NewRow(Person{ID: 1, Name: "ada", Score: 9.5}))
	require.NoError(t, err)

	got, err := tbl.Get(ref)
	require.NoError(t, err)
	require.Equal(t, Person{ID: 1, Name: "ada", Score: 9.5}, got)
}

func TestTableUpdateField(t *testing.T) {
	tbl := newPersonTable(t)
	ref, err := tbl.AddRow(tbl.NewRow(Person{ID: 1, Name: "ada", Score: 9.5}))
	require.NoError(t, err)

	require.NoError(t, tbl.UpdateField(ref, "Score", 10.0))
	got, err := tbl.Get(ref)
	require.NoError(t, err)
	require.InDelta(t, 10.0, got.Score, 1e-9)
}

func TestTableUpdateFieldUnknownField(t *testing.T) {
	tbl := newPersonTable(t)
	ref, err := tbl.AddRow(tbl.NewRow(Person{ID: 1, Name: "ada", Score: 9.5}))
	require.NoError(t, err)
	require.Error(t, tbl.UpdateField(ref, "NoSuchField", 1))
}

func TestTableStringFieldTruncatesToDefaultWidth(t *testing.T) {
	tbl := newPersonTable(t)
	long := "this-name-is-much-longer-than-the-sixty-four-byte-default-column-width-for-sure"
	ref, err := tbl.AddRow(tbl.NewRow(Person{ID: 2, Name: long}))
	require.NoError(t, err)

	got, err := tbl.Get(ref)
	require.NoError(t, err)
	require.LessOrEqual(t, len(got.Name), 64)
	require.Equal(t, long[:len(got.Name)], got.Name)
}

func TestTableRemoveRowAt(t *testing.T) {
	tbl := newPersonTable(t)
	_, err := tbl.AddRow(tbl.NewRow(Person{ID: 1}))
	require.NoError(t, err)
	_, err = tbl.AddRow(tbl.NewRow(Person{ID: 2}))
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	tbl.RemoveRowAt(0, true)
	require.Equal(t, 1, tbl.Len())
}
