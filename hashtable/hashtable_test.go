package hashtable_test

import (
	"fmt"
	"testing"

	"github.com/morzhovets/momo/bucket"
	"github.com/morzhovets/momo/hashtable"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/xhash"
	"github.com/stretchr/testify/require"
)

type item struct {
	key string
	val int
}

type stringHasher struct{}

func (stringHasher) Hash(s string) uint64 { return xhash.String(s) }

type stringEqualer struct{}

func (stringEqualer) Equal(a, b string) bool { return a == b }

func newTable() *hashtable.Table[item, string] {
	params := bucket.NewFixedParams[item](4, config.PoolParams{BlocksPerChunk: 16}, nil)
	factory := func() hashtable.Policy[item] { return bucket.NewFixed[item](params) }
	return hashtable.New[item, string](stringHasher{}, stringEqualer{}, func(it item) string { return it.key }, factory, nil)
}

func TestTableInsertLookupRemove(t *testing.T) {
	tbl := newTable()
	for i := 0; i < 200; i++ {
		replaced, err := tbl.Insert(item{key: fmt.Sprintf("k%d", i), val: i})
		require.NoError(t, err)
		require.False(t, replaced)
	}
	require.Equal(t, 200, tbl.Len())

	for i := 0; i < 200; i++ {
		got, ok := tbl.Lookup(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		require.Equal(t, i, got.val)
	}

	replaced, err := tbl.Insert(item{key: "k5", val: -1})
	require.NoError(t, err)
	require.True(t, replaced)
	got, ok := tbl.Lookup("k5")
	require.True(t, ok)
	require.Equal(t, -1, got.val)

	removed, ok := tbl.Remove("k10")
	require.True(t, ok)
	require.Equal(t, 10, removed.val)
	_, ok = tbl.Lookup("k10")
	require.False(t, ok)
	require.Equal(t, 199, tbl.Len())

	_, ok = tbl.Remove("does-not-exist")
	require.False(t, ok)
}

func TestTableForEachVisitsEverything(t *testing.T) {
	tbl := newTable()
	want := map[string]int{}
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("item-%d", i)
		want[k] = i
		_, err := tbl.Insert(item{key: k, val: i})
		require.NoError(t, err)
	}

	got := map[string]int{}
	tbl.ForEach(func(it item) bool {
		got[it.key] = it.val
		return true
	})
	require.Equal(t, want, got)
}

// newOpenTable builds a table over bucket.Open2N2: a small, fixed
// per-bucket capacity with no overflow chain, so every insert beyond
// one bucket's capacity must travel its Prober's probe sequence into
// another bucket array slot.
func newOpenTable() *hashtable.Table[item, string] {
	factory := func() hashtable.Policy[item] { return bucket.NewOpen2N2[item]() }
	return hashtable.New[item, string](stringHasher{}, stringEqualer{}, func(it item) string { return it.key }, factory, nil)
}

func TestTableOpenAddressingProbesAcrossBuckets(t *testing.T) {
	tbl := newOpenTable()
	want := map[string]int{}
	for i := 0; i < 300; i++ {
		k := fmt.Sprintf("open-%d", i)
		want[k] = i
		replaced, err := tbl.Insert(item{key: k, val: i})
		require.NoError(t, err)
		require.False(t, replaced)
	}
	require.Equal(t, 300, tbl.Len())

	for k, v := range want {
		got, ok := tbl.Lookup(k)
		require.True(t, ok, "lookup miss for %s", k)
		require.Equal(t, v, got.val)
	}

	for i := 0; i < 300; i += 3 {
		k := fmt.Sprintf("open-%d", i)
		removed, ok := tbl.Remove(k)
		require.True(t, ok)
		require.Equal(t, i, removed.val)
		delete(want, k)
	}
	require.Equal(t, len(want), tbl.Len())

	for k, v := range want {
		got, ok := tbl.Lookup(k)
		require.True(t, ok, "lookup miss for %s after removals", k)
		require.Equal(t, v, got.val)
	}
	_, ok := tbl.Lookup("open-0")
	require.False(t, ok, "removed key must not resurface via a stale probe sequence")

	replaced, err := tbl.Insert(item{key: "open-1", val: -1})
	require.NoError(t, err)
	require.True(t, replaced)
	got, ok := tbl.Lookup("open-1")
	require.True(t, ok)
	require.Equal(t, -1, got.val)

	got2 := map[string]int{}
	tbl.ForEach(func(it item) bool {
		got2[it.key] = it.val
		return true
	})
	want["open-1"] = -1
	require.Equal(t, want, got2)
}

func TestTableChangeAndRemoveVersionsAdvance(t *testing.T) {
	tbl := newTable()
	v0 := tbl.ChangeVersion()
	_, err := tbl.Insert(item{key: "a", val: 1})
	require.NoError(t, err)
	require.Greater(t, tbl.ChangeVersion(), v0)

	rv0 := tbl.RemoveVersion()
	_, ok := tbl.Remove("a")
	require.True(t, ok)
	require.Greater(t, tbl.RemoveVersion(), rv0)
}
