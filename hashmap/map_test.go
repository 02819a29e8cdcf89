package hashmap_test

import (
	"fmt"
	"sort"
	"testing"

	"github.com/morzhovets/momo/hashmap"
	"github.com/stretchr/testify/require"
)

func TestMapPutGetDelete(t *testing.T) {
	m := hashmap.NewStringMap[int](nil)
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Put(fmt.Sprintf("k%d", i), i))
	}
	require.Equal(t, 100, m.Len())

	v, ok := m.Get("k42")
	require.True(t, ok)
	require.Equal(t, 42, v)

	require.NoError(t, m.Put("k42", -1))
	v, ok = m.Get("k42")
	require.True(t, ok)
	require.Equal(t, -1, v)

	removed, ok := m.Delete("k0")
	require.True(t, ok)
	require.Equal(t, 0, removed)
	_, ok = m.Get("k0")
	require.False(t, ok)
	require.Equal(t, 99, m.Len())
}

func TestMapGetOrInsert(t *testing.T) {
	m := hashmap.NewIntMap[string](nil)
	calls := 0
	makeValue := func() string { calls++; return "created" }

	v, existed, err := m.GetOrInsert(1, makeValue)
	require.NoError(t, err)
	require.False(t, existed)
	require.Equal(t, "created", v)
	require.Equal(t, 1, calls)

	v, existed, err = m.GetOrInsert(1, makeValue)
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, "created", v)
	require.Equal(t, 1, calls) // makeValue not called again
}

func TestValueRefDelaysInsertion(t *testing.T) {
	m := hashmap.NewStringMap[int](nil)
	ref := m.Ref("deferred")
	_, ok := ref.Get()
	require.False(t, ok)
	require.Equal(t, 0, m.Len())

	require.NoError(t, ref.Set(7))
	require.Equal(t, 1, m.Len())
	v, ok := ref.Get()
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestValueRefStaleness(t *testing.T) {
	m := hashmap.NewStringMap[int](nil)
	ref := m.Ref("a")
	require.False(t, ref.Stale())
	require.NoError(t, m.Put("b", 1))
	require.True(t, ref.Stale())
}

func TestMultiMapAddValuesRemove(t *testing.T) {
	mm := hashmap.NewMultiMap[string, int](func(s string) uint64 {
		h := uint64(0)
		for _, c := range s {
			h = h*31 + uint64(c)
		}
		return h
	}, nil)

	require.NoError(t, mm.Add("x", 1))
	require.NoError(t, mm.Add("x", 2))
	require.NoError(t, mm.Add("x", 3))
	require.NoError(t, mm.Add("y", 100))

	values := mm.Values("x")
	sort.Ints(values)
	require.Equal(t, []int{1, 2, 3}, values)
	require.Equal(t, []int{100}, mm.Values("y"))
	require.Equal(t, 2, mm.Len())

	require.True(t, mm.Remove("x", 2, func(a, b int) bool { return a == b }))
	values = mm.Values("x")
	sort.Ints(values)
	require.Equal(t, []int{1, 3}, values)

	require.True(t, mm.Remove("x", 1, func(a, b int) bool { return a == b }))
	require.True(t, mm.Remove("x", 3, func(a, b int) bool { return a == b }))
	require.Nil(t, mm.Values("x"))
	require.Equal(t, 1, mm.Len())

	require.False(t, mm.Remove("nope", 1, func(a, b int) bool { return a == b }))
}

func TestMultiMapForEach(t *testing.T) {
	mm := hashmap.NewMultiMap[int, string](func(k int) uint64 { return uint64(k) }, nil)
	require.NoError(t, mm.Add(1, "a"))
	require.NoError(t, mm.Add(1, "b"))
	require.NoError(t, mm.Add(2, "c"))

	got := map[int][]string{}
	mm.ForEach(func(k int, v string) bool {
		got[k] = append(got[k], v)
		return true
	})
	sort.Strings(got[1])
	require.Equal(t, []string{"a", "b"}, got[1])
	require.Equal(t, []string{"c"}, got[2])
}
