package bucket

import (
	"testing"

	"github.com/morzhovets/momo/internal/config"
	"github.com/stretchr/testify/require"
)

func hashOf(n int) uint64 { return uint64(n) * 0x9E3779B97F4A7C15 }

func testPolicy(t *testing.T, name string, newB func() Policy[int]) {
	t.Run(name, func(t *testing.T) {
		b := newB()
		require.False(t, b.IsFull())
		require.False(t, b.WasFull())

		cap := b.MaxCount()
		if cap < 0 {
			cap = 20
		}
		var idxOf [64]int
		for i := 0; i < cap; i++ {
			idx, err := b.Add(func() int { return i }, hashOf(i), 4, 0)
			require.NoError(t, err)
			idxOf[i] = idx
			found, ok := b.Find(func(v int) bool { return v == i }, hashOf(i))
			require.True(t, ok)
			require.Equal(t, idx, found)
		}
		if b.MaxCount() >= 0 {
			require.True(t, b.IsFull())
			require.True(t, b.WasFull())
		}
		require.Len(t, b.Bounds(), cap)

		// remove the first item, verify it is gone and the rest remain
		idx0, ok := b.Find(func(v int) bool { return v == 0 }, hashOf(0))
		require.True(t, ok)
		b.Remove(idx0, func(last, removed int) int { return last })
		_, ok = b.Find(func(v int) bool { return v == 0 }, hashOf(0))
		require.False(t, ok)
		require.Len(t, b.Bounds(), cap-1)

		b.Clear()
		require.Empty(t, b.Bounds())
		require.False(t, b.IsFull())
	})
}

func TestBucketPolicies(t *testing.T) {
	testPolicy(t, "OneSlot", func() Policy[int] { return NewOneSlot[int]() })

	fixedParams := NewFixedParams[int](4, config.PoolParams{BlocksPerChunk: 8}, nil)
	testPolicy(t, "Fixed4", func() Policy[int] { return NewFixed[int](fixedParams) })

	fixed15 := NewFixedParams[int](MaxFixedCapacity, config.PoolParams{BlocksPerChunk: 8}, nil)
	testPolicy(t, "FixedN", func() Policy[int] { return NewFixed[int](fixed15) })

	testPolicy(t, "Open8", func() Policy[int] { return NewOpen8[int]() })
	testPolicy(t, "OpenN1", func() Policy[int] { return NewOpenN1[int]() })
	testPolicy(t, "Open2N2", func() Policy[int] { return NewOpen2N2[int]() })

	unboundedInline := NewFixedParams[int](unboundedFastCount, config.PoolParams{BlocksPerChunk: 8}, nil)
	testPolicy(t, "Unbounded", func() Policy[int] { return NewUnbounded[int](unboundedInline) })
}

func TestUnboundedSpillsBeyondFastCount(t *testing.T) {
	params := NewFixedParams[int](unboundedFastCount, config.PoolParams{BlocksPerChunk: 8}, nil)
	b := NewUnbounded[int](params)
	for i := 0; i < 50; i++ {
		_, err := b.Add(func() int { return i }, hashOf(i), 4, 0)
		require.NoError(t, err)
	}
	require.Len(t, b.Bounds(), 50)
	require.False(t, b.IsFull())
}

func TestOpenAddressedCapabilityInterfaces(t *testing.T) {
	b := NewOpen2N2[int]()
	var p Policy[int] = b

	_, isProber := p.(Prober)
	require.True(t, isProber, "OpenAddressed must implement Prober")
	_, isTracker := p.(MaxProbeTracker)
	require.True(t, isTracker, "OpenAddressed must implement MaxProbeTracker")

	require.Equal(t, 0, b.GetMaxProbe(4))
	_, err := b.Add(func() int { return 1 }, hashOf(1), 4, 3)
	require.NoError(t, err)
	require.Equal(t, 3, b.GetMaxProbe(4))

	_, err = b.Add(func() int { return 2 }, hashOf(2), 4, 1)
	require.NoError(t, err)
	require.Equal(t, 3, b.GetMaxProbe(4), "a shorter probe must not lower the sticky high-water mark")

	next := b.NextBucketIndex(5, hashOf(1), 8, 2)
	require.Equal(t, 7, next)
}

func TestFixedGrowsAcrossSizeClasses(t *testing.T) {
	params := NewFixedParams[string](4, config.PoolParams{BlocksPerChunk: 2}, nil)
	b := NewFixed[string](params)
	for i, v := range []string{"a", "b", "c", "d"} {
		_, err := b.Add(func() string { return v }, hashOf(i), 4, 0)
		require.NoError(t, err)
	}
	require.True(t, b.IsFull())
	require.ElementsMatch(t, []string{"a", "b", "c", "d"}, b.Bounds())
}
