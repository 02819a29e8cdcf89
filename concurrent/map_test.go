package concurrent_test

import (
	"testing"

	"github.com/morzhovets/momo/concurrent"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestMapPutGet(t *testing.T) {
	m := concurrent.NewStringMap[int](telemetry.NewNop())
	require.NoError(t, m.Put("a", 1))
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestMapGetMissing(t *testing.T) {
	m := concurrent.NewIntMap[string](telemetry.NewNop())
	_, ok := m.Get(7)
	require.False(t, ok)
}

func TestMapDelete(t *testing.T) {
	m := concurrent.NewStringMap[int](telemetry.NewNop())
	require.NoError(t, m.Put("a", 1))
	v, ok := m.Delete("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	_, ok = m.Get("a")
	require.False(t, ok)
}

func TestMapLen(t *testing.T) {
	m := concurrent.NewStringMap[int](telemetry.NewNop())
	require.NoError(t, m.Put("a", 1))
	require.NoError(t, m.Put("b", 2))
	require.Equal(t, 2, m.Len())
}
