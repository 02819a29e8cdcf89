package concurrent_test

import (
	"sync"
	"testing"

	"github.com/morzhovets/momo/concurrent"
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
	"github.com/morzhovets/momo/table"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    int64
	Count int64
}

func TestConcurrentTableAddGet(t *testing.T) {
	inner, err := table.NewTable[widget](config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	tbl := concurrent.NewTable(inner)

	ref, err := tbl.Add(widget{ID: 1, Count: 10})
	require.NoError(t, err)
	got, err := tbl.Get(ref)
	require.NoError(t, err)
	require.Equal(t, widget{ID: 1, Count: 10}, got)
}

func TestConcurrentTableParallelAdds(t *testing.T) {
	inner, err := table.NewTable[widget](config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	tbl := concurrent.NewTable(inner)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tbl.Add(widget{ID: int64(i)})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 32, tbl.Len())
}

func TestConcurrentTableClone(t *testing.T) {
	inner, err := table.NewTable[widget](config.Default(), telemetry.NewNop())
	require.NoError(t, err)
	tbl := concurrent.NewTable(inner)
	_, err = tbl.Add(widget{ID: 1})
	require.NoError(t, err)

	clone, err := tbl.Clone()
	require.NoError(t, err)
	require.Equal(t, 1, clone.Len())
}
