package pool

import (
	"testing"

	"github.com/morzhovets/momo/internal/config"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocateDeallocate(t *testing.T) {
	p := New[int](config.PoolParams{BlocksPerChunk: 4}, nil)

	var blocks []*int
	for i := 0; i < 10; i++ {
		b, err := p.Allocate()
		require.NoError(t, err)
		*b = i
		blocks = append(blocks, b)
	}
	require.Equal(t, 10, p.BlockCount())

	for _, b := range blocks {
		p.Deallocate(b)
	}
	require.Equal(t, 0, p.BlockCount())

	// reallocating should succeed and reuse freed chunks
	b, err := p.Allocate()
	require.NoError(t, err)
	require.Equal(t, 0, *b) // reused block must come back zeroed
	require.Equal(t, 1, p.BlockCount())
}

func TestPoolDropsEmptyChunks(t *testing.T) {
	p := New[int](config.PoolParams{BlocksPerChunk: 2}, nil)

	a, _ := p.Allocate()
	b, _ := p.Allocate()
	c, _ := p.Allocate() // forces a second chunk
	require.Len(t, p.chunks, 2)

	p.Deallocate(a)
	p.Deallocate(b) // first chunk now fully empty, should be dropped
	require.Len(t, p.chunks, 1)

	p.Deallocate(c)
	require.Equal(t, 0, p.BlockCount())
}
