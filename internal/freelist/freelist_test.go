package freelist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackPushDrainOrder(t *testing.T) {
	var s Stack[int]
	for i := 0; i < 5; i++ {
		s.Push(i)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, s.DrainAll())
	require.Empty(t, s.DrainAll())
}

func TestStackConcurrentPush(t *testing.T) {
	var s Stack[int]
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Push(v)
		}(i)
	}
	wg.Wait()
	require.Len(t, s.DrainAll(), n)
}
