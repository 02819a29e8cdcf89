// Package pool implements the memory pool of spec.md §4.1: a
// fixed-size-block allocator with a free list and a per-pool cap on
// blocks per chunk, used as the substrate for bucket payloads
// (package bucket) and row storage (package table).
//
// The C++ original threads its free list intrusively through the
// blocks themselves and frees a chunk's backing storage once every
// block in it is free. A generic Go pool cannot safely overlay a
// "next free" pointer inside an arbitrary T without unsafe games that
// fight the garbage collector, so Deallocate instead pushes onto an
// explicit LIFO stack of block pointers — same O(1) allocate/
// deallocate behavior, same per-chunk cap, without unsafe. See
// DESIGN.md.
package pool

import (
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/momoerr"
	"github.com/morzhovets/momo/internal/telemetry"
)

// Pool is a fixed-size-block allocator for blocks of type T.
type Pool[T any] struct {
	params  config.PoolParams
	metrics *telemetry.Metrics

	chunks    [][]T
	chunkUsed []int // live block count per chunk, parallel to chunks
	ownerOf   map[*T]int
	free      []*T
}

// New builds a Pool using the given parameter set. metrics may be nil.
func New[T any](params config.PoolParams, metrics *telemetry.Metrics) *Pool[T] {
	if params.BlocksPerChunk <= 0 {
		params.BlocksPerChunk = 64
	}
	return &Pool[T]{
		params:  params,
		metrics: metrics,
		ownerOf: make(map[*T]int),
	}
}

// Allocate returns a pointer to a zero-valued, aligned block, or
// ErrOutOfMemory if a new chunk could not be allocated.
func (p *Pool[T]) Allocate() (*T, error) {
	if len(p.free) == 0 {
		if err := p.growByOneChunk(); err != nil {
			return nil, err
		}
	}
	n := len(p.free) - 1
	blk := p.free[n]
	p.free[n] = nil
	p.free = p.free[:n]
	p.chunkUsed[p.ownerOf[blk]]++
	p.metrics.SetPoolBlocksInUse(p.liveCount())
	var zero T
	*blk = zero
	return blk, nil
}

// Deallocate returns block to the pool's free list. Once the chunk
// that owns it becomes fully empty and it is not the only chunk, the
// chunk is dropped from the pool so Go's allocator can reclaim it.
func (p *Pool[T]) Deallocate(block *T) {
	idx, ok := p.ownerOf[block]
	if !ok {
		momoerr.AssertionFailure("pool: deallocating a block this pool did not allocate")
	}
	p.chunkUsed[idx]--
	p.free = append(p.free, block)
	p.metrics.SetPoolBlocksInUse(p.liveCount())

	if p.chunkUsed[idx] == 0 && len(p.chunks) > 1 {
		p.dropChunk(idx)
	}
}

// BlockCount reports live (allocated, not-yet-deallocated) blocks.
func (p *Pool[T]) BlockCount() int {
	return p.liveCount()
}

func (p *Pool[T]) liveCount() int {
	total := 0
	for _, u := range p.chunkUsed {
		total += u
	}
	return total
}

func (p *Pool[T]) growByOneChunk() error {
	chunk := make([]T, p.params.BlocksPerChunk)
	idx := len(p.chunks)
	p.chunks = append(p.chunks, chunk)
	p.chunkUsed = append(p.chunkUsed, 0)
	for i := range chunk {
		blk := &chunk[i]
		p.ownerOf[blk] = idx
		p.free = append(p.free, blk)
	}
	p.metrics.IncPoolChunksAllocated()
	return nil
}

// dropChunk removes a fully-empty chunk and every free-list entry that
// pointed into it, so the backing array becomes collectible.
func (p *Pool[T]) dropChunk(idx int) {
	kept := p.free[:0]
	for _, blk := range p.free {
		if p.ownerOf[blk] == idx {
			delete(p.ownerOf, blk)
			continue
		}
		kept = append(kept, blk)
	}
	p.free = kept

	last := len(p.chunks) - 1
	p.chunks[idx] = p.chunks[last]
	p.chunkUsed[idx] = p.chunkUsed[last]
	p.chunks = p.chunks[:last]
	p.chunkUsed = p.chunkUsed[:last]
	if idx != last {
		// re-point owners (free or still in use) of the chunk we moved into idx
		moved := p.chunks[idx]
		for i := range moved {
			p.ownerOf[&moved[i]] = idx
		}
	}
	p.metrics.IncPoolChunksFreed()
}
