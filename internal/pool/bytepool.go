package pool

import (
	"github.com/morzhovets/momo/internal/config"
	"github.com/morzhovets/momo/internal/telemetry"
)

// BytePool is the "dynamic parameters" pool variant of spec.md §4.1:
// block size is fixed per BytePool instance but chosen at
// construction time rather than being a Go compile-time type, which is
// what the LimP-family bucket policies need for their per-size-class
// payload pools (one BytePool per size class 1..15, say, rather than
// one Pool[T] type per class).
type BytePool struct {
	blockSize int
	inner     *Pool[[]byte]
}

// NewBytePool builds a pool serving blocks of exactly blockSize bytes.
func NewBytePool(blockSize int, params config.PoolParams, metrics *telemetry.Metrics) *BytePool {
	return &BytePool{
		blockSize: blockSize,
		inner:     New[[]byte](params, metrics),
	}
}

// Allocate returns a handle to a zeroed slice of exactly BlockSize()
// bytes. The handle (not a copy of the slice header) must be passed
// back to Deallocate, since it is also this block's pool identity.
func (b *BytePool) Allocate() (*[]byte, error) {
	slot, err := b.inner.Allocate()
	if err != nil {
		return nil, err
	}
	if len(*slot) != b.blockSize {
		*slot = make([]byte, b.blockSize)
	} else {
		for i := range *slot {
			(*slot)[i] = 0
		}
	}
	return slot, nil
}

// Deallocate returns block to the pool. block must be the handle
// previously returned by Allocate.
func (b *BytePool) Deallocate(block *[]byte) {
	b.inner.Deallocate(block)
}

// BlockSize reports the fixed block size this pool serves.
func (b *BytePool) BlockSize() int { return b.blockSize }

// BlockCount reports live blocks.
func (b *BytePool) BlockCount() int { return b.inner.BlockCount() }
