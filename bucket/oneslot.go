package bucket

import "github.com/morzhovets/momo/internal/momoerr"

type oneState uint8

const (
	oneEmpty oneState = iota
	oneFull
	oneRemoved
)

// OneSlot is the OneI bucket policy of spec.md §4.3: max_count=1, one
// item stored in place plus a state byte. was-full is state != empty.
// Used when the item is cheap and the table is tuned for a high load
// factor.
type OneSlot[Item any] struct {
	state   oneState
	wasFull bool
	item    Item
}

// NewOneSlot constructs an empty OneSlot bucket.
func NewOneSlot[Item any]() *OneSlot[Item] {
	return &OneSlot[Item]{}
}

func (b *OneSlot[Item]) MaxCount() int { return 1 }

func (b *OneSlot[Item]) Bounds() []Item {
	if b.state != oneFull {
		return nil
	}
	return []Item{b.item}
}

func (b *OneSlot[Item]) Find(pred func(Item) bool, _ uint64) (int, bool) {
	if b.state == oneFull && pred(b.item) {
		return 0, true
	}
	return -1, false
}

func (b *OneSlot[Item]) Add(create func() Item, _ uint64, _ uint8, _ int) (int, error) {
	if b.state == oneFull {
		momoerr.AssertionFailure("OneSlot: Add called on a full bucket")
	}
	b.item = create()
	b.state = oneFull
	b.wasFull = true
	return 0, nil
}

func (b *OneSlot[Item]) Remove(idx int, replace func(last, removed Item) Item) {
	if idx != 0 || b.state != oneFull {
		momoerr.AssertionFailure("OneSlot: Remove called on an empty bucket")
	}
	var zero Item
	b.item = zero
	b.state = oneRemoved
}

func (b *OneSlot[Item]) IsFull() bool { return b.state == oneFull }

func (b *OneSlot[Item]) WasFull() bool { return b.wasFull }

func (b *OneSlot[Item]) Clear() {
	var zero Item
	b.item = zero
	b.state = oneEmpty
	b.wasFull = false
}
