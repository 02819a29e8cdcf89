// Package freelist implements the table's "recycle bin" for raw row
// buffers (spec.md §4.7, §9): an atomic, lock-free singly linked stack
// that a Row dropped on any goroutine can push onto, and that the
// owning table drains (on its own goroutine) at the head of every
// new_row call (row.New).
//
// spec.md §9 notes a channel-of-handles would also satisfy the
// contract; we keep the stack shape since it is a direct port of the
// original and needs no goroutine to drain eagerly (each Push
// allocates one small node holding the value; the stack is not
// threaded through the values themselves), whereas a channel would need an
// unbounded buffer or a consumer goroutine that does not fit this
// library's synchronous, single-threaded-reader contract.
package freelist

import "sync/atomic"

type node[T any] struct {
	value T
	next  *node[T]
}

// Stack is a Treiber stack: concurrent Push from any goroutine,
// DrainAll collects everything pushed so far, oldest push first.
type Stack[T any] struct {
	head atomic.Pointer[node[T]]
}

// Push publishes value onto the stack. Safe to call concurrently with
// other Push calls and with DrainAll.
func (s *Stack[T]) Push(value T) {
	n := &node[T]{value: value}
	for {
		old := s.head.Load()
		n.next = old
		if s.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// DrainAll atomically steals the entire stack and returns its values
// in the order they were pushed (oldest first), matching spec.md's
// "drains the list... using an atomic exchange to steal the entire
// list".
func (s *Stack[T]) DrainAll() []T {
	head := s.head.Swap(nil)
	var reversed []T
	for n := head; n != nil; n = n.next {
		reversed = append(reversed, n.value)
	}
	// head is LIFO (most recent push first); reverse so DrainAll
	// yields push order, which is easier for callers/tests to reason
	// about and costs nothing extra (already O(n) from the walk).
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return reversed
}
