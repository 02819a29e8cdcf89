// Package momoerr declares the error vocabulary of spec.md §7. Go has
// no exceptions, so the spec's "propagated"/"thrown"/"surfaced" error
// kinds map onto typed sentinel and wrapped errors, compared with
// errors.Is/errors.As, the way the rest of the pack reports failure
// (no panics anywhere in aristanetworks/goarista's public surface
// except through its own glog.Fatal). AssertionFailure is the one
// exception: spec.md calls it "detected invariant break (impossible
// without memory corruption); fatal", mirroring the teacher's
// runtimer.Throw on a broken hmap invariant.
package momoerr

import (
	"errors"
	"fmt"

	"github.com/aristanetworks/glog"
)

// ErrOutOfMemory is returned when the underlying memory pool cannot
// grow (spec.md §4.1, §7).
var ErrOutOfMemory = errors.New("momo: out of memory")

// ErrTooManyCollisions is returned by dynamic column list construction
// when no code_param yields a valid offset assignment (spec.md §4.6
// step 5, §7).
var ErrTooManyCollisions = errors.New("momo: too many collisions building column list perfect hash")

// ErrVersionCheckFailed is returned when a row reference, selection
// iterator, or hash table iterator is used after the version counter
// it captured has moved on (spec.md §7, §8 S6).
var ErrVersionCheckFailed = errors.New("momo: stale version, underlying container was mutated")

// ErrInvalidArgument wraps a violated precondition on a public API
// (spec.md §7): insert_row(n, ...) with n > count, adding an index over
// a mutable column, removing a row that belongs to a different table.
type ErrInvalidArgument struct {
	Reason string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("momo: invalid argument: %s", e.Reason)
}

// InvalidArgument builds an ErrInvalidArgument with the given reason.
func InvalidArgument(reason string) error {
	return &ErrInvalidArgument{Reason: reason}
}

// IndexDescriptor is the minimal identity of an index a
// UniqueIndexViolation points back to, kept here (rather than in
// package index) so this package has no import cycle back into index.
type IndexDescriptor interface {
	// Name is a caller-assigned label for the index (e.g. the joined
	// column names), used only for diagnostics.
	Name() string
}

// UniqueIndexViolation is raised by any mutation that would leave two
// rows with equal keys in a unique index (spec.md §7). It carries the
// offending index and an opaque handle to the row that already holds
// the key, typed as `any` here since the concrete row-reference type
// lives in package row and would otherwise create an import cycle.
type UniqueIndexViolation struct {
	Index    IndexDescriptor
	Existing any
}

func (e *UniqueIndexViolation) Error() string {
	if e.Index == nil {
		return "momo: unique index violation"
	}
	return fmt.Sprintf("momo: unique index violation on %q", e.Index.Name())
}

// AsUniqueIndexViolation is a convenience errors.As wrapper.
func AsUniqueIndexViolation(err error) (*UniqueIndexViolation, bool) {
	var v *UniqueIndexViolation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// AssertionFailure logs the broken invariant via glog.Fatalf, which
// writes the message and terminates the process (os.Exit after the
// log flush) the same way the teacher's own fatal invariant breaks do.
// Only ever called from a code path spec.md §7 documents as
// "impossible without memory corruption" — this is not a recoverable
// error path, by design.
func AssertionFailure(format string, args ...any) {
	glog.Fatalf("momo: assertion failure: "+format, args...)
}
