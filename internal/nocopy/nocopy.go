// Package nocopy provides a zero-size marker that makes go vet's
// copylocks analysis flag accidental copies of the struct embedding it.
package nocopy

// NoCopy embeds into a struct to document (and have vet enforce) that
// the struct must not be copied after first use.
type NoCopy struct{}

// Lock is a no-op; its only purpose is to satisfy sync.Locker so
// `go vet -copylocks` treats NoCopy as a lock and flags value copies.
func (*NoCopy) Lock() {}

// Unlock is a no-op, see Lock.
func (*NoCopy) Unlock() {}
