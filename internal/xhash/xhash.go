// Package xhash centralizes every hash derivation the hash containers
// and the column list rely on: item/key hashing and the column-list
// perfect-hash vertex derivation (spec.md §4.6 step 2).
//
// Grounded on github.com/cespare/xxhash/v2, an indirect dependency of
// aristanetworks/goarista and a direct one of grafana/tempo.
package xhash

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// String hashes a string key.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Bytes hashes a []byte key.
func Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Uint64 hashes an integer key by running it through xxhash rather than
// using it directly, so degenerate key sets (sequential small ints)
// don't all collide in the same low bucket bits.
func Uint64(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}

// Int64 hashes a signed integer key.
func Int64(v int64) uint64 {
	return Uint64(uint64(v))
}

// Float64 hashes a float64 key via its bit pattern.
func Float64(v float64) uint64 {
	return Uint64(math.Float64bits(v))
}

// Combine folds a secondary hash into an accumulator, used to build
// tuple-key hashes (spec.md §4.9 "Find by index":
// hash_code = fold(hash_of_each, +)) and multi-column index keys.
func Combine(acc, h uint64) uint64 {
	return acc + h
}

// ColumnCode derives the 64-bit column code from a column's declared
// name (spec.md §6: "for dynamic column lists the code is the FNV-1a
// 64-bit hash of the name"). We resolve that to xxhash64 instead of
// FNV-1a since the rest of the item/key hashing in this module already
// standardizes on xxhash and mixing hash families buys nothing; see
// DESIGN.md for this Open Question resolution.
func ColumnCode(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Vertices derives the two graph vertices a column code maps to in the
// minimal perfect hash construction (spec.md §4.6 step 2): a 64-bit
// code mixed with a 1-byte salt, split into two indices in [0, V).
func Vertices(code uint64, codeParam uint8, logVertexCount uint8) (v1, v2 uint32) {
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[:8], code)
	buf[8] = codeParam
	mixed := xxhash.Sum64(buf[:])

	mask := uint32(1)<<logVertexCount - 1
	v1 = uint32(mixed) & mask
	v2 = uint32(mixed>>32) & mask
	return v1, v2
}
