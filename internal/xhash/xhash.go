// Package xhash provides the full-avalanche 64-bit mixer spec.md §9
// requires for shardmap dispatch ("implementers must hash through a
// full-avalanche mixer (e.g., xxHash-64 ...) and mask afterward"). It wraps
// github.com/cespare/xxhash/v2, the same hash family the teacher
// (Voskan/arena-cache) already pulls in transitively through badger.
//
// © 2025 corert authors. MIT License.
package xhash

import (
	"encoding/binary"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// uidKey is satisfied by any key that carries its own precomputed content
// hash (id.ResourceID, id.SubResourceID) rather than relying on its Go
// in-memory layout.
type uidKey interface {
	UID() uint64
}

// String mixes s through xxHash-64.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Bytes mixes b through xxHash-64.
func Bytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Uint64 mixes a 64-bit integer key through xxHash-64. Using the mixer
// instead of identity hashing matters here: pkg/shardmap's shard mask picks
// the low bits, and spec.md §9 is explicit that identity hashing on integer
// keys must never feed that mask.
func Uint64(v uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return xxhash.Sum64(buf[:])
}

// Any hashes an arbitrary comparable key by type-switching the common cases
// (string, []byte, fixed-width integers), deferring to UID() for any key
// that implements uidKey, and falling back to a byte-reinterpretation of the
// value's in-memory representation for other scalar/struct keys, mirroring
// the teacher's shard.hash approach in pkg/shard.go but using xxHash instead
// of maphash so the result is deterministic across processes.
//
// The UID() case exists because the byte-reinterpretation fallback is only
// sound for keys with no pointer-shaped fields: a key embedding a string
// hashes that string's (data pointer, length) header, not its contents, so
// two separately-constructed but Equal values — e.g. id.ResourceID built
// from two distinct string literals with the same text — would land in
// different shards. id.ResourceID and id.SubResourceID precompute a content
// hash for exactly this reason; Any must consult it instead of the raw bytes.
func Any[K comparable](key K) uint64 {
	switch k := any(key).(type) {
	case string:
		return String(k)
	case []byte:
		return Bytes(k)
	case int:
		return Uint64(uint64(k))
	case int32:
		return Uint64(uint64(k))
	case int64:
		return Uint64(uint64(k))
	case uint:
		return Uint64(uint64(k))
	case uint32:
		return Uint64(uint64(k))
	case uint64:
		return Uint64(k)
	case uidKey:
		return Uint64(k.UID())
	default:
		ptr := unsafe.Pointer(&key)
		size := unsafe.Sizeof(key)
		b := unsafe.Slice((*byte)(ptr), size)
		return Bytes(b)
	}
}
