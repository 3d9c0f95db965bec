// Package id implements the identifier varieties used across corert: a
// process-global monotonic counter and the normalized (type, path) resource
// identifier used by the resource manager.
//
// © 2025 corert authors. MIT License.
package id

import (
	"strings"
	"sync/atomic"
)

// Identifier is a 64-bit value unique within a process lifetime. No
// structure is implied; callers must not rely on ordering beyond
// monotonicity of allocation.
type Identifier uint64

// Source allocates fresh Identifiers. It is modeled as an explicit type
// (rather than a bare package-level counter) so that tests can substitute a
// deterministic source via the service locator, per spec.md §9's note on
// global mutable state.
type Source struct {
	next atomic.Uint64
}

// NewSource constructs a Source whose first allocation is 1 (0 is reserved
// to mean "no identifier").
func NewSource() *Source {
	s := &Source{}
	s.next.Store(0)
	return s
}

// Next returns a fresh, process-unique Identifier.
func (s *Source) Next() Identifier {
	return Identifier(s.next.Add(1))
}

const fnvOffset64 uint64 = 14695981039346656037
const fnvPrime64 uint64 = 1099511628211

// fnv1a64 computes the 64-bit FNV-1a hash of s, continuing from seed.
func fnv1a64(seed uint64, s string) uint64 {
	h := seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// ResourceID addresses a resource by a lower-cased type tag and a
// normalized, forward-slash path. Two ResourceIDs compare equal iff both
// normalized components are equal; a precomputed 64-bit hash backs fast
// lookups and hashing into shardmap keyspaces.
type ResourceID struct {
	Type string
	Path string
	uid  uint64
}

// NewResourceID normalizes typ and path per spec.md §6 and precomputes the
// FNV-1a-derived uid.
func NewResourceID(typ, path string) ResourceID {
	typ = strings.ToLower(typ)
	path = normalizePath(path)
	r := ResourceID{Type: typ, Path: path}
	r.uid = resourceUID(typ, path)
	return r
}

func resourceUID(typ, path string) uint64 {
	ht := fnv1a64(fnvOffset64, typ)
	hp := fnv1a64(fnvOffset64, path)
	return ht ^ uint64('\n') ^ hp
}

// normalizePath lower-cases the path, converts backslashes to forward
// slashes, collapses duplicate slashes, and strips a trailing slash.
func normalizePath(path string) string {
	path = strings.ToLower(path)
	path = strings.ReplaceAll(path, "\\", "/")
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// UID returns the precomputed 64-bit hash used for equality-free dispatch
// into hash-based containers.
func (r ResourceID) UID() uint64 { return r.uid }

// Equal reports whether two ResourceIDs address the same normalized
// resource.
func (r ResourceID) Equal(o ResourceID) bool {
	return r.Type == o.Type && r.Path == o.Path
}

// String renders the identifier as "type:path", useful for logging.
func (r ResourceID) String() string {
	return r.Type + ":" + r.Path
}

// SubKind distinguishes the two sub-resource addressing modes.
type SubKind uint8

const (
	// SubIndex addresses a sub-resource numerically.
	SubIndex SubKind = iota
	// SubKey addresses a sub-resource by string key.
	SubKey
)

// SubResourceID derives an identifier from a parent ResourceID plus a kind
// tag and either a numeric index or a string key.
type SubResourceID struct {
	Parent ResourceID
	Kind   string
	Index  int64
	Key    string
	uid    uint64
}

// NewSubResourceIndex derives a sub-resource identifier addressed by index.
func NewSubResourceIndex(parent ResourceID, kind string, index int64) SubResourceID {
	s := SubResourceID{Parent: parent, Kind: kind, Index: index}
	h := fnv1a64(parent.uid, kind)
	h = fnv1a64(h, "#idx#")
	h ^= uint64(index)*fnvPrime64 + fnvOffset64
	s.uid = h
	return s
}

// NewSubResourceKey derives a sub-resource identifier addressed by string
// key.
func NewSubResourceKey(parent ResourceID, kind, key string) SubResourceID {
	s := SubResourceID{Parent: parent, Kind: kind, Key: key}
	h := fnv1a64(parent.uid, kind)
	h = fnv1a64(h, "#key#")
	h = fnv1a64(h, key)
	s.uid = h
	return s
}

// UID returns the precomputed 64-bit hash for this sub-resource identifier.
func (s SubResourceID) UID() uint64 { return s.uid }
