// Package hashing provides the content hashing primitives used for
// cycle detection during container recursion (spec §4.8) and for
// identity/integrity hashing of analyzed artifacts. The fast path
// mirrors the teacher's xxhash-first, cryptographic-hash-on-demand
// pattern from its content store.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hasher is the external-collaborator hash interface from spec §6: any
// caller may supply their own Sum implementation (e.g. a FIPS-approved
// build) in place of the default SHA-256 one.
type Hasher interface {
	Sum(data []byte) string
}

// SHA256Hasher is the default Hasher, used for TriagedArtifact.sha256.
// Container recursion does not call it: cycle detection there relies on
// FastHash alone (see SeenSet).
type SHA256Hasher struct{}

func (SHA256Hasher) Sum(data []byte) string { return SHA256Hex(data) }

// FastHash returns a 64-bit xxhash digest, cheap enough to call on every
// container child before deciding whether a full SHA-256 is worthwhile.
func FastHash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest, used for
// the artifact's stable content identity.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SeenSet tracks FastHash values observed during a single recursive
// container walk, used to break cycles (spec §4.8 edge case: a
// self-referential or looped archive must not recurse forever). A digest
// counts as seen anywhere in the walk, not only among a child's
// ancestors, and a repeat is not confirmed with SHA-256.
type SeenSet struct {
	hashes map[uint64]struct{}
}

// NewSeenSet returns an empty cycle-detection set.
func NewSeenSet() *SeenSet {
	return &SeenSet{hashes: make(map[uint64]struct{})}
}

// Visit records data's fast hash and reports whether it had already been
// seen in this walk.
func (s *SeenSet) Visit(data []byte) (alreadySeen bool) {
	h := FastHash(data)
	if _, ok := s.hashes[h]; ok {
		return true
	}
	s.hashes[h] = struct{}{}
	return false
}
