// Package similarity implements the Context-Triggered Piecewise Hash
// (CTPH) fuzzy digest and comparison described in spec §4.10: a rolling
// hash walks the input, block boundaries are declared when the rolling
// hash's low bits match a trigger mask, and each block folds into a
// short digest. Digests are compared by bigram-overlap similarity, with
// a Jaro-Winkler secondary metric (github.com/xrash/smetrics) used as a
// fast pre-filter before the full comparison.
package similarity

import (
	"strings"

	"github.com/xrash/smetrics"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Params configures digest construction (spec §6 similarity.*).
type Params struct {
	WindowSize int
	DigestSize int
	Precision  int
}

// RecommendedParams scales window/digest size with input length, the
// Go equivalent of the source's `ctph_recommended_params` helper.
func RecommendedParams(inputLen int) Params {
	switch {
	case inputLen < 4096:
		return Params{WindowSize: 4, DigestSize: 3, Precision: 6}
	case inputLen < 1<<20:
		return Params{WindowSize: 8, DigestSize: 4, Precision: 8}
	default:
		return Params{WindowSize: 16, DigestSize: 6, Precision: 10}
	}
}

// rollingHash is a simple polynomial rolling hash over a sliding window
// of the last size bytes (Params.WindowSize), per spec §4.10 step 1.
type rollingHash struct {
	window []byte
	size   int
	value  uint64
}

const polyBase uint64 = 257

func newRollingHash(size int) *rollingHash {
	return &rollingHash{window: make([]byte, 0, size), size: size}
}

func (h *rollingHash) push(b byte) {
	h.window = append(h.window, b)
	if len(h.window) > h.size {
		h.window = h.window[len(h.window)-h.size:]
	}
	var v uint64
	for _, c := range h.window {
		v = v*polyBase + uint64(c)
	}
	h.value = v
}

// Digest computes the CTPH digest string for data under the given
// Params.
func Digest(data []byte, p Params) string {
	if p.WindowSize <= 0 {
		p.WindowSize = 8
	}
	if p.DigestSize <= 0 {
		p.DigestSize = 4
	}
	if p.Precision <= 0 {
		p.Precision = 8
	}
	mask := uint64(1)<<uint(p.Precision) - 1

	var out strings.Builder
	roll := newRollingHash(p.WindowSize)
	var blockHash uint64
	blockLen := 0

	finalize := func() {
		idx := int(blockHash % uint64(len(alphabet)))
		out.WriteByte(alphabet[idx])
		blockHash = 0
		blockLen = 0
	}

	for _, b := range data {
		roll.push(b)
		blockHash = blockHash*31 + uint64(b)
		blockLen++
		if blockLen >= p.WindowSize && roll.value&mask == mask {
			finalize()
		}
	}
	if blockLen > 0 {
		finalize()
	}

	return out.String()
}

// bigrams returns the set of 2-character substrings of s.
func bigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+1 < len(s); i++ {
		set[s[i:i+2]] = struct{}{}
	}
	if len(s) == 1 {
		set[s] = struct{}{}
	}
	return set
}

// Similarity returns the Jaccard-like bigram-overlap ratio between two
// CTPH digests, in [0,1]. Reflexive (sim(x,x)=1) and symmetric.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	setA, setB := bigrams(a), bigrams(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// PreFilter runs a cheap Jaro-Winkler comparison (smetrics) to decide
// whether the full bigram-overlap Similarity is worth computing, useful
// when comparing one digest against a large corpus.
func PreFilter(a, b string, threshold float64) bool {
	return smetrics.JaroWinkler(a, b, 0.7, 4) >= threshold
}
