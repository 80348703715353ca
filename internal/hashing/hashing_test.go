package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastHashDeterministic(t *testing.T) {
	a := FastHash([]byte("hello"))
	b := FastHash([]byte("hello"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, FastHash([]byte("world")))
}

func TestSHA256HexKnownVector(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex([]byte("hello")))
}

func TestSHA256HasherMatchesSHA256Hex(t *testing.T) {
	var h Hasher = SHA256Hasher{}
	assert.Equal(t, SHA256Hex([]byte("hello")), h.Sum([]byte("hello")))
}

func TestSeenSetDetectsCycle(t *testing.T) {
	s := NewSeenSet()
	assert.False(t, s.Visit([]byte("a")))
	assert.True(t, s.Visit([]byte("a")))
	assert.False(t, s.Visit([]byte("b")))
}
