// Package containers implements archive/compressed-stream sniffing and
// the depth/fanout/byte-budgeted recursion engine from spec §4.8.
package containers

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/hashing"
	"github.com/greyhatlabs/triage/internal/types"
)

// Kind names the detected container/compressed-stream type.
type Kind string

const (
	KindZIP    Kind = "ZIP"
	KindTAR    Kind = "TAR"
	KindGZIP   Kind = "GZIP"
	KindBZIP2  Kind = "BZIP2"
	KindXZ     Kind = "XZ"
	KindSevenZ Kind = "SevenZip"
	KindRAR    Kind = "RAR"
	KindCAB    Kind = "CAB"
	KindAR     Kind = "AR"
	KindCPIO   Kind = "CPIO"
)

type magicRule struct {
	offset int
	magic  []byte
	kind   Kind
}

var magicRules = []magicRule{
	{0, []byte{0x50, 0x4B, 0x03, 0x04}, KindZIP},
	{0, []byte{0x50, 0x4B, 0x05, 0x06}, KindZIP},
	{257, []byte("ustar"), KindTAR},
	{0, []byte{0x1F, 0x8B}, KindGZIP},
	{0, []byte("BZh"), KindBZIP2},
	{0, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, KindXZ},
	{0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, KindSevenZ},
	{0, []byte("Rar!\x1A\x07"), KindRAR},
	{0, []byte("MSCF"), KindCAB},
	{0, []byte("!<arch>\n"), KindAR},
	{0, []byte{0xC7, 0x71}, KindCPIO},
	{0, []byte("070701"), KindCPIO},
}

// sniffWindow bounds the magic-detection window, enough to cover every
// rule's offset+magic length including TAR's 257.
const sniffWindow = 512

// Sniff detects a container/compressed-stream magic at offset 0 (or 257
// for TAR) within a bounded prefix, per spec §4.8.
func Sniff(data []byte) (Kind, bool) {
	prefix := data
	if len(prefix) > sniffWindow {
		prefix = prefix[:sniffWindow]
	}
	for _, r := range magicRules {
		end := r.offset + len(r.magic)
		if end > len(prefix) {
			continue
		}
		if bytes.Equal(prefix[r.offset:end], r.magic) {
			return r.kind, true
		}
	}
	return "", false
}

// Limits bounds the recursion engine per spec §4.8.
type Limits struct {
	MaxDepth      uint32
	MaxFanout     int
	MaxTotalBytes uint64
}

// budget tracks cumulative decompressed bytes and the cycle-detection
// set across an entire recursive walk. hitDepth/hitByte record whether
// a depth/fanout/byte-budget limit was reached anywhere in the walk;
// per spec §4.8 these are surfaced as Budgets flags, not errors.
type budget struct {
	limits     Limits
	seen       *hashing.SeenSet
	totalBytes uint64
	acc        *errors.Accumulator
	hitDepth   bool
	hitByte    bool
}

// zipMetadata reads ZIP central-directory metadata cheaply without
// decompressing member contents, per spec §4.8.
func zipMetadata(r *zip.Reader) *types.ContainerMetadata {
	count := len(r.File)
	var totalUncompressed, totalCompressed uint64
	for _, f := range r.File {
		totalUncompressed += f.UncompressedSize64
		totalCompressed += f.CompressedSize64
	}
	return &types.ContainerMetadata{
		FileCount:             &count,
		TotalUncompressedSize: &totalUncompressed,
		TotalCompressedSize:   &totalCompressed,
	}
}

// gzipMetadata reads the ISIZE trailer (uncompressed size modulo 2^32)
// when present, per spec §4.8.
func gzipMetadata(data []byte) *types.ContainerMetadata {
	if len(data) < 8 {
		return nil
	}
	isize := uint64(binary.LittleEndian.Uint32(data[len(data)-4:]))
	return &types.ContainerMetadata{TotalUncompressedSize: &isize}
}

// Recurse walks root's bytes for nested containers, breadth-first
// within a level and depth-first across levels, honoring limits and
// using content-hash cycle prevention (spec §4.8). Returns nil
// children if root is not itself a recognized container. hitDepth and
// hitByte report whether the walk hit the depth or fanout/byte budget
// anywhere in the tree; per spec §4.8 these are flags, not errors.
func Recurse(root []byte, limits Limits, acc *errors.Accumulator) (children []types.ContainerChild, hitDepth bool, hitByte bool) {
	b := &budget{limits: limits, seen: hashing.NewSeenSet(), acc: acc}
	node := expand(root, 0, b)
	if node == nil {
		return nil, b.hitDepth, b.hitByte
	}
	return []types.ContainerChild{*node}, b.hitDepth, b.hitByte
}

// expand classifies data as a container (if possible) and, within
// budget, lazily expands its immediate children.
func expand(data []byte, depth uint32, b *budget) *types.ContainerChild {
	kind, ok := Sniff(data)
	if !ok {
		return nil
	}
	child := &types.ContainerChild{TypeName: string(kind), Offset: 0, Size: uint64(len(data))}

	if depth >= b.limits.MaxDepth {
		b.hitDepth = true
		return child
	}

	switch kind {
	case KindZIP:
		r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			break
		}
		child.Metadata = zipMetadata(r)
		fanout := len(r.File)
		if fanout > b.limits.MaxFanout {
			b.hitByte = true
			fanout = b.limits.MaxFanout
		}
		var children []types.ContainerChild
		for i := 0; i < fanout; i++ {
			f := r.File[i]
			if b.totalBytes+f.UncompressedSize64 > b.limits.MaxTotalBytes {
				b.hitByte = true
				break
			}
			rc, err := f.Open()
			if err != nil {
				continue
			}
			content, err := io.ReadAll(io.LimitReader(rc, int64(f.UncompressedSize64)+1))
			rc.Close()
			if err != nil {
				continue
			}
			b.totalBytes += uint64(len(content))
			if b.seen.Visit(content) {
				b.acc.Add(types.ErrTruncated, "container child skipped: cycle detected")
				continue
			}
			if nested := expand(content, depth+1, b); nested != nil {
				children = append(children, *nested)
			}
		}
		child.Children = children

	case KindGZIP:
		child.Metadata = gzipMetadata(data)
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			break
		}
		content, err := io.ReadAll(io.LimitReader(r, int64(b.limits.MaxTotalBytes)+1))
		r.Close()
		if err != nil {
			break
		}
		if b.totalBytes+uint64(len(content)) > b.limits.MaxTotalBytes {
			b.hitByte = true
			break
		}
		b.totalBytes += uint64(len(content))
		if nested := expand(content, depth+1, b); nested != nil {
			child.Children = []types.ContainerChild{*nested}
		}
	}

	return child
}
