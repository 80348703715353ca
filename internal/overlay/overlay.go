// Package overlay implements the PE-only trailing-data detector from
// spec §4.7: compute the end of the mapped image from the section
// table, and sniff whatever bytes follow it in the file.
package overlay

import (
	"bytes"
	"encoding/binary"

	"github.com/greyhatlabs/triage/internal/types"
)

type peSection struct {
	rawOffset uint32
	rawSize   uint32
}

// endOfImage computes max(SizeOfHeaders, max(PointerToRawData+SizeOfRawData))
// from a bounded PE header+section-table slice.
func endOfImage(data []byte) (uint64, bool) {
	if len(data) < 0x40 || data[0] != 'M' || data[1] != 'Z' {
		return 0, false
	}
	lfanew := binary.LittleEndian.Uint32(data[0x3C:0x40])
	sigOff := int(lfanew)
	if sigOff+24 > len(data) || data[sigOff] != 'P' || data[sigOff+1] != 'E' {
		return 0, false
	}
	coffOff := sigOff + 4
	numSections := int(binary.LittleEndian.Uint16(data[coffOff+2 : coffOff+4]))
	optSize := int(binary.LittleEndian.Uint16(data[coffOff+16 : coffOff+18]))
	optOff := coffOff + 20
	if optOff+0x3C > len(data) {
		return 0, false
	}
	sizeOfHeaders := uint64(binary.LittleEndian.Uint32(data[optOff+0x3C : optOff+0x40]))

	end := sizeOfHeaders
	sectionTableOff := optOff + optSize
	for i := 0; i < numSections; i++ {
		off := sectionTableOff + i*40
		if off+40 > len(data) {
			break
		}
		rawSize := binary.LittleEndian.Uint32(data[off+16 : off+20])
		rawOffset := binary.LittleEndian.Uint32(data[off+20 : off+24])
		candidate := uint64(rawOffset) + uint64(rawSize)
		if candidate > end {
			end = candidate
		}
	}
	return end, true
}

// sniffTrailer classifies overlay bytes by the leading magic of the
// formats an overlay is expected to be: ZIP/CAB/7z/PKCS7.
func sniffTrailer(data []byte) types.OverlayFormat {
	switch {
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}),
		bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x05, 0x06}):
		return types.OverlayZIP
	case bytes.HasPrefix(data, []byte("MSCF")):
		return types.OverlayCAB
	case bytes.HasPrefix(data, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}):
		return types.OverlaySevenZip
	case bytes.HasPrefix(data, []byte{0x30, 0x82}): // DER SEQUENCE, typical PKCS#7 start
		return types.OverlayPKCS7
	default:
		return types.OverlayUnknown
	}
}

// Detect inspects a bounded PE header slice (headerData) against the
// full file bytes to determine whether trailing/overlay data is
// present, sniffing the bytes at the computed overlay offset to
// classify its format. Returns nil when the file is not PE or carries
// no overlay.
func Detect(headerData []byte, fullData []byte) *types.OverlayAnalysis {
	end, ok := endOfImage(headerData)
	fileSize := uint64(len(fullData))
	if !ok || fileSize <= end {
		return nil
	}
	return &types.OverlayAnalysis{
		Offset: end,
		Size:   fileSize - end,
		Format: sniffTrailer(fullData[end:]),
	}
}

// Signing derives the signing summary's overlay-has-signature bit from
// an OverlayAnalysis, per spec §4.7.
func Signing(overlay *types.OverlayAnalysis) *types.SigningSummary {
	if overlay == nil {
		return nil
	}
	return &types.SigningSummary{OverlayHasSignature: overlay.Format == types.OverlayPKCS7}
}
