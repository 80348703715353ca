package overlay

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatlabs/triage/internal/types"
)

func buildPEWithOneSection(rawOffset, rawSize uint32) []byte {
	buf := make([]byte, 512)
	copy(buf, []byte{'M', 'Z'})
	lfanew := 0x80
	binary.LittleEndian.PutUint32(buf[0x3C:0x40], uint32(lfanew))
	copy(buf[lfanew:], []byte{'P', 'E', 0, 0})
	coff := lfanew + 4
	binary.LittleEndian.PutUint16(buf[coff+2:coff+4], 1) // numberOfSections
	optSize := 112
	binary.LittleEndian.PutUint16(buf[coff+16:coff+18], uint16(optSize))
	opt := coff + 20
	binary.LittleEndian.PutUint32(buf[opt+0x3C:opt+0x40], 0x200) // SizeOfHeaders

	sectionOff := opt + optSize
	binary.LittleEndian.PutUint32(buf[sectionOff+16:sectionOff+20], rawSize)
	binary.LittleEndian.PutUint32(buf[sectionOff+20:sectionOff+24], rawOffset)
	return buf
}

func TestDetectNoOverlayWhenFileMatchesImage(t *testing.T) {
	header := buildPEWithOneSection(0x200, 0x100)
	full := make([]byte, 0x300)
	copy(full, header)
	assert.Nil(t, Detect(header, full))
}

func TestDetectFindsZIPOverlay(t *testing.T) {
	header := buildPEWithOneSection(0x200, 0x100)
	full := make([]byte, 0x400)
	copy(full, header)
	copy(full[0x300:], []byte{0x50, 0x4B, 0x03, 0x04})
	ov := Detect(header, full)
	require.NotNil(t, ov)
	assert.Equal(t, uint64(0x300), ov.Offset)
	assert.Equal(t, uint64(0x100), ov.Size)
	assert.Equal(t, types.OverlayZIP, ov.Format)
}

func TestSigningReflectsPKCS7(t *testing.T) {
	ov := &types.OverlayAnalysis{Format: types.OverlayPKCS7}
	s := Signing(ov)
	require.NotNil(t, s)
	assert.True(t, s.OverlayHasSignature)

	assert.Nil(t, Signing(nil))
}
