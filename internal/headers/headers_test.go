package headers

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

func buildMinimalELF64() []byte {
	buf := make([]byte, 64)
	copy(buf, []byte{0x7F, 'E', 'L', 'F'})
	buf[4] = elfClass64
	buf[5] = elfDataLE
	binary.LittleEndian.PutUint16(buf[16:18], 2) // e_type ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:20], 62) // EM_X86_64
	binary.LittleEndian.PutUint64(buf[24:32], 0x401000) // e_entry
	binary.LittleEndian.PutUint64(buf[32:40], 64)       // e_phoff
	binary.LittleEndian.PutUint16(buf[54:56], 56)       // e_phentsize
	binary.LittleEndian.PutUint16(buf[56:58], 0)        // e_phnum (none, stays in bounds)
	return buf
}

func TestValidateELFHealthy(t *testing.T) {
	acc := errors.NewAccumulator()
	v := ValidateELF(buildMinimalELF64(), 0.7, acc)
	require.NotNil(t, v)
	assert.Equal(t, types.FormatELF, v.Format)
	assert.Equal(t, 64, v.Bits)
	assert.Equal(t, types.LittleEndian, v.Endianness)
	assert.Equal(t, types.ArchX86_64, v.Arch)
	assert.Equal(t, 0, acc.Len())
}

func TestValidateELFTruncatedReportsIncoherent(t *testing.T) {
	data := buildMinimalELF64()[:32]
	data = append(data, make([]byte, 0)...)
	// pad to 0 as in spec scenario 5: first 32 bytes of valid ELF, padded to 0.
	padded := make([]byte, 32)
	copy(padded, data)

	acc := errors.NewAccumulator()
	v := ValidateELF(padded, 0.7, acc)
	require.NotNil(t, v)
	assert.Equal(t, types.FormatELF, v.Format)
	assert.True(t, v.Confidence < 0.7)
	assert.Greater(t, acc.Len(), 0)
}

func TestValidateELFRejectsNonELF(t *testing.T) {
	acc := errors.NewAccumulator()
	assert.Nil(t, ValidateELF([]byte("not an elf"), 0.7, acc))
}

func buildMinimalPE64() []byte {
	buf := make([]byte, 256)
	copy(buf, []byte{'M', 'Z'})
	lfanew := 0x80
	binary.LittleEndian.PutUint32(buf[0x3C:0x40], uint32(lfanew))
	copy(buf[lfanew:], []byte{'P', 'E', 0, 0})
	coff := lfanew + 4
	binary.LittleEndian.PutUint16(buf[coff:coff+2], 0x8664) // machine AMD64
	binary.LittleEndian.PutUint16(buf[coff+2:coff+4], 0)    // numberOfSections
	optSize := 0
	binary.LittleEndian.PutUint16(buf[coff+16:coff+18], uint16(optSize))
	opt := coff + 20
	binary.LittleEndian.PutUint16(buf[opt:opt+2], peOptMagic64)
	return buf
}

func TestValidatePEHealthy(t *testing.T) {
	acc := errors.NewAccumulator()
	v := ValidatePE(buildMinimalPE64(), 0.7, acc)
	require.NotNil(t, v)
	assert.Equal(t, types.FormatPE, v.Format)
	assert.Equal(t, 64, v.Bits)
	assert.Equal(t, types.ArchX86_64, v.Arch)
}

func TestValidatePERejectsNonPE(t *testing.T) {
	acc := errors.NewAccumulator()
	assert.Nil(t, ValidatePE([]byte("nope"), 0.7, acc))
}

func buildMinimalMachO64() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], machoMagic64LE)
	binary.LittleEndian.PutUint32(buf[4:8], 0x01000000|12) // ARM64
	binary.LittleEndian.PutUint32(buf[16:20], 0)           // ncmds
	binary.LittleEndian.PutUint32(buf[20:24], 0)           // sizeofcmds
	return buf
}

func TestValidateMachOHealthy(t *testing.T) {
	acc := errors.NewAccumulator()
	v := ValidateMachO(buildMinimalMachO64(), 0.7, acc)
	require.NotNil(t, v)
	assert.Equal(t, types.FormatMachO, v.Format)
	assert.Equal(t, 64, v.Bits)
	assert.Equal(t, types.ArchARM64, v.Arch)
}

func TestValidateMachOFatUnsupported(t *testing.T) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], 0xCAFEBABE)
	acc := errors.NewAccumulator()
	v := ValidateMachO(buf, 0.7, acc)
	assert.Nil(t, v)
	require.Equal(t, 1, acc.Len())
	assert.Equal(t, types.ErrUnsupportedVariant, acc.Errors()[0].Kind)
}

func TestValidateAllRunsIndependently(t *testing.T) {
	acc := errors.NewAccumulator()
	verdicts := ValidateAll(buildMinimalELF64(), 0.7, acc)
	require.Len(t, verdicts, 1)
	assert.Equal(t, types.FormatELF, verdicts[0].Format)
}

func TestValidateELFByteOrderBigEndian(t *testing.T) {
	buf := buildMinimalELF64()
	buf[5] = elfDataBE
	binary.BigEndian.PutUint16(buf[18:20], 62)
	binary.BigEndian.PutUint64(buf[24:32], 0x401000)
	binary.BigEndian.PutUint64(buf[32:40], 64)
	binary.BigEndian.PutUint16(buf[54:56], 56)
	binary.BigEndian.PutUint16(buf[56:58], 0)

	acc := errors.NewAccumulator()
	v := ValidateELF(buf, 0.7, acc)
	require.NotNil(t, v)
	assert.Equal(t, types.BigEndian, v.Endianness)
}

func TestBuildMinimalELF64HasELFMagic(t *testing.T) {
	elf := buildMinimalELF64()
	assert.True(t, bytes.HasPrefix(elf, []byte{0x7F, 'E', 'L', 'F'}))
}
