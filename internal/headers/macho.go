package headers

import (
	"encoding/binary"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	machoMagic32LE = 0xFEEDFACE
	machoMagic32BE = 0xCEFAEDFE
	machoMagic64LE = 0xFEEDFACF
	machoMagic64BE = 0xCFFAEDFE
)

// ValidateMachO recognizes the four Mach-O magics and walks the load
// command list bounded by sizeofcmds, per spec §4.3. FAT binaries are
// not followed (recorded as UnsupportedVariant per §4.6).
func ValidateMachO(data []byte, baseConfidence float64, acc *errors.Accumulator) *types.TriageVerdict {
	if len(data) < 4 {
		return nil
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	var bo binary.ByteOrder
	bits := 0
	switch magic {
	case machoMagic32LE:
		bo, bits = binary.LittleEndian, 32
	case machoMagic32BE:
		bo, bits = binary.BigEndian, 32
	case machoMagic64LE:
		bo, bits = binary.LittleEndian, 64
	case machoMagic64BE:
		bo, bits = binary.BigEndian, 64
	case 0xCAFEBABE, 0xBEBAFECA, 0xCAFEBABF, 0xBFBAFECA:
		acc.Add(types.ErrUnsupportedVariant, "Mach-O FAT binaries are not parsed")
		return nil
	default:
		return nil
	}

	endian := types.LittleEndian
	if bo == binary.BigEndian {
		endian = types.BigEndian
	}
	signals := []types.ConfidenceSignal{{Name: "magic", Score: 0.9}}

	headerSize := 28
	if bits == 64 {
		headerSize = 32
	}
	if len(data) < headerSize {
		acc.Add(types.ErrShortRead, "Mach-O header truncated at %d bytes", len(data))
		return &types.TriageVerdict{Format: types.FormatMachO, Bits: bits, Endianness: endian, Confidence: weighSignals(baseConfidence, signals), Signals: signals}
	}

	cputype := bo.Uint32(data[4:8])
	sizeofcmds := bo.Uint32(data[20:24])

	lcInBounds := uint64(headerSize)+uint64(sizeofcmds) <= uint64(len(data))
	if lcInBounds {
		signals = append(signals, types.ConfidenceSignal{Name: "lc_in_bounds", Score: 0.4})
	} else {
		signals = append(signals, types.ConfidenceSignal{Name: "lc_in_bounds", Score: -0.4})
		acc.Add(types.ErrIncoherentFields, "Mach-O sizeofcmds %d exceeds buffer", sizeofcmds)
	}

	return &types.TriageVerdict{
		Format:     types.FormatMachO,
		Arch:       machoCPUToArch(cputype),
		Bits:       bits,
		Endianness: endian,
		Confidence: weighSignals(baseConfidence, signals),
		Signals:    signals,
	}
}

func machoCPUToArch(cputype uint32) types.Arch {
	const abi64 = 0x01000000
	switch cputype &^ abi64 {
	case 7:
		if cputype&abi64 != 0 {
			return types.ArchX86_64
		}
		return types.ArchX86
	case 12:
		if cputype&abi64 != 0 {
			return types.ArchARM64
		}
		return types.ArchARM
	default:
		return types.ArchUnknown
	}
}
