package headers

import (
	"encoding/binary"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	elfClass32 = 1
	elfClass64 = 2
	elfDataLE  = 1
	elfDataBE  = 2
)

// ValidateELF parses the ELF identification and program headers from a
// bounded header slice, emitting the signals from spec §4.3.
func ValidateELF(data []byte, baseConfidence float64, acc *errors.Accumulator) *types.TriageVerdict {
	if len(data) < 4 || data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return nil
	}
	if len(data) < 16 {
		acc.Add(types.ErrShortRead, "ELF identification truncated at %d bytes", len(data))
		return &types.TriageVerdict{
			Format:     types.FormatELF,
			Confidence: baseConfidence * 0.1,
			Signals:    []types.ConfidenceSignal{{Name: "magic", Score: 0.9}},
		}
	}

	signals := []types.ConfidenceSignal{{Name: "magic", Score: 0.9}}

	class := data[4]
	dataEnc := data[5]
	bits := 0
	switch class {
	case elfClass32:
		bits = 32
	case elfClass64:
		bits = 64
	}
	endian := types.UnknownEndian
	switch dataEnc {
	case elfDataLE:
		endian = types.LittleEndian
	case elfDataBE:
		endian = types.BigEndian
	}

	classCoherent := bits != 0 && endian != types.UnknownEndian
	if classCoherent {
		signals = append(signals, types.ConfidenceSignal{Name: "class_coherent", Score: 0.6})
	} else {
		signals = append(signals, types.ConfidenceSignal{Name: "class_coherent", Score: -0.5})
		acc.Add(types.ErrIncoherentFields, "ELF e_ident class/data invalid: class=%d data=%d", class, dataEnc)
	}

	var bo binary.ByteOrder = binary.LittleEndian
	if endian == types.BigEndian {
		bo = binary.BigEndian
	}

	arch := types.ArchUnknown
	phdrInBounds := false
	entryInSegment := false
	headerTruncated := false

	if classCoherent && bits == 64 && len(data) >= 64 {
		e := parseELF64(data, bo)
		arch = elfMachineToArch(e.machine)
		phdrInBounds = e.phoff+uint64(e.phentsize)*uint64(e.phnum) <= uint64(len(data)) || e.phnum == 0
		entryInSegment = e.entry != 0
	} else if classCoherent && bits == 32 && len(data) >= 52 {
		e := parseELF32(data, bo)
		arch = elfMachineToArch(e.machine)
		phdrInBounds = e.phoff+uint32(e.phentsize)*uint32(e.phnum) <= uint32(len(data)) || e.phnum == 0
		entryInSegment = e.entry != 0
	} else if classCoherent {
		headerTruncated = true
		acc.Add(types.ErrShortRead, "ELF header truncated for %d-bit class", bits)
	}

	if phdrInBounds {
		signals = append(signals, types.ConfidenceSignal{Name: "phdr_in_bounds", Score: 0.3})
	} else {
		signals = append(signals, types.ConfidenceSignal{Name: "phdr_in_bounds", Score: -0.4})
		acc.Add(types.ErrIncoherentFields, "ELF program header table out of bounds")
	}
	if entryInSegment {
		signals = append(signals, types.ConfidenceSignal{Name: "entry_in_segment", Score: 0.2})
	} else {
		signals = append(signals, types.ConfidenceSignal{Name: "entry_in_segment", Score: -0.1})
	}

	confidence := weighSignals(baseConfidence, signals)
	if headerTruncated {
		confidence = baseConfidence * 0.1
	}
	return &types.TriageVerdict{
		Format:     types.FormatELF,
		Arch:       arch,
		Bits:       bits,
		Endianness: endian,
		Confidence: confidence,
		Signals:    signals,
	}
}

type elf64Header struct {
	machine            uint16
	entry              uint64
	phoff              uint64
	phentsize, phnum   uint16
}

type elf32Header struct {
	machine          uint16
	entry            uint32
	phoff            uint32
	phentsize, phnum uint16
}

func parseELF64(data []byte, bo binary.ByteOrder) elf64Header {
	return elf64Header{
		machine:   bo.Uint16(data[18:20]),
		entry:     bo.Uint64(data[24:32]),
		phoff:     bo.Uint64(data[32:40]),
		phentsize: bo.Uint16(data[54:56]),
		phnum:     bo.Uint16(data[56:58]),
	}
}

func parseELF32(data []byte, bo binary.ByteOrder) elf32Header {
	return elf32Header{
		machine:   bo.Uint16(data[18:20]),
		entry:     bo.Uint32(data[24:28]),
		phoff:     bo.Uint32(data[28:32]),
		phentsize: bo.Uint16(data[42:44]),
		phnum:     bo.Uint16(data[44:46]),
	}
}

func elfMachineToArch(m uint16) types.Arch {
	switch m {
	case 3:
		return types.ArchX86
	case 62:
		return types.ArchX86_64
	case 40:
		return types.ArchARM
	case 183:
		return types.ArchARM64
	case 8:
		return types.ArchMIPS
	case 20:
		return types.ArchPPC
	case 21:
		return types.ArchPPC64
	case 243:
		return types.ArchRISCV
	default:
		return types.ArchUnknown
	}
}
