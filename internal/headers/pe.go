package headers

import (
	"encoding/binary"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	peOptMagic32 = 0x10B
	peOptMagic64 = 0x20B
)

// ValidatePE validates the DOS stub, PE signature, COFF header, and
// section table bounds per spec §4.3.
func ValidatePE(data []byte, baseConfidence float64, acc *errors.Accumulator) *types.TriageVerdict {
	if len(data) < 2 || data[0] != 'M' || data[1] != 'Z' {
		return nil
	}
	signals := []types.ConfidenceSignal{{Name: "mz", Score: 0.6}}

	if len(data) < 0x40 {
		acc.Add(types.ErrShortRead, "PE DOS header truncated at %d bytes", len(data))
		return &types.TriageVerdict{Format: types.FormatPE, Confidence: weighSignals(baseConfidence, signals), Signals: signals}
	}
	lfanew := binary.LittleEndian.Uint32(data[0x3C:0x40])
	if uint64(lfanew)+4 > uint64(len(data)) {
		acc.Add(types.ErrIncoherentFields, "PE e_lfanew %d out of bounds", lfanew)
		return &types.TriageVerdict{Format: types.FormatPE, Confidence: weighSignals(baseConfidence, signals), Signals: signals}
	}
	sigOff := int(lfanew)
	if !(data[sigOff] == 'P' && data[sigOff+1] == 'E' && data[sigOff+2] == 0 && data[sigOff+3] == 0) {
		acc.Add(types.ErrBadMagic, "PE signature not found at offset %d", sigOff)
		return &types.TriageVerdict{Format: types.FormatPE, Confidence: weighSignals(baseConfidence, signals), Signals: signals}
	}
	signals = append(signals, types.ConfidenceSignal{Name: "pe_sig", Score: 0.7})

	coffOff := sigOff + 4
	if coffOff+20 > len(data) {
		acc.Add(types.ErrShortRead, "PE COFF header truncated")
		return &types.TriageVerdict{Format: types.FormatPE, Confidence: weighSignals(baseConfidence, signals), Signals: signals}
	}
	machine := binary.LittleEndian.Uint16(data[coffOff : coffOff+2])
	numSections := binary.LittleEndian.Uint16(data[coffOff+2 : coffOff+4])
	optSize := binary.LittleEndian.Uint16(data[coffOff+16 : coffOff+18])

	optOff := coffOff + 20
	bits := 0
	endian := types.LittleEndian
	if optOff+2 <= len(data) {
		optMagic := binary.LittleEndian.Uint16(data[optOff : optOff+2])
		switch optMagic {
		case peOptMagic32:
			bits = 32
			signals = append(signals, types.ConfidenceSignal{Name: "optional_magic", Score: 0.4})
		case peOptMagic64:
			bits = 64
			signals = append(signals, types.ConfidenceSignal{Name: "optional_magic", Score: 0.4})
		default:
			signals = append(signals, types.ConfidenceSignal{Name: "optional_magic", Score: -0.3})
			acc.Add(types.ErrIncoherentFields, "PE optional header magic 0x%X unrecognized", optMagic)
		}
	}

	sectionTableOff := optOff + int(optSize)
	sectionsCoherent := sectionTableOff >= 0 && sectionTableOff+int(numSections)*40 <= len(data)
	if sectionsCoherent {
		signals = append(signals, types.ConfidenceSignal{Name: "sections_coherent", Score: 0.3})
	} else {
		signals = append(signals, types.ConfidenceSignal{Name: "sections_coherent", Score: -0.4})
		acc.Add(types.ErrIncoherentFields, "PE section table out of bounds")
	}

	return &types.TriageVerdict{
		Format:     types.FormatPE,
		Arch:       peMachineToArch(machine),
		Bits:       bits,
		Endianness: endian,
		Confidence: weighSignals(baseConfidence, signals),
		Signals:    signals,
	}
}

func peMachineToArch(machine uint16) types.Arch {
	switch machine {
	case 0x014c:
		return types.ArchX86
	case 0x8664:
		return types.ArchX86_64
	case 0x01c0, 0x01c4:
		return types.ArchARM
	case 0xAA64:
		return types.ArchARM64
	default:
		return types.ArchUnknown
	}
}
