package symbols

import (
	"encoding/binary"
	"fmt"
	gostrings "strings"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	lcLoadDylib        = 0x0C
	lcRPath            = 0x8000001C
	lcCodeSignature    = 0x1D
	lcSegment64        = 0x19
	lcSymtab           = 0x02
	lcVersionMinMacOSX = 0x24
	lcVersionMinIOS    = 0x25
	lcVersionMinTvOS   = 0x2F
	lcVersionMinWatchOS = 0x30

	fatMagic    = 0xCAFEBABE
	fatMagic64  = 0xCAFEBABF
	fatCigamBE  = 0xBEBAFECA
	fatCigam64BE = 0xBFBAFECA
)

// SummarizeMachO walks a bounded Mach-O load command list, recovering
// linked libraries, rpaths, the LC_VERSION_MIN_* deployment target, and a
// coarse stripped/PIE determination, per spec §4.6. LC_CODE_SIGNATURE is
// recognized but its presence is not reported. Import symbols are not
// parsed, so the suspicious-import check runs over the dylib paths.
func SummarizeMachO(data []byte, acc *errors.Accumulator) *types.SymbolSummary {
	if len(data) < 4 {
		return nil
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	var bo binary.ByteOrder
	bits := 0
	switch magic {
	case 0xFEEDFACE:
		bo, bits = binary.LittleEndian, 32
	case 0xCEFAEDFE:
		bo, bits = binary.BigEndian, 32
	case 0xFEEDFACF:
		bo, bits = binary.LittleEndian, 64
	case 0xCFFAEDFE:
		bo, bits = binary.BigEndian, 64
	case fatMagic, fatMagic64, fatCigamBE, fatCigam64BE:
		acc.Add(types.ErrUnsupportedVariant, "Mach-O FAT/universal binary is not followed")
		return nil
	default:
		return nil
	}
	headerSize := 28
	if bits == 64 {
		headerSize = 32
	}
	if len(data) < headerSize {
		acc.Add(types.ErrShortRead, "Mach-O header truncated at %d bytes", len(data))
		return nil
	}
	fileType := bo.Uint32(data[12:16])
	ncmds := bo.Uint32(data[16:20])
	sizeofcmds := bo.Uint32(data[20:24])
	if uint64(headerSize)+uint64(sizeofcmds) > uint64(len(data)) {
		acc.Add(types.ErrIncoherentFields, "Mach-O sizeofcmds %d exceeds buffer", sizeofcmds)
	}

	var libs, rpaths []string
	haveSymtab := false
	haveCodeSig := false
	minOS := ""

	off := headerSize
	for i := uint32(0); i < ncmds && off+8 <= len(data); i++ {
		cmd := bo.Uint32(data[off : off+4])
		cmdsize := bo.Uint32(data[off+4 : off+8])
		if cmdsize < 8 || off+int(cmdsize) > len(data) {
			break
		}
		switch cmd {
		case lcLoadDylib:
			if off+24 <= len(data) {
				nameOff := bo.Uint32(data[off+8 : off+12])
				abs := off + int(nameOff)
				if abs < len(data) {
					libs = append(libs, cStringAt(data, abs))
				}
			}
		case lcRPath:
			if off+12 <= len(data) {
				pathOff := bo.Uint32(data[off+8 : off+12])
				abs := off + int(pathOff)
				if abs < len(data) {
					rpaths = append(rpaths, cStringAt(data, abs))
				}
			}
		case lcCodeSignature:
			haveCodeSig = true
		case lcSymtab:
			haveSymtab = true
		case lcVersionMinMacOSX, lcVersionMinIOS, lcVersionMinTvOS, lcVersionMinWatchOS:
			if off+12 <= len(data) {
				packed := bo.Uint32(data[off+8 : off+12])
				minOS = fmt.Sprintf("%d.%d.%d", packed>>16, (packed>>8)&0xFF, packed&0xFF)
			}
		}
		off += int(cmdsize)
	}

	var cleanLibs []string
	for _, l := range libs {
		if l != "" {
			cleanLibs = append(cleanLibs, l)
		}
	}

	const mhPIE = 0x00200000
	flags := uint32(0)
	if headerSize >= 28 && len(data) >= 28 {
		flags = bo.Uint32(data[24:28])
	}
	pie := flags&mhPIE != 0
	_ = fileType

	suspicious := SuspiciousImports(cleanLibs)

	summary := &types.SymbolSummary{
		LibsCount:          len(cleanLibs),
		Libs:               cleanLibs,
		Stripped:           !haveSymtab,
		SuspiciousImports:  suspicious,
		RPaths:             dedupStrings(rpaths),
		RelocationsPresent: false,
		MinOS:              minOS,
		Hardening: &types.HardeningFlags{
			PIE: boolPtr(pie),
		},
	}
	_ = haveCodeSig // not reported anywhere; the signing summary covers PE overlays only
	return summary
}

func dedupStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		lower := gostrings.ToLower(s)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, s)
	}
	return out
}
