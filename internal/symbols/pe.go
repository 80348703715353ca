package symbols

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"sort"
	gostrings "strings"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	peDirExport    = 0
	peDirImport    = 1
	peDirDebug     = 6
	peDirBaseReloc = 5
	peDirTLS       = 9

	dllCharHighEntropyVA = 0x0020
	dllCharDynamicBase   = 0x0040
	dllCharNXCompat      = 0x0100
	dllCharGuardCF       = 0x4000

	imageDebugTypeCodeView = 2
)

type peLayout struct {
	bo         binary.ByteOrder
	bits       int
	optOff     int
	dirsOff    int
	numDirs    int
	sections   []peSection
	imageBase  uint64
}

type peSection struct {
	name           string
	virtualAddress uint32
	virtualSize    uint32
	rawOffset      uint32
}

func parsePELayout(data []byte) (peLayout, bool) {
	if len(data) < 0x40 || data[0] != 'M' || data[1] != 'Z' {
		return peLayout{}, false
	}
	lfanew := binary.LittleEndian.Uint32(data[0x3C:0x40])
	sigOff := int(lfanew)
	if sigOff+24 > len(data) || data[sigOff] != 'P' || data[sigOff+1] != 'E' {
		return peLayout{}, false
	}
	coffOff := sigOff + 4
	numSections := int(binary.LittleEndian.Uint16(data[coffOff+2 : coffOff+4]))
	optSize := int(binary.LittleEndian.Uint16(data[coffOff+16 : coffOff+18]))
	optOff := coffOff + 20
	if optOff+2 > len(data) {
		return peLayout{}, false
	}
	magic := binary.LittleEndian.Uint16(data[optOff : optOff+2])
	bits := 32
	dirsOff := optOff + 96
	if magic == 0x20B {
		bits = 64
		dirsOff = optOff + 112
	}
	l := peLayout{bo: binary.LittleEndian, bits: bits, optOff: optOff, dirsOff: dirsOff, numDirs: 16}
	if bits == 64 {
		if optOff+32 <= len(data) {
			l.imageBase = binary.LittleEndian.Uint64(data[optOff+24 : optOff+32])
		}
	} else {
		if optOff+32 <= len(data) {
			l.imageBase = uint64(binary.LittleEndian.Uint32(data[optOff+28 : optOff+32]))
		}
	}

	sectionTableOff := optOff + optSize
	for i := 0; i < numSections; i++ {
		off := sectionTableOff + i*40
		if off+40 > len(data) {
			break
		}
		name := gostrings.TrimRight(string(data[off:off+8]), "\x00")
		l.sections = append(l.sections, peSection{
			name:           name,
			virtualAddress: binary.LittleEndian.Uint32(data[off+12 : off+16]),
			virtualSize:    binary.LittleEndian.Uint32(data[off+8 : off+12]),
			rawOffset:      binary.LittleEndian.Uint32(data[off+20 : off+24]),
		})
	}
	return l, true
}

func (l peLayout) directory(data []byte, index int) (rva, size uint32, ok bool) {
	off := l.dirsOff + index*8
	if off+8 > len(data) {
		return 0, 0, false
	}
	rva = binary.LittleEndian.Uint32(data[off : off+4])
	size = binary.LittleEndian.Uint32(data[off+4 : off+8])
	return rva, size, rva != 0
}

// rvaToOffset maps a virtual address to a file offset using the section
// table, as the bounded header slice is not a loaded image.
func (l peLayout) rvaToOffset(rva uint32) (int, bool) {
	for _, s := range l.sections {
		if rva >= s.virtualAddress && rva < s.virtualAddress+s.virtualSize {
			return int(s.rawOffset + (rva - s.virtualAddress)), true
		}
	}
	return 0, false
}

func (l peLayout) entrySection(entryRVA uint32) string {
	for _, s := range l.sections {
		if entryRVA >= s.virtualAddress && entryRVA < s.virtualAddress+s.virtualSize {
			return s.name
		}
	}
	return ""
}

func cStringAt(data []byte, off int) string {
	if off < 0 || off >= len(data) {
		return ""
	}
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

type importEntry struct {
	dll  string
	name string
}

func readImports(data []byte, l peLayout) []importEntry {
	rva, _, ok := l.directory(data, peDirImport)
	if !ok {
		return nil
	}
	base, ok := l.rvaToOffset(rva)
	if !ok {
		return nil
	}
	var out []importEntry
	for descOff := base; descOff+20 <= len(data); descOff += 20 {
		origFirstThunk := binary.LittleEndian.Uint32(data[descOff : descOff+4])
		nameRVA := binary.LittleEndian.Uint32(data[descOff+12 : descOff+16])
		firstThunk := binary.LittleEndian.Uint32(data[descOff+16 : descOff+20])
		if origFirstThunk == 0 && nameRVA == 0 && firstThunk == 0 {
			break
		}
		dllNameOff, ok := l.rvaToOffset(nameRVA)
		if !ok {
			continue
		}
		dllName := cStringAt(data, dllNameOff)
		thunkRVA := origFirstThunk
		if thunkRVA == 0 {
			thunkRVA = firstThunk
		}
		thunkOff, ok := l.rvaToOffset(thunkRVA)
		if !ok {
			continue
		}
		entrySize := 4
		if l.bits == 64 {
			entrySize = 8
		}
		for t := thunkOff; t+entrySize <= len(data); t += entrySize {
			var thunkVal uint64
			if l.bits == 64 {
				thunkVal = binary.LittleEndian.Uint64(data[t : t+8])
			} else {
				thunkVal = uint64(binary.LittleEndian.Uint32(data[t : t+4]))
			}
			if thunkVal == 0 {
				break
			}
			ordinalFlag := uint64(1) << 63
			if l.bits == 32 {
				ordinalFlag = uint64(1) << 31
			}
			if thunkVal&ordinalFlag != 0 {
				out = append(out, importEntry{dll: dllName, name: ""})
				continue
			}
			hintNameOff, ok := l.rvaToOffset(uint32(thunkVal))
			if !ok {
				continue
			}
			name := cStringAt(data, hintNameOff+2)
			out = append(out, importEntry{dll: dllName, name: name})
		}
	}
	return out
}

func readExports(data []byte, l peLayout) []string {
	rva, _, ok := l.directory(data, peDirExport)
	if !ok {
		return nil
	}
	base, ok := l.rvaToOffset(rva)
	if !ok || base+40 > len(data) {
		return nil
	}
	numNames := binary.LittleEndian.Uint32(data[base+24 : base+28])
	namesRVA := binary.LittleEndian.Uint32(data[base+32 : base+36])
	namesOff, ok := l.rvaToOffset(namesRVA)
	if !ok {
		return nil
	}
	var out []string
	for i := uint32(0); i < numNames; i++ {
		off := namesOff + int(i)*4
		if off+4 > len(data) {
			break
		}
		nameRVA := binary.LittleEndian.Uint32(data[off : off+4])
		nameOff, ok := l.rvaToOffset(nameRVA)
		if !ok {
			continue
		}
		out = append(out, cStringAt(data, nameOff))
	}
	return out
}

func readTLSCallbacks(data []byte, l peLayout) []uint64 {
	rva, _, ok := l.directory(data, peDirTLS)
	if !ok {
		return nil
	}
	base, ok := l.rvaToOffset(rva)
	if !ok {
		return nil
	}
	var callbacksVA uint64
	if l.bits == 64 {
		if base+32 > len(data) {
			return nil
		}
		callbacksVA = binary.LittleEndian.Uint64(data[base+24 : base+32])
	} else {
		if base+12 > len(data) {
			return nil
		}
		callbacksVA = uint64(binary.LittleEndian.Uint32(data[base+12 : base+16]))
	}
	if callbacksVA == 0 {
		return nil
	}
	// callbacksVA is an absolute VA in the loaded image, not a file
	// offset; rebase against imageBase before walking the RVA table.
	if callbacksVA <= l.imageBase {
		return nil
	}
	arrayOff, ok := l.rvaToOffset(uint32(callbacksVA - l.imageBase))
	if !ok {
		return nil
	}
	entrySize := 4
	if l.bits == 64 {
		entrySize = 8
	}
	var out []uint64
	for off := arrayOff; off+entrySize <= len(data); off += entrySize {
		var va uint64
		if l.bits == 64 {
			va = binary.LittleEndian.Uint64(data[off : off+8])
		} else {
			va = uint64(binary.LittleEndian.Uint32(data[off : off+4]))
		}
		if va == 0 {
			break
		}
		out = append(out, va)
	}
	return out
}

// imphash hashes the sorted lowercase "dll.function" pairs, joined with
// commas, with MD5. Ordinal-only imports carry no name and are left out.
func imphash(imports []importEntry) string {
	if len(imports) == 0 {
		return ""
	}
	var parts []string
	for _, imp := range imports {
		dll := gostrings.ToLower(gostrings.TrimSuffix(gostrings.ToLower(imp.dll), ".dll"))
		name := imp.name
		if name == "" {
			continue
		}
		parts = append(parts, dll+"."+gostrings.ToLower(name))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	sum := md5.Sum([]byte(gostrings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// hasBaseRelocations reports whether the Base Relocation Directory
// (data directory index 5) is populated, used for relocations_present.
func hasBaseRelocations(data []byte, l peLayout) bool {
	_, _, ok := l.directory(data, peDirBaseReloc)
	return ok
}

// hasDebugInfo walks the Debug Directory (index 6) looking for a
// CodeView entry, the signal for a linked PDB path (spec §4.6).
func hasDebugInfo(data []byte, l peLayout) bool {
	rva, size, ok := l.directory(data, peDirDebug)
	if !ok {
		return false
	}
	base, ok := l.rvaToOffset(rva)
	if !ok {
		return false
	}
	const entrySize = 28
	end := base + int(size)
	for off := base; off+entrySize <= end && off+entrySize <= len(data); off += entrySize {
		typ := binary.LittleEndian.Uint32(data[off+12 : off+16])
		if typ == imageDebugTypeCodeView {
			return true
		}
	}
	return false
}

func dllCharacteristics(data []byte, l peLayout) (nx, aslr, cfg bool, ok bool) {
	off := l.optOff + 70
	if off+2 > len(data) {
		return false, false, false, false
	}
	flags := binary.LittleEndian.Uint16(data[off : off+2])
	nx = flags&dllCharNXCompat != 0
	aslr = flags&dllCharDynamicBase != 0
	cfg = flags&dllCharGuardCF != 0
	return nx, aslr, cfg, true
}

// PESectionNames returns the raw section names from a bounded PE header
// slice, used by the packer detector to match UPX/ASPack/etc. section
// markers without re-parsing the layout.
func PESectionNames(data []byte) []string {
	l, ok := parsePELayout(data)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(l.sections))
	for _, s := range l.sections {
		names = append(names, s.name)
	}
	return names
}

// SummarizePE parses the import/export/TLS directories and
// DllCharacteristics hardening bits from a bounded PE header slice, per
// spec §4.6.
func SummarizePE(data []byte, acc *errors.Accumulator) *types.SymbolSummary {
	l, ok := parsePELayout(data)
	if !ok {
		return nil
	}
	if len(l.sections) == 0 {
		acc.Add(types.ErrTruncated, "PE section table unavailable within bounded slice")
	}

	imports := readImports(data, l)
	libSet := map[string]struct{}{}
	var libs, importNames []string
	for _, imp := range imports {
		if imp.dll != "" {
			if _, seen := libSet[imp.dll]; !seen {
				libSet[imp.dll] = struct{}{}
				libs = append(libs, imp.dll)
			}
		}
		if imp.name != "" {
			importNames = append(importNames, imp.name)
		}
	}
	exports := readExports(data, l)
	tlsCallbacks := readTLSCallbacks(data, l)

	nx, aslr, cfgFlag, hardeningOK := dllCharacteristics(data, l)
	var hardening *types.HardeningFlags
	if hardeningOK {
		hardening = &types.HardeningFlags{NX: boolPtr(nx), ASLR: boolPtr(aslr), CFG: boolPtr(cfgFlag)}
	}

	var entrySection string
	if l.optOff+20 <= len(data) {
		entryRVA := binary.LittleEndian.Uint32(data[l.optOff+16 : l.optOff+20])
		entrySection = l.entrySection(entryRVA)
	}

	tlsCount := len(tlsCallbacks)
	summary := &types.SymbolSummary{
		ImportsCount:       len(importNames),
		ExportsCount:       len(exports),
		LibsCount:          len(libs),
		ImportNames:        importNames,
		ExportNames:        exports,
		Libs:               libs,
		EntrySection:       entrySection,
		TLSUsed:            len(tlsCallbacks) > 0,
		TLSCallbackCount:   &tlsCount,
		TLSCallbackVAs:     tlsCallbacks,
		DebugInfoPresent:   hasDebugInfo(data, l),
		RelocationsPresent: hasBaseRelocations(data, l),
		SuspiciousImports:  SuspiciousImports(importNames),
		Hardening:          hardening,
		ImpHash:            imphash(imports),
	}
	return summary
}
