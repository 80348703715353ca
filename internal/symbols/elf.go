package symbols

import (
	"encoding/binary"

	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

const (
	ptTLS      = 7
	ptGNUStack = 0x6474e551
	ptGNURELRO = 0x6474e552

	dtNeeded  = 1
	dtRPath   = 15
	dtRunPath = 29
	dtFlags1  = 0x6ffffffb
	df1PIE    = 0x08000000
	dtBindNow = 24
)

type elfLayout struct {
	bo                      binary.ByteOrder
	bits                    int
	etype                   uint16
	phoff, shoff            uint64
	phentsize, phnum        uint16
	shentsize, shnum, shstrndx uint16
}

func parseLayout(data []byte) (elfLayout, bool) {
	if len(data) < 16 || data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return elfLayout{}, false
	}
	bo := binary.ByteOrder(binary.LittleEndian)
	if data[5] == 2 {
		bo = binary.BigEndian
	}
	bits := 32
	if data[4] == 2 {
		bits = 64
	}
	l := elfLayout{bo: bo, bits: bits, etype: bo.Uint16(data[16:18])}
	if bits == 64 && len(data) >= 64 {
		l.phoff = bo.Uint64(data[32:40])
		l.shoff = bo.Uint64(data[40:48])
		l.phentsize = bo.Uint16(data[54:56])
		l.phnum = bo.Uint16(data[56:58])
		l.shentsize = bo.Uint16(data[58:60])
		l.shnum = bo.Uint16(data[60:62])
		l.shstrndx = bo.Uint16(data[62:64])
	} else if bits == 32 && len(data) >= 52 {
		l.phoff = uint64(bo.Uint32(data[28:32]))
		l.shoff = uint64(bo.Uint32(data[32:36]))
		l.phentsize = bo.Uint16(data[42:44])
		l.phnum = bo.Uint16(data[44:46])
		l.shentsize = bo.Uint16(data[46:48])
		l.shnum = bo.Uint16(data[48:50])
		l.shstrndx = bo.Uint16(data[50:52])
	} else {
		return elfLayout{}, false
	}
	return l, true
}

type elfSection struct {
	nameOff uint32
	typ     uint32
	offset  uint64
	size    uint64
}

func readSections(data []byte, l elfLayout) []elfSection {
	var out []elfSection
	for i := 0; i < int(l.shnum); i++ {
		off := int(l.shoff) + i*int(l.shentsize)
		if l.bits == 64 {
			if off+64 > len(data) {
				break
			}
			out = append(out, elfSection{
				nameOff: l.bo.Uint32(data[off : off+4]),
				typ:     l.bo.Uint32(data[off+4 : off+8]),
				offset:  l.bo.Uint64(data[off+24 : off+32]),
				size:    l.bo.Uint64(data[off+32 : off+40]),
			})
		} else {
			if off+40 > len(data) {
				break
			}
			out = append(out, elfSection{
				nameOff: l.bo.Uint32(data[off : off+4]),
				typ:     l.bo.Uint32(data[off+4 : off+8]),
				offset:  uint64(l.bo.Uint32(data[off+16 : off+20])),
				size:    uint64(l.bo.Uint32(data[off+20 : off+24])),
			})
		}
	}
	return out
}

func sectionName(data []byte, sections []elfSection, shstrndx int, nameOff uint32) string {
	if shstrndx < 0 || shstrndx >= len(sections) {
		return ""
	}
	strtab := sections[shstrndx]
	start := strtab.offset + uint64(nameOff)
	if start >= uint64(len(data)) {
		return ""
	}
	end := start
	for end < uint64(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[start:end])
}

func cString(data []byte, offset uint64) string {
	if offset >= uint64(len(data)) {
		return ""
	}
	end := offset
	for end < uint64(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}

type dynEntry struct {
	tag int64
	val uint64
}

type elfSymbol struct {
	name  uint32
	info  byte
	shndx uint16
}

// readDynsym parses the .dynsym entries (name offset, info, section
// index); symbolNamesByIndex resolves their names through .dynstr.
func readDynsym(data []byte, l elfLayout, sections []elfSection) []elfSymbol {
	var dynsym *elfSection
	for i := range sections {
		if sections[i].typ == 11 { // SHT_DYNSYM
			dynsym = &sections[i]
			break
		}
	}
	if dynsym == nil {
		return nil
	}
	entrySize := 24
	if l.bits == 32 {
		entrySize = 16
	}
	var out []elfSymbol
	for off := dynsym.offset; off+uint64(entrySize) <= dynsym.offset+dynsym.size && off+uint64(entrySize) <= uint64(len(data)); off += uint64(entrySize) {
		if l.bits == 64 {
			out = append(out, elfSymbol{
				name:  l.bo.Uint32(data[off : off+4]),
				info:  data[off+4],
				shndx: l.bo.Uint16(data[off+6 : off+8]),
			})
		} else {
			out = append(out, elfSymbol{
				name:  l.bo.Uint32(data[off : off+4]),
				info:  data[off+12],
				shndx: l.bo.Uint16(data[off+14 : off+16]),
			})
		}
	}
	return out
}

// symbolNamesByIndex resolves every dynsym entry's name via dynstr,
// indexed by symbol-table position (the index relocations reference
// through r_info's symbol field).
func symbolNamesByIndex(data []byte, syms []elfSymbol, dynstr *elfSection) []string {
	names := make([]string, len(syms))
	if dynstr == nil {
		return names
	}
	for i, s := range syms {
		names[i] = cString(data, dynstr.offset+uint64(s.name))
	}
	return names
}

const (
	shtRel  = 9
	shtRela = 4
)

// readRelocations builds the GOT/PLT map (r_offset -> symbol name) from
// every REL/RELA section, per spec §4.6.
func readRelocations(data []byte, l elfLayout, sections []elfSection, symNames []string) map[uint64]string {
	out := map[uint64]string{}
	for _, s := range sections {
		switch s.typ {
		case shtRel:
			entrySize := uint64(8)
			if l.bits == 64 {
				entrySize = 16
			}
			for off := s.offset; off+entrySize <= s.offset+s.size && off+entrySize <= uint64(len(data)); off += entrySize {
				readOneReloc(data, l, off, symNames, out)
			}
		case shtRela:
			entrySize := uint64(12)
			if l.bits == 64 {
				entrySize = 24
			}
			for off := s.offset; off+entrySize <= s.offset+s.size && off+entrySize <= uint64(len(data)); off += entrySize {
				readOneReloc(data, l, off, symNames, out)
			}
		}
	}
	return out
}

func readOneReloc(data []byte, l elfLayout, off uint64, symNames []string, out map[uint64]string) {
	var rOffset, rInfo uint64
	if l.bits == 64 {
		rOffset = l.bo.Uint64(data[off : off+8])
		rInfo = l.bo.Uint64(data[off+8 : off+16])
	} else {
		rOffset = uint64(l.bo.Uint32(data[off : off+4]))
		rInfo = uint64(l.bo.Uint32(data[off+4 : off+8]))
	}
	var symIdx uint64
	if l.bits == 64 {
		symIdx = rInfo >> 32
	} else {
		symIdx = rInfo >> 8
	}
	if symIdx == 0 || int(symIdx) >= len(symNames) {
		return
	}
	if name := symNames[symIdx]; name != "" {
		out[rOffset] = name
	}
}

func readDynamic(data []byte, l elfLayout, sections []elfSection) []dynEntry {
	var dyn *elfSection
	for i := range sections {
		if sections[i].typ == 6 { // SHT_DYNAMIC
			dyn = &sections[i]
			break
		}
	}
	if dyn == nil {
		return nil
	}
	entrySize := 16
	if l.bits == 32 {
		entrySize = 8
	}
	var out []dynEntry
	for off := dyn.offset; off+uint64(entrySize) <= dyn.offset+dyn.size && off+uint64(entrySize) <= uint64(len(data)); off += uint64(entrySize) {
		var tag int64
		var val uint64
		if l.bits == 64 {
			tag = int64(l.bo.Uint64(data[off : off+8]))
			val = l.bo.Uint64(data[off+8 : off+16])
		} else {
			tag = int64(l.bo.Uint32(data[off : off+4]))
			val = uint64(l.bo.Uint32(data[off+4 : off+8]))
		}
		if tag == 0 {
			break
		}
		out = append(out, dynEntry{tag: tag, val: val})
	}
	return out
}

// SummarizeELF parses dynamic symbols/libs, TLS, and hardening bits from
// a bounded ELF header slice, per spec §4.6.
func SummarizeELF(data []byte, acc *errors.Accumulator) *types.SymbolSummary {
	l, ok := parseLayout(data)
	if !ok {
		return nil
	}
	sections := readSections(data, l)
	if len(sections) == 0 {
		acc.Add(types.ErrTruncated, "ELF section header table unavailable within bounded slice")
	}

	var dynstr *elfSection
	haveSymtab := false
	haveDebugLink := false
	for i, s := range sections {
		name := sectionName(data, sections, int(l.shstrndx), s.nameOff)
		switch name {
		case ".dynstr":
			sec := sections[i]
			dynstr = &sec
		case ".symtab":
			haveSymtab = true
		case ".note.gnu.build-id", ".debug_link", ".debug_info":
			haveDebugLink = true
		}
	}

	dyn := readDynamic(data, l, sections)
	var libs, rpaths, runpaths []string
	pieFlag := false
	bindNow := false
	for _, d := range dyn {
		switch d.tag {
		case dtNeeded:
			if dynstr != nil {
				if name := cString(data, dynstr.offset+d.val); name != "" {
					libs = append(libs, name)
				}
			}
		case dtRPath:
			if dynstr != nil {
				rpaths = append(rpaths, cString(data, dynstr.offset+d.val))
			}
		case dtRunPath:
			if dynstr != nil {
				runpaths = append(runpaths, cString(data, dynstr.offset+d.val))
			}
		case dtFlags1:
			pieFlag = d.val&df1PIE != 0
		case dtBindNow:
			bindNow = true
		}
	}

	nx, relro, tlsUsed := false, false, false
	relroSegPresent := false
	for i := 0; i < int(l.phnum); i++ {
		off := int(l.phoff) + i*int(l.phentsize)
		if l.bits == 64 {
			if off+56 > len(data) {
				break
			}
			ptype := l.bo.Uint32(data[off : off+4])
			switch ptype {
			case ptGNUStack:
				flags := l.bo.Uint32(data[off+4 : off+8])
				nx = flags&1 == 0 // PF_X not set => stack non-executable
			case ptGNURELRO:
				relroSegPresent = true
			case ptTLS:
				tlsUsed = true
			}
		} else {
			if off+32 > len(data) {
				break
			}
			ptype := l.bo.Uint32(data[off : off+4])
			switch ptype {
			case ptGNUStack:
				flags := l.bo.Uint32(data[off+24 : off+28])
				nx = flags&1 == 0
			case ptGNURELRO:
				relroSegPresent = true
			case ptTLS:
				tlsUsed = true
			}
		}
	}
	relro = relroSegPresent && bindNow

	pie := l.etype == 3 && pieFlag // ET_DYN == 3

	suspicious := SuspiciousImports(libs)

	syms := readDynsym(data, l, sections)
	symNames := symbolNamesByIndex(data, syms, dynstr)
	var importNames, exportNames []string
	for i, s := range syms {
		name := symNames[i]
		if name == "" {
			continue
		}
		if s.shndx == 0 { // SHN_UNDEF: resolved from another object => import
			importNames = append(importNames, name)
			continue
		}
		binding := s.info >> 4
		if binding == 1 || binding == 2 { // STB_GLOBAL or STB_WEAK => externally visible
			exportNames = append(exportNames, name)
		}
	}
	gotplt := readRelocations(data, l, sections, symNames)

	summary := &types.SymbolSummary{
		ImportsCount:       len(importNames),
		ExportsCount:       len(exportNames),
		ImportNames:        importNames,
		ExportNames:        exportNames,
		LibsCount:          len(libs),
		Libs:               libs,
		Stripped:           !haveSymtab,
		TLSUsed:            tlsUsed,
		DebugInfoPresent:   haveDebugLink,
		SuspiciousImports:  suspicious,
		RelocationsPresent: hasRelocations(sections),
		RPaths:             rpaths,
		RunPaths:           runpaths,
		GOTPLT:             gotplt,
		Hardening: &types.HardeningFlags{
			NX:    boolPtr(nx),
			RELRO: boolPtr(relro),
			PIE:   boolPtr(pie),
		},
	}
	return summary
}

func hasRelocations(sections []elfSection) bool {
	for _, s := range sections {
		if s.typ == 9 || s.typ == 4 { // SHT_REL or SHT_RELA
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
