// Package sniffers implements the content and extension hinters from
// spec §4.2: cheap, best-effort signals that feed the scoring model but
// never themselves parse a format.
package sniffers

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/greyhatlabs/triage/internal/types"
)

type magicRule struct {
	offset int
	magic  []byte
	mime   string
	label  string
	match  func([]byte) bool // optional, for variants a fixed prefix can't express
}

var machoMagics = [][]byte{
	{0xFE, 0xED, 0xFA, 0xCE}, // 32-bit BE
	{0xCE, 0xFA, 0xED, 0xFE}, // 32-bit LE
	{0xFE, 0xED, 0xFA, 0xCF}, // 64-bit BE
	{0xCF, 0xFA, 0xED, 0xFE}, // 64-bit LE
}

var magicRules = []magicRule{
	{offset: 0, magic: []byte{0x7F, 'E', 'L', 'F'}, mime: "application/x-elf", label: "ELF"},
	{offset: 0, magic: []byte{'M', 'Z'}, mime: "application/vnd.microsoft.portable-executable", label: "PE"},
	{offset: 0, magic: []byte{'P', 'K', 0x03, 0x04}, mime: "application/zip", label: "ZIP"},
	{offset: 0, magic: []byte{0x1F, 0x8B}, mime: "application/gzip", label: "GZIP"},
	{offset: 0, magic: []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, mime: "application/x-xz", label: "XZ"},
	{offset: 0, magic: []byte{'B', 'Z', 'h'}, mime: "application/x-bzip2", label: "BZIP2"},
	{offset: 257, magic: []byte{'u', 's', 't', 'a', 'r'}, mime: "application/x-tar", label: "TAR"},
	{offset: 0, magic: []byte{0x00, 'a', 's', 'm'}, mime: "application/wasm", label: "WASM"},
	{offset: 0, magic: []byte{0xCA, 0xFE, 0xBA, 0xBE}, mime: "application/java-vm", label: "Java"},
	{offset: 0, magic: nil, mime: "application/x-mach-object", label: "MachO", match: matchMachO},
	{offset: 0, magic: nil, mime: "application/x-python-code", label: "Python", match: matchPythonBytecode},
}

func matchMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	for _, m := range machoMagics {
		if bytes.Equal(data[:4], m) {
			return true
		}
	}
	return false
}

// matchPythonBytecode accepts any prefix whose bytes 2-3 are "0D 0A", the
// fixed tail shared by CPython bytecode magic numbers. The
// version-specific first two bytes are not checked, so this is a
// best-effort check that does not tell Python versions apart.
func matchPythonBytecode(data []byte) bool {
	return len(data) >= 4 && data[2] == 0x0D && data[3] == 0x0A
}

// Content sniffs the first len(prefix) bytes (bounded to MAX_SNIFF_SIZE by
// the caller) and returns at most one hint, per spec §4.2.
func Content(prefix []byte) *types.TriageHint {
	for _, rule := range magicRules {
		if rule.match != nil {
			if rule.match(prefix) {
				return &types.TriageHint{Source: types.HintContent, MIME: rule.mime, Label: rule.label}
			}
			continue
		}
		if rule.offset+len(rule.magic) > len(prefix) {
			continue
		}
		if bytes.Equal(prefix[rule.offset:rule.offset+len(rule.magic)], rule.magic) {
			return &types.TriageHint{Source: types.HintContent, MIME: rule.mime, Label: rule.label}
		}
	}
	return nil
}

var extensionLabels = map[string]string{
	".elf":   "ELF",
	".so":    "ELF",
	".exe":   "PE",
	".dll":   "PE",
	".sys":   "PE",
	".dylib": "MachO",
	".app":   "MachO",
	".zip":   "ZIP",
	".jar":   "ZIP",
	".gz":    "GZIP",
	".tgz":   "GZIP",
	".xz":    "XZ",
	".bz2":   "BZIP2",
	".tar":   "TAR",
	".wasm":  "WASM",
	".class": "Java",
	".pyc":   "Python",
}

// Extension sniffs a file name's extension against a fixed label table.
func Extension(name string) *types.TriageHint {
	if name == "" {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	label, ok := extensionLabels[ext]
	if !ok {
		return nil
	}
	return &types.TriageHint{Source: types.HintExtension, Extension: ext, Label: label}
}

// Combined concatenates the content and extension hints, de-duplicating
// by (source, label) as required by spec §4.2.
func Combined(prefix []byte, name string) []types.TriageHint {
	var hints []types.TriageHint
	seen := make(map[string]struct{})
	add := func(h *types.TriageHint) {
		if h == nil {
			return
		}
		key := string(h.Source) + "|" + h.Label
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		hints = append(hints, *h)
	}
	add(Content(prefix))
	add(Extension(name))
	return hints
}
