// Package symbols implements the per-format symbol/environment
// summarizer from spec §4.6: imports, exports, TLS, hardening bits, and
// suspicious-import matching across ELF, PE, and Mach-O.
package symbols

import (
	"github.com/greyhatlabs/triage/internal/demangle"
	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

// suspiciousNames is the builtin watchlist from spec §4.6, matched
// case-insensitively against import names actually present in the
// binary.
var suspiciousNames = map[string]struct{}{
	"createremotethread": {},
	"writeprocessmemory":  {},
	"virtualallocex":      {},
	"ptrace":              {},
	"mprotect":            {},
	"execve":              {},
}

func normalize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// SuspiciousImports filters importNames down to the ones on the builtin
// watchlist, normalized to lowercase before comparison.
func SuspiciousImports(importNames []string) []string {
	var out []string
	for _, n := range importNames {
		if _, ok := suspiciousNames[normalize(n)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Demangle best-effort-demangles every name in names using d, falling
// back to the original name on failure (spec §4.6).
func Demangle(d demangle.Demangler, names []string) []string {
	if d == nil {
		return names
	}
	out := make([]string, len(names))
	for i, n := range names {
		if res := d.DemangleOne(n); res != nil {
			out[i] = res.Demangled
		} else {
			out[i] = n
		}
	}
	return out
}

// Summarize dispatches to the format-specific summarizer for the
// detected format, returning nil for formats without a summarizer.
func Summarize(format types.Format, header []byte, acc *errors.Accumulator) *types.SymbolSummary {
	switch format {
	case types.FormatELF:
		return SummarizeELF(header, acc)
	case types.FormatPE:
		return SummarizePE(header, acc)
	case types.FormatMachO:
		return SummarizeMachO(header, acc)
	default:
		return nil
	}
}
