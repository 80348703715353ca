// Package demangle provides the external-collaborator interface for
// C++/Rust symbol demangling described in spec §4.6, plus a best-effort
// built-in implementation for the two mangling schemes the pack's
// binaries are likely to carry: Itanium (GCC/Clang/Rust) and MSVC.
package demangle

import (
	"strconv"
	gostrings "strings"
)

// Flavor identifies which mangling scheme produced a Result.
type Flavor string

const (
	FlavorItanium Flavor = "itanium"
	FlavorMSVC    Flavor = "msvc"
	FlavorNone    Flavor = "none"
)

// Result carries a demangled name alongside the scheme that produced it.
type Result struct {
	Original   string
	Demangled  string
	Flavor     Flavor
}

// Demangler is the external-collaborator interface symbol summarizers
// call through. A real binary-analysis framework would wire this to a
// dedicated demangling library or subprocess; the built-in
// implementation here covers the common cases so the pipeline never
// blocks on an external dependency.
type Demangler interface {
	DemangleOne(name string) *Result
}

// Builtin demangles Itanium (_Z...) and MSVC (?...) mangled names using
// simplified, best-effort parsers. Anything it can't confidently parse
// is returned unchanged with FlavorNone.
type Builtin struct{}

func (Builtin) DemangleOne(name string) *Result {
	switch {
	case gostrings.HasPrefix(name, "_Z"):
		if d, ok := demangleItanium(name); ok {
			return &Result{Original: name, Demangled: d, Flavor: FlavorItanium}
		}
	case gostrings.HasPrefix(name, "?"):
		if d, ok := demangleMSVC(name); ok {
			return &Result{Original: name, Demangled: d, Flavor: FlavorMSVC}
		}
	}
	return &Result{Original: name, Demangled: name, Flavor: FlavorNone}
}

// demangleItanium handles the common unqualified and nested-name forms:
// _Z<len><name>... and _ZN<len><name>...<len><name>E. It does not
// attempt template or function-argument demangling.
func demangleItanium(name string) (string, bool) {
	rest := name[2:]
	if rest == "" {
		return "", false
	}
	if rest[0] == 'N' {
		rest = rest[1:]
		var parts []string
		for len(rest) > 0 && rest[0] != 'E' {
			n, consumed, ok := readLengthPrefixed(rest)
			if !ok {
				return "", false
			}
			parts = append(parts, n)
			rest = rest[consumed:]
		}
		if len(parts) == 0 {
			return "", false
		}
		return gostrings.Join(parts, "::"), true
	}
	n, _, ok := readLengthPrefixed(rest)
	if !ok {
		return "", false
	}
	return n, true
}

func readLengthPrefixed(s string) (value string, consumed int, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n <= 0 || i+n > len(s) {
		return "", 0, false
	}
	return s[i : i+n], i + n, true
}

// demangleMSVC strips the leading '?' and trailing '@@...' decoration to
// recover the plain identifier; MSVC's full calling-convention and
// type-encoding grammar is out of scope.
func demangleMSVC(name string) (string, bool) {
	rest := name[1:]
	if rest == "" {
		return "", false
	}
	if idx := gostrings.Index(rest, "@@"); idx > 0 {
		return rest[:idx], true
	}
	if idx := gostrings.IndexByte(rest, '@'); idx > 0 {
		return rest[:idx], true
	}
	return "", false
}
