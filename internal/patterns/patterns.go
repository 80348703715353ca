// Package patterns holds the process-wide, immutable regex pool used for
// IOC classification and mangled-symbol detection (spec §4.5/§4.6).
// Patterns are compiled once under a sync.Once guard and never mutated
// afterward, matching spec §9's "global regex pool" design note —
// grounded on the teacher's regex_analyzer package's lazy-compile idiom,
// simplified here since triage needs a fixed pattern set, not an LRU
// cache of user-supplied patterns.
package patterns

import (
	"regexp"
	"sync"
)

// Kind identifies one IOC/symbol pattern in the pool.
type Kind string

const (
	KindURL           Kind = "url"
	KindEmail         Kind = "email"
	KindHostname      Kind = "hostname"
	KindIPv4Candidate Kind = "ipv4_candidate"
	KindIPv6Candidate Kind = "ipv6_candidate"
	KindWindowsPath   Kind = "windows_path"
	KindUNCPath       Kind = "unc_path"
	KindPOSIXPath     Kind = "posix_path"
	KindRegistryKey   Kind = "registry_key"
	KindJavaClassPath Kind = "java_class_path"
	KindCIdentifier   Kind = "c_identifier"
	KindItaniumMangle Kind = "itanium_mangled"
	KindMSVCMangle    Kind = "msvc_mangled"
)

// OrderedKinds is the deterministic iteration order over the pool,
// matching the listing order in spec §4.5.
var OrderedKinds = []Kind{
	KindURL, KindEmail, KindHostname, KindIPv4Candidate, KindIPv6Candidate,
	KindWindowsPath, KindUNCPath, KindPOSIXPath, KindRegistryKey,
	KindJavaClassPath, KindCIdentifier, KindItaniumMangle, KindMSVCMangle,
}

var (
	once sync.Once
	pool map[Kind]*regexp.Regexp
)

func rawPatterns() map[Kind]string {
	return map[Kind]string{
		KindURL:           `\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>{}|\\^` + "`" + `]+`,
		KindEmail:         `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
		KindHostname:      `\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`,
		KindIPv4Candidate: `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
		KindIPv6Candidate: `\b(?:[0-9A-Fa-f]{1,4}:){2,7}[0-9A-Fa-f]{1,4}\b`,
		KindWindowsPath:   `\b[A-Za-z]:\\(?:[^\\/:*?"<>|\r\n]+\\)*[^\\/:*?"<>|\r\n]*`,
		KindUNCPath:       `\\\\[^\\/:*?"<>|\r\n]+(?:\\[^\\/:*?"<>|\r\n]+)+`,
		KindPOSIXPath:     `(?:/[^/\s:*?"<>|]+){2,}`,
		KindRegistryKey:   `\b(?:HKEY_[A-Z_]+|HKLM|HKCU|HKCR|HKU)\\[^\s"']+`,
		KindJavaClassPath: `\b[a-z][a-z0-9_]*(?:\.[a-z][a-z0-9_]*)+\.[A-Z][A-Za-z0-9_$]*\b`,
		KindCIdentifier:   `\b[A-Za-z_][A-Za-z0-9_]{2,}\b`,
		KindItaniumMangle: `\b_Z[A-Za-z0-9_$.]+`,
		KindMSVCMangle:    `\?[A-Za-z0-9_@$?]+@@[A-Za-z0-9_@$?]*`,
	}
}

func compileAll() {
	raw := rawPatterns()
	pool = make(map[Kind]*regexp.Regexp, len(raw))
	for kind, expr := range raw {
		pool[kind] = regexp.MustCompile(expr)
	}
}

// Get returns the precompiled pattern for kind, compiling the whole pool
// on first use. The returned *regexp.Regexp is shared and read-only.
func Get(kind Kind) *regexp.Regexp {
	once.Do(compileAll)
	return pool[kind]
}

// Entry pairs a pattern kind with its compiled regexp.
type Entry struct {
	Kind Kind
	Re   *regexp.Regexp
}

// All returns the pool in the deterministic order of OrderedKinds.
func All() []Entry {
	once.Do(compileAll)
	out := make([]Entry, 0, len(OrderedKinds))
	for _, k := range OrderedKinds {
		out = append(out, Entry{Kind: k, Re: pool[k]})
	}
	return out
}
