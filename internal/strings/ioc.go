package strings

import (
	"net"
	"strconv"
	gostrings "strings"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/patterns"
	"github.com/greyhatlabs/triage/internal/types"
)

// Defang reverses common obfuscation tricks (hxxp://, [.] , (.)) so the
// IOC regexes can match, but only on strings shorter than 4 KiB per
// spec §4.5.
func Defang(s string) string {
	if len(s) >= 4096 {
		return s
	}
	s = gostrings.ReplaceAll(s, "hxxp://", "http://")
	s = gostrings.ReplaceAll(s, "hxxps://", "https://")
	s = gostrings.ReplaceAll(s, "[.]", ".")
	s = gostrings.ReplaceAll(s, "(.)", ".")
	return s
}

func isValidIPv4(s string) bool {
	parts := gostrings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return net.ParseIP(s) != nil
}

func isValidIPv6(s string) bool {
	return net.ParseIP(s) != nil && gostrings.Contains(s, ":")
}

// ClassifyIOCs applies the precompiled regex pool to one string and
// returns at most maxPerString matches, post-validating numeric
// candidates (IPv4/IPv6) as required by spec §4.5.
func ClassifyIOCs(s string, maxPerString int) []types.IOCSample {
	normalized := Defang(s)
	var out []types.IOCSample
	for _, entry := range patterns.All() {
		if len(out) >= maxPerString {
			break
		}
		matches := entry.Re.FindAllString(normalized, maxPerString-len(out))
		for _, m := range matches {
			switch entry.Kind {
			case patterns.KindIPv4Candidate:
				if !isValidIPv4(m) {
					continue
				}
			case patterns.KindIPv6Candidate:
				if !isValidIPv6(m) {
					continue
				}
			}
			out = append(out, types.IOCSample{Kind: string(entry.Kind), Value: m})
			if len(out) >= maxPerString {
				break
			}
		}
	}
	return out
}

// ClassifyAll runs IOC classification across a string slice, capping the
// global sample count at cfg.MaxIOCSamples and returning per-kind counts.
func ClassifyAll(strs []string, cfg config.StringsConfig) (counts map[string]int, samples []types.IOCSample) {
	counts = make(map[string]int)
	for _, s := range strs {
		for _, ioc := range ClassifyIOCs(s, cfg.MaxIOCPerString) {
			counts[ioc.Kind]++
			if len(samples) < cfg.MaxIOCSamples {
				samples = append(samples, ioc)
			}
		}
	}
	return counts, samples
}
