// Package strings implements string extraction, IOC classification, and
// language routing from spec §4.5. Files that need the standard
// "strings" package import it as gostrings to avoid colliding with this
// package's name.
package strings

import (
	"time"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/types"
)

func isPrintableASCII(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == '\t'
}

// ExtractASCII scans data for printable-byte runs of at least minLength,
// bounded by maxScanBytes and a soft time guard (spec §4.5).
func ExtractASCII(data []byte, minLength, maxScanBytes int, timeGuard time.Duration) (samples []string, truncated bool) {
	if len(data) > maxScanBytes {
		data = data[:maxScanBytes]
	}
	deadline := time.Now().Add(timeGuard)
	start := -1
	checkEvery := 4096
	for i := 0; i <= len(data); i++ {
		if i%checkEvery == 0 && time.Now().After(deadline) {
			truncated = true
			break
		}
		printable := i < len(data) && isPrintableASCII(data[i])
		if printable {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			if i-start >= minLength {
				samples = append(samples, string(data[start:i]))
			}
			start = -1
		}
	}
	return samples, truncated
}

// ExtractUTF16 scans data for printable-ASCII-interleaved-with-zero runs
// in the given byte order, per spec §4.5.
func ExtractUTF16(data []byte, minLength, maxScanBytes int, little bool, timeGuard time.Duration) (samples []string, truncated bool) {
	if len(data) > maxScanBytes {
		data = data[:maxScanBytes]
	}
	deadline := time.Now().Add(timeGuard)
	var cur []byte
	flush := func(endIdx int) {
		if len(cur) >= minLength {
			samples = append(samples, string(cur))
		}
		cur = nil
	}
	step := 2
	for i := 0; i+1 < len(data); i += step {
		if (i/step)%2048 == 0 && time.Now().After(deadline) {
			truncated = true
			break
		}
		var ch byte
		var zero byte
		if little {
			ch, zero = data[i], data[i+1]
		} else {
			zero, ch = data[i], data[i+1]
		}
		if zero == 0 && isPrintableASCII(ch) {
			cur = append(cur, ch)
			continue
		}
		flush(i)
	}
	flush(len(data))
	return samples, truncated
}

// Extracted bundles the three encodings' extraction results for one
// input slice.
type Extracted struct {
	ASCII     []string
	UTF16LE   []string
	UTF16BE   []string
	Truncated bool
}

// Extract runs all three encodings over data and keeps every run found;
// Summarize applies the MaxSamples cap, in extraction order.
func Extract(data []byte, minLength int, cfg config.StringsConfig) Extracted {
	guard := time.Duration(cfg.TimeGuardMs) * time.Millisecond
	ascii, t1 := ExtractASCII(data, minLength, cfg.MaxScanBytes, guard)
	le, t2 := ExtractUTF16(data, minLength, cfg.MaxScanBytes, true, guard)
	be, t3 := ExtractUTF16(data, minLength, cfg.MaxScanBytes, false, guard)
	return Extracted{ASCII: ascii, UTF16LE: le, UTF16BE: be, Truncated: t1 || t2 || t3}
}

// Summarize builds a types.StringsSummary from extraction results,
// retaining at most cfg.MaxSamples samples in extraction order.
func Summarize(ext Extracted, cfg config.StringsConfig) types.StringsSummary {
	s := types.StringsSummary{
		ASCIICount:   len(ext.ASCII),
		UTF16LECount: len(ext.UTF16LE),
		UTF16BECount: len(ext.UTF16BE),
	}
	add := func(value, encoding string) {
		if len(s.Samples) >= cfg.MaxSamples {
			return
		}
		s.Samples = append(s.Samples, types.StringSample{Value: value, Encoding: encoding})
	}
	for _, v := range ext.ASCII {
		add(v, "ascii")
	}
	for _, v := range ext.UTF16LE {
		add(v, "utf16le")
	}
	for _, v := range ext.UTF16BE {
		add(v, "utf16be")
	}
	return s
}
