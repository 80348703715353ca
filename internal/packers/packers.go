// Package packers implements the signature-based packer detector from
// spec §4.7: a bounded scan of section names and string markers against
// a small table of known packer fingerprints.
package packers

import (
	"bytes"

	"github.com/greyhatlabs/triage/internal/types"
)

// signature describes one packer's detectable fingerprint.
type signature struct {
	name          string
	sectionNames  []string
	bodyMarkers   [][]byte
	confidence    float64
}

var signatures = []signature{
	{
		name:         "UPX",
		sectionNames: []string{"UPX0", "UPX1", "UPX2", ".upx"},
		bodyMarkers:  [][]byte{[]byte("UPX!"), []byte("$Info: This file is packed with the UPX")},
		confidence:   0.9,
	},
	{
		name:         "ASPack",
		sectionNames: []string{".aspack", ".adata"},
		bodyMarkers:  [][]byte{[]byte("ASPack")},
		confidence:   0.8,
	},
	{
		name:         "PECompact",
		sectionNames: []string{"PEC2", "PECompact2"},
		bodyMarkers:  [][]byte{[]byte("PECompact2")},
		confidence:   0.8,
	},
	{
		name:         "MPRESS",
		sectionNames: []string{".MPRESS1", ".MPRESS2"},
		bodyMarkers:  [][]byte{[]byte("MPRESS")},
		confidence:   0.75,
	},
	{
		name:         "Themida",
		sectionNames: []string{".themida", ".winlice"},
		bodyMarkers:  [][]byte{[]byte("Themida")},
		confidence:   0.7,
	},
}

// Detect scans sectionNames (as parsed by internal/symbols or
// internal/headers) and a bounded body prefix for known packer
// fingerprints, returning matches ordered by descending confidence.
// scanLimit caps how much of body is inspected (spec §6 packers.scan_limit).
func Detect(sectionNames []string, body []byte, scanLimit int) []types.PackerMatch {
	if scanLimit > 0 && len(body) > scanLimit {
		body = body[:scanLimit]
	}
	sectionSet := make(map[string]struct{}, len(sectionNames))
	for _, s := range sectionNames {
		sectionSet[s] = struct{}{}
	}

	var matches []types.PackerMatch
	for _, sig := range signatures {
		matched := false
		for _, want := range sig.sectionNames {
			if _, ok := sectionSet[want]; ok {
				matched = true
				break
			}
		}
		if !matched {
			for _, marker := range sig.bodyMarkers {
				if bytes.Contains(body, marker) {
					matched = true
					break
				}
			}
		}
		if matched {
			matches = append(matches, types.PackerMatch{Name: sig.name, Confidence: sig.confidence})
		}
	}
	return matches
}
