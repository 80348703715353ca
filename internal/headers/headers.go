// Package headers implements the format header validators from spec
// §4.3: bounded, best-effort structural parsers for ELF, PE, and Mach-O
// that emit at most one TriageVerdict per format plus confidence signals.
package headers

import (
	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/types"
)

// weighSignals sums signal scores on top of a format's base confidence
// and clamps the result to [0, 1] (spec §4.9 uses this as one input).
func weighSignals(base float64, signals []types.ConfidenceSignal) float64 {
	sum := base
	for _, s := range signals {
		sum += s.Score * 0.1
	}
	if sum < 0 {
		return 0
	}
	if sum > 1 {
		return 1
	}
	return sum
}

// ValidateAll runs every header validator over the bounded header slice,
// returning zero or more verdicts. A validator failing never prevents
// the others from running (spec §4.3).
func ValidateAll(header []byte, baseConfidence float64, acc *errors.Accumulator) []types.TriageVerdict {
	var out []types.TriageVerdict
	if v := ValidateELF(header, baseConfidence, acc); v != nil {
		out = append(out, *v)
	}
	if v := ValidatePE(header, baseConfidence, acc); v != nil {
		out = append(out, *v)
	}
	if v := ValidateMachO(header, baseConfidence, acc); v != nil {
		out = append(out, *v)
	}
	return out
}
