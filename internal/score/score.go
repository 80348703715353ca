// Package score implements the verdict fusion and ranking model from
// spec §4.9: weighted signals from header validators, sniffers,
// container labels, parser results, and entropy class, combined into a
// clamped confidence per candidate format and sorted best-first.
package score

import (
	"sort"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/types"
)

// Candidate is one format's accumulated weighted signals before fusion.
type Candidate struct {
	Format     types.Format
	Arch       types.Arch
	Bits       int
	Endianness types.Endianness
	Signals    []types.ConfidenceSignal
}

// Inputs collects the independent signal sources the orchestrator has
// gathered for a single artifact.
type Inputs struct {
	HeaderVerdicts   []types.TriageVerdict
	ContentHint      *types.TriageHint
	ExtensionHint    *types.TriageHint
	ContainerFound   bool
	ParserSucceeded  map[types.Format]bool
	EntropyClass     types.EntropyClass
}

// clamp01 bounds x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Fuse combines Inputs into ranked TriageVerdicts per the spec §4.9
// weighted-signal model, sorted by confidence descending, ties broken
// by (1) positive-signal count, (2) format enum order.
func Fuse(in Inputs, cfg config.ScoringConfig) []types.TriageVerdict {
	byFormat := map[types.Format]*Candidate{}
	order := func(f types.Format) *Candidate {
		c, ok := byFormat[f]
		if !ok {
			c = &Candidate{Format: f}
			byFormat[f] = c
		}
		return c
	}

	for _, v := range in.HeaderVerdicts {
		c := order(v.Format)
		c.Arch, c.Bits, c.Endianness = v.Arch, v.Bits, v.Endianness
		headerScore := v.Confidence
		c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "header_validator", Score: cfg.HeaderWeight * headerScore})
	}

	if in.ContentHint != nil && in.ContentHint.Label != "" {
		f := formatFromLabel(in.ContentHint.Label)
		if f != "" {
			c := order(f)
			c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "content_sniffer", Score: cfg.InferWeight * 0.6})
		}
	}
	if in.ExtensionHint != nil && in.ExtensionHint.Label != "" {
		f := formatFromLabel(in.ExtensionHint.Label)
		if f != "" {
			c := order(f)
			c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "extension_sniffer", Score: cfg.ExtensionWeight * 0.3})
		}
	}
	if in.ContainerFound {
		c := order(types.FormatArchive)
		c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "container_label", Score: cfg.ContainerWeight * 0.4})
	}
	for f, ok := range in.ParserSucceeded {
		if !ok {
			continue
		}
		c := order(f)
		c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "parser_success", Score: cfg.ParserWeight * 0.5})
	}
	if in.EntropyClass == types.ClassCompressed {
		if c, ok := byFormat[types.FormatELF]; ok {
			c.Signals = append(c.Signals, types.ConfidenceSignal{Name: "entropy_class", Score: cfg.EntropyWeight * -0.3})
		}
	}

	verdicts := make([]types.TriageVerdict, 0, len(byFormat))
	for _, c := range byFormat {
		var sum float64
		for _, s := range c.Signals {
			sum += s.Score
		}
		verdicts = append(verdicts, types.TriageVerdict{
			Format:     c.Format,
			Arch:       c.Arch,
			Bits:       c.Bits,
			Endianness: c.Endianness,
			Confidence: clamp01(sum),
			Signals:    c.Signals,
		})
	}

	sort.SliceStable(verdicts, func(i, j int) bool {
		if verdicts[i].Confidence != verdicts[j].Confidence {
			return verdicts[i].Confidence > verdicts[j].Confidence
		}
		pi, pj := positiveCount(verdicts[i].Signals), positiveCount(verdicts[j].Signals)
		if pi != pj {
			return pi > pj
		}
		return verdicts[i].Format.Rank() < verdicts[j].Format.Rank()
	})
	return verdicts
}

func positiveCount(signals []types.ConfidenceSignal) int {
	n := 0
	for _, s := range signals {
		if s.Score > 0 {
			n++
		}
	}
	return n
}

func formatFromLabel(label string) types.Format {
	switch label {
	case "ELF":
		return types.FormatELF
	case "PE", "EXE", "DLL":
		return types.FormatPE
	case "MachO", "Mach-O":
		return types.FormatMachO
	case "WASM":
		return types.FormatWASM
	case "Java", "JavaClass":
		return types.FormatJava
	case "Python", "PythonBytecode":
		return types.FormatPython
	case "ZIP", "TAR", "GZIP", "Archive":
		return types.FormatArchive
	default:
		return ""
	}
}

// SnifferHeaderMismatch implements the §4.9 mismatch rule: true when the
// best sniffer label and best header verdict disagree and the
// disagreement is not explained by a detected container.
func SnifferHeaderMismatch(bestSnifferLabel string, bestHeaderFormat types.Format, containerFound bool) bool {
	if containerFound {
		return false
	}
	snifferFormat := formatFromLabel(bestSnifferLabel)
	if snifferFormat == "" || bestHeaderFormat == "" {
		return false
	}
	return snifferFormat != bestHeaderFormat
}
