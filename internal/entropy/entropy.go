// Package entropy implements the Shannon entropy primitive and the full
// sliding-window analysis from spec §4.4: classification, packed-binary
// indicators, and adjacent-window anomaly detection.
package entropy

import (
	"math"
	"sort"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/types"
)

// Shannon computes the Shannon entropy of data in bits per byte, using a
// single-pass 256-bucket histogram. Always in [0, 8].
func Shannon(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var hist [256]int
	for _, b := range data {
		hist[b]++
	}
	return entropyFromHistogram(hist[:], len(data))
}

func entropyFromHistogram(hist []int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Windows computes disjoint (step == windowSize) or overlapping sliding
// window entropies over data. When step < windowSize, an incremental
// histogram is used (add the incoming byte, remove the outgoing one) per
// spec §4.4, instead of recomputing each window from scratch.
func Windows(data []byte, windowSize, step int) []types.EntropyWindow {
	if windowSize <= 0 || len(data) == 0 {
		return nil
	}
	if step <= 0 {
		step = windowSize
	}

	if step >= windowSize {
		var out []types.EntropyWindow
		for offset := 0; offset < len(data); offset += step {
			end := offset + windowSize
			if end > len(data) {
				end = len(data)
			}
			out = append(out, types.EntropyWindow{
				Offset:  uint64(offset),
				Entropy: Shannon(data[offset:end]),
			})
			if end == len(data) {
				break
			}
		}
		return out
	}

	// Overlapping windows: maintain one histogram incrementally, dropping
	// the bytes that slide out and adding the bytes that slide in.
	var out []types.EntropyWindow
	var hist [256]int
	curStart, curEnd := 0, windowSize
	if curEnd > len(data) {
		curEnd = len(data)
	}
	for _, b := range data[curStart:curEnd] {
		hist[b]++
	}
	out = append(out, types.EntropyWindow{Offset: uint64(curStart), Entropy: entropyFromHistogram(hist[:], curEnd-curStart)})

	for {
		nextStart := curStart + step
		if nextStart >= len(data) {
			break
		}
		nextEnd := nextStart + windowSize
		if nextEnd > len(data) {
			nextEnd = len(data)
		}
		for i := curStart; i < nextStart && i < curEnd; i++ {
			hist[data[i]]--
		}
		for i := curEnd; i < nextEnd; i++ {
			hist[data[i]]++
		}
		curStart, curEnd = nextStart, nextEnd
		out = append(out, types.EntropyWindow{Offset: uint64(curStart), Entropy: entropyFromHistogram(hist[:], curEnd-curStart)})
		if curEnd == len(data) {
			break
		}
	}
	return out
}

// Summarize computes mean/std-dev/min/max/median over a window sequence
// plus the overall entropy of the full slice (spec §4.4).
func Summarize(overall float64, windowSize int, windows []types.EntropyWindow) types.EntropySummary {
	s := types.EntropySummary{Overall: overall, WindowSize: windowSize, Windows: windows}
	if len(windows) == 0 {
		return s
	}
	values := make([]float64, len(windows))
	sum := 0.0
	s.Min = windows[0].Entropy
	s.Max = windows[0].Entropy
	for i, w := range windows {
		values[i] = w.Entropy
		sum += w.Entropy
		if w.Entropy < s.Min {
			s.Min = w.Entropy
		}
		if w.Entropy > s.Max {
			s.Max = w.Entropy
		}
	}
	s.Mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - s.Mean
		variance += d * d
	}
	variance /= float64(len(values))
	s.StdDev = math.Sqrt(variance)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		s.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		s.Median = sorted[mid]
	}
	return s
}

// Classify maps an overall entropy value to a class per the spec §4.4
// table. Each range has a strict upper bound, so a value equal to a
// threshold falls into the class above it (3.0 is Code, not Text).
func Classify(overall float64, th config.EntropyThresholds) types.EntropyClassification {
	class := types.ClassText
	switch {
	case overall < th.Text:
		class = types.ClassText
	case overall < th.Code:
		class = types.ClassCode
	case overall < th.Compressed:
		class = types.ClassCompressed
	case overall < th.Encrypted:
		class = types.ClassEncrypted
	default:
		class = types.ClassRandom
	}
	return types.EntropyClassification{Class: class, Value: overall}
}

// Anomalies emits one entry per adjacent window pair whose entropy delta
// meets or exceeds cliffDelta (spec §4.4).
func Anomalies(windows []types.EntropyWindow, cliffDelta float64) []types.EntropyAnomaly {
	var out []types.EntropyAnomaly
	for i := 0; i+1 < len(windows); i++ {
		from, to := windows[i].Entropy, windows[i+1].Entropy
		delta := to - from
		if delta < 0 {
			delta = -delta
		}
		if delta >= cliffDelta {
			out = append(out, types.EntropyAnomaly{Index: i, From: from, To: to, Delta: delta})
		}
	}
	return out
}

// PackedIndicators aggregates packed-binary evidence from the window
// sequence and classification per the weighted formula in spec §4.4.
func PackedIndicators(windows []types.EntropyWindow, class types.EntropyClass, th config.EntropyThresholds, w config.EntropyWeights) types.PackedIndicators {
	ind := types.PackedIndicators{}
	if len(windows) == 0 {
		return ind
	}
	ind.HasLowEntropyHeader = windows[0].Entropy < th.LowHeader
	for _, win := range windows[1:] {
		if win.Entropy > th.HighBody {
			ind.HasHighEntropyBody = true
			break
		}
	}

	var cliffIdx *int
	for i := 0; i+1 < len(windows); i++ {
		delta := windows[i+1].Entropy - windows[i].Entropy
		if delta < 0 {
			delta = -delta
		}
		if delta >= th.CliffDelta {
			idx := i
			cliffIdx = &idx
			break
		}
	}
	ind.EntropyCliff = cliffIdx

	var verdict float64
	if ind.HasLowEntropyHeader && ind.HasHighEntropyBody {
		verdict += w.HeaderBodyMismatch
	}
	if cliffIdx != nil {
		verdict += w.CliffDetected
	}
	if ind.HasHighEntropyBody {
		verdict += w.HighEntropy
	}
	if class == types.ClassEncrypted || class == types.ClassRandom {
		verdict += w.EncryptedRandom
	}
	if verdict < 0 {
		verdict = 0
	}
	if verdict > 1 {
		verdict = 1
	}
	ind.Verdict = verdict
	return ind
}

// Analyze runs the full entropy pipeline over data and returns a
// types.EntropyAnalysis ready to embed in a TriagedArtifact.
func Analyze(data []byte, cfg *config.EntropyConfig) types.EntropyAnalysis {
	overall := Shannon(data)
	windows := Windows(data, cfg.WindowSize, cfg.WindowSize)
	summary := Summarize(overall, cfg.WindowSize, windows)
	classification := Classify(overall, cfg.Thresholds)
	indicators := PackedIndicators(windows, classification.Class, cfg.Thresholds, cfg.Weights)
	anomalies := Anomalies(windows, cfg.Thresholds.CliffDelta)
	return types.EntropyAnalysis{
		Summary:          summary,
		Classification:   classification,
		PackedIndicators: indicators,
		Anomalies:        anomalies,
	}
}
