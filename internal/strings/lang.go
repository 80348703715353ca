package strings

import (
	gostrings "strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/types"
)

// codeishPunctuation gates out tokens that look like code rather than
// natural language, per spec §4.5's is_texty heuristic.
const codeishPunctuation = `/\;$:<>[]()`

// jvmDescriptorPrefixes are common JVM type-descriptor leading bytes that
// should never be treated as natural-language tokens.
var jvmDescriptorPrefixes = []string{"Ljava/", "[L", "()V", "()L"}

// isTexty is the §4.5 heuristic gate before language detection runs.
func isTexty(s string, minLen int) bool {
	if len(s) < minLen {
		return false
	}
	for _, r := range s {
		if gostrings.ContainsRune(codeishPunctuation, r) {
			return false
		}
	}
	for _, prefix := range jvmDescriptorPrefixes {
		if gostrings.HasPrefix(s, prefix) {
			return false
		}
	}
	return true
}

// languageProfile is a tiny stopword/stem corpus used by both detectors.
// Real language detection in the pack's examples leans on dictionary and
// edit-distance matching (go-edlib) rather than n-gram models, so the
// two detectors here both build on that idiom from different angles.
type languageProfile struct {
	code   string
	script string
	stems  []string
}

var corpora = []languageProfile{
	{code: "eng", script: "Latin", stems: []string{"the", "and", "is", "of", "to", "error", "file", "not", "found"}},
	{code: "deu", script: "Latin", stems: []string{"der", "die", "und", "nicht", "gefunden", "datei", "fehler"}},
	{code: "fra", script: "Latin", stems: []string{"le", "la", "et", "erreur", "fichier", "introuvable"}},
	{code: "spa", script: "Latin", stems: []string{"el", "la", "y", "error", "archivo", "no", "encontrado"}},
	{code: "rus", script: "Cyrillic", stems: []string{"и", "не", "файл", "ошибка", "найден"}},
}

func tokenize(s string) []string {
	fields := gostrings.FieldsFunc(s, func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		out = append(out, gostrings.ToLower(f))
	}
	return out
}

// detectStem scores a token slice against each corpus by exact/porter2-
// stemmed match ratio. This is detector #1.
func detectStem(tokens []string) (code, script string, confidence float64) {
	if len(tokens) == 0 {
		return "", "", 0
	}
	best := -1.0
	for _, profile := range corpora {
		stemSet := make(map[string]struct{}, len(profile.stems))
		for _, s := range profile.stems {
			stemSet[s] = struct{}{}
		}
		hits := 0
		for _, tok := range tokens {
			stemmed := porter2.Stem(tok)
			if _, ok := stemSet[tok]; ok {
				hits++
				continue
			}
			if _, ok := stemSet[stemmed]; ok {
				hits++
			}
		}
		score := float64(hits) / float64(len(tokens))
		if score > best {
			best = score
			code, script = profile.code, profile.script
		}
	}
	if best < 0 {
		best = 0
	}
	return code, script, best
}

// detectEdit scores a token slice against each corpus using go-edlib's
// Levenshtein similarity for near-matches (typos, inflections the stemmer
// misses). This is detector #2.
func detectEdit(tokens []string) (code, script string, confidence float64) {
	if len(tokens) == 0 {
		return "", "", 0
	}
	best := -1.0
	for _, profile := range corpora {
		hits := 0.0
		for _, tok := range tokens {
			closestScore := 0.0
			for _, stem := range profile.stems {
				sim, err := edlib.StringsSimilarity(tok, stem, edlib.Levenshtein)
				if err != nil {
					continue
				}
				if float64(sim) > closestScore {
					closestScore = float64(sim)
				}
			}
			if closestScore >= 0.8 {
				hits++
			}
		}
		score := hits / float64(len(tokens))
		if score > best {
			best = score
			code, script = profile.code, profile.script
		}
	}
	if best < 0 {
		best = 0
	}
	return code, script, best
}

// Detect runs the two-detector ensemble described in spec §4.5: accept
// the primary when confident enough on its own, or accept either when
// both agree above the lower "agree" threshold. Failing both, the
// secondary's result is accepted when it alone reaches MinLangConfidence.
func Detect(s string, cfg config.StringsConfig) *types.LanguageDetection {
	if !isTexty(s, cfg.MinLenForDetect) {
		return nil
	}
	tokens := tokenize(s)
	if len(tokens) == 0 {
		return nil
	}

	code1, script1, conf1 := detectStem(tokens)
	code2, script2, conf2 := detectEdit(tokens)

	if conf1 >= cfg.MinLangConfidence {
		return &types.LanguageDetection{Code: code1, Script: script1, Confidence: conf1}
	}
	if code1 == code2 && conf1 >= cfg.MinLangConfidenceAgree && conf2 >= cfg.MinLangConfidenceAgree {
		return &types.LanguageDetection{Code: code1, Script: script1, Confidence: (conf1 + conf2) / 2}
	}
	if conf2 >= cfg.MinLangConfidence {
		return &types.LanguageDetection{Code: code2, Script: script2, Confidence: conf2}
	}
	return nil
}

// Languages builds the language histogram over a set of candidate
// strings (spec §3 StringsSummary.languages).
func Languages(strs []string, cfg config.StringsConfig) map[string]int {
	hist := make(map[string]int)
	for _, s := range strs {
		if d := Detect(s, cfg); d != nil {
			hist[d.Code]++
		}
	}
	if len(hist) == 0 {
		return nil
	}
	return hist
}
