// Package config defines TriageConfig (spec §6) and its defaults, with an
// optional TOML file overlay — grounded on the teacher's config.Load /
// struct-of-structs default-merge pattern, swapped from KDL to TOML since
// this is a library config surface, not a project-workspace file.
package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

type IOConfig struct {
	MaxSniffSize   int   `toml:"max_sniff_size"`
	MaxHeaderSize  int   `toml:"max_header_size"`
	MaxEntropySize int   `toml:"max_entropy_size"`
	MaxFileSize    int64 `toml:"max_file_size"`
}

type EntropyThresholds struct {
	Text       float64 `toml:"text"`
	Code       float64 `toml:"code"`
	Compressed float64 `toml:"compressed"`
	Encrypted  float64 `toml:"encrypted"`
	CliffDelta float64 `toml:"cliff_delta"`
	LowHeader  float64 `toml:"low_header"`
	HighBody   float64 `toml:"high_body"`
}

type EntropyWeights struct {
	HeaderBodyMismatch float64 `toml:"header_body_mismatch"`
	CliffDetected      float64 `toml:"cliff_detected"`
	HighEntropy        float64 `toml:"high_entropy"`
	EncryptedRandom    float64 `toml:"encrypted_random"`
}

type EntropyConfig struct {
	WindowSize int               `toml:"window_size"`
	Thresholds EntropyThresholds `toml:"thresholds"`
	Weights    EntropyWeights    `toml:"weights"`
}

type HeuristicsConfig struct {
	MinStringLength int `toml:"min_string_length"`
}

type ScoringConfig struct {
	InferWeight     float64 `toml:"infer_weight"`
	HeaderWeight    float64 `toml:"header_weight"`
	ExtensionWeight float64 `toml:"extension_weight"`
	ContainerWeight float64 `toml:"container_weight"`
	ParserWeight    float64 `toml:"parser_weight"`
	EntropyWeight   float64 `toml:"entropy_weight"`
}

type PackersConfig struct {
	ScanLimit int `toml:"scan_limit"`
}

type SimilarityConfig struct {
	WindowSize int `toml:"window_size"`
	DigestSize int `toml:"digest_size"`
	Precision  int `toml:"precision"`
}

type HeadersConfig struct {
	BaseConfidence float64 `toml:"base_confidence"`
}

type ParsersConfig struct {
	PythonBytecodeConfidence float64 `toml:"python_bytecode_confidence"`
}

type StringsConfig struct {
	MaxScanBytes           int     `toml:"max_scan_bytes"`
	TimeGuardMs            int     `toml:"time_guard_ms"`
	MaxSamples             int     `toml:"max_samples"`
	MaxIOCPerString        int     `toml:"max_ioc_per_string"`
	MaxIOCSamples          int     `toml:"max_ioc_samples"`
	MinLenForDetect        int     `toml:"min_len_for_detect"`
	MinLangConfidence      float64 `toml:"min_lang_confidence"`
	MinLangConfidenceAgree float64 `toml:"min_lang_confidence_agree"`
	// IOCUseEntropySlice resolves the §9 open question: when true (the
	// default), IOC classification reuses the strings extracted from the
	// entropy/strings slice (bounded to MaxEntropySize); when false, it
	// re-extracts strings from the smaller header slice (MaxHeaderSize)
	// instead. Exposed as config rather than guessed.
	IOCUseEntropySlice bool `toml:"ioc_use_entropy_slice"`
}

type ContainersConfig struct {
	MaxDepth        uint32 `toml:"max_depth"`
	MaxFanout       int    `toml:"max_fanout"`
	MaxTotalBytes   uint64 `toml:"max_total_bytes"`
}

type TriageConfig struct {
	IO         IOConfig         `toml:"io"`
	Entropy    EntropyConfig    `toml:"entropy"`
	Heuristics HeuristicsConfig `toml:"heuristics"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Packers    PackersConfig    `toml:"packers"`
	Similarity SimilarityConfig `toml:"similarity"`
	Headers    HeadersConfig    `toml:"headers"`
	Parsers    ParsersConfig    `toml:"parsers"`
	Strings    StringsConfig    `toml:"strings"`
	Containers ContainersConfig `toml:"containers"`
}

// Default returns the TriageConfig populated with every default named in
// spec §6.
func Default() *TriageConfig {
	return &TriageConfig{
		IO: IOConfig{
			MaxSniffSize:   4096,
			MaxHeaderSize:  65536,
			MaxEntropySize: 1048576,
			MaxFileSize:    104857600,
		},
		Entropy: EntropyConfig{
			WindowSize: 8192,
			Thresholds: EntropyThresholds{
				Text: 3.0, Code: 5.0, Compressed: 7.0, Encrypted: 7.8,
				CliffDelta: 1.0, LowHeader: 4.0, HighBody: 7.0,
			},
			Weights: EntropyWeights{
				HeaderBodyMismatch: 0.6,
				CliffDetected:      0.2,
				HighEntropy:        0.1,
				EncryptedRandom:    0.2,
			},
		},
		Heuristics: HeuristicsConfig{MinStringLength: 4},
		Scoring: ScoringConfig{
			InferWeight:     0.15,
			HeaderWeight:    0.50,
			ExtensionWeight: 0.05,
			ContainerWeight: 0.10,
			ParserWeight:    0.15,
			EntropyWeight:   0.05,
		},
		Packers:    PackersConfig{ScanLimit: 524288},
		Similarity: SimilarityConfig{WindowSize: 8, DigestSize: 4, Precision: 8},
		Headers:    HeadersConfig{BaseConfidence: 0.7},
		Parsers:    ParsersConfig{PythonBytecodeConfidence: 0.9},
		Strings: StringsConfig{
			MaxScanBytes:           1048576,
			TimeGuardMs:            10,
			MaxSamples:             40,
			MaxIOCPerString:        16,
			MaxIOCSamples:          50,
			MinLenForDetect:        10,
			MinLangConfidence:      0.5,
			MinLangConfidenceAgree: 0.4,
			IOCUseEntropySlice:     true,
		},
		Containers: ContainersConfig{
			MaxDepth:      4,
			MaxFanout:     64,
			MaxTotalBytes: 64 * 1024 * 1024,
		},
	}
}

// Load returns Default() overlaid with the TOML file at path, if it
// exists. A missing file is not an error; a malformed one is.
func Load(path string) (*TriageConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("triage: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("triage: parse config %s: %w", path, err)
	}
	return cfg, nil
}
