// Package triage is the public orchestrator API: it wires bounded I/O,
// sniffers, header validators, entropy/strings/symbols/packers/overlay/
// containers analysis, scoring, and fuzzy similarity into the single
// TriagedArtifact described in spec §2-§3.
package triage

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/containers"
	"github.com/greyhatlabs/triage/internal/entropy"
	"github.com/greyhatlabs/triage/internal/errors"
	"github.com/greyhatlabs/triage/internal/hashing"
	"github.com/greyhatlabs/triage/internal/headers"
	"github.com/greyhatlabs/triage/internal/ioutil"
	"github.com/greyhatlabs/triage/internal/overlay"
	"github.com/greyhatlabs/triage/internal/packers"
	"github.com/greyhatlabs/triage/internal/score"
	"github.com/greyhatlabs/triage/internal/similarity"
	"github.com/greyhatlabs/triage/internal/sniffers"
	"github.com/greyhatlabs/triage/internal/strings"
	"github.com/greyhatlabs/triage/internal/symbols"
	"github.com/greyhatlabs/triage/internal/types"
)

// Limits mirrors ioutil.IOLimits at the public API boundary, per spec
// §6's analyze_bytes/analyze_path signatures.
type Limits struct {
	MaxReadBytes int64
	MaxFileSize  int64
}

// Engine holds an immutable, read-only TriageConfig and runs the
// pipeline described in spec §2's control-flow order. It carries no
// mutable state between calls — every AnalyzeX call is independent.
type Engine struct {
	cfg    *config.TriageConfig
	hasher hashing.Hasher
}

// NewEngine constructs an Engine from cfg. A nil cfg uses config.Default().
// The artifact identity hash defaults to SHA-256 (hashing.SHA256Hasher);
// use NewEngineWithHasher to inject a different external collaborator
// per spec §6.
func NewEngine(cfg *config.TriageConfig) *Engine {
	return NewEngineWithHasher(cfg, hashing.SHA256Hasher{})
}

// NewEngineWithHasher is NewEngine with an explicit Hasher collaborator.
func NewEngineWithHasher(cfg *config.TriageConfig, hasher hashing.Hasher) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if hasher == nil {
		hasher = hashing.SHA256Hasher{}
	}
	return &Engine{cfg: cfg, hasher: hasher}
}

func (l Limits) ioLimits() ioutil.IOLimits {
	return ioutil.IOLimits{MaxReadBytes: l.MaxReadBytes, MaxFileSize: l.MaxFileSize}
}

// AnalyzeBytes runs the full pipeline over an in-memory buffer, honoring
// limits.MaxReadBytes the same way AnalyzePath does.
func (e *Engine) AnalyzeBytes(ctx context.Context, data []byte, limits Limits) (*types.TriagedArtifact, error) {
	r := ioutil.FromBytes(data, limits.ioLimits())
	bounded, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return e.analyze(ctx, "", bounded, limits, r.HitByteLimit())
}

// AnalyzePath opens path under limits and runs the full pipeline. I/O
// failures before any bytes are read (stat failure, FileTooLarge) are
// the sole error return, per spec §7 "fatal to artifact".
func (e *Engine) AnalyzePath(ctx context.Context, path string, limits Limits) (*types.TriagedArtifact, error) {
	r, err := ioutil.Open(path, limits.ioLimits())
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return e.analyze(ctx, path, data, limits, r.HitByteLimit())
}

// AnalyzeBatch runs AnalyzeBytes over each input concurrently, bounded by
// maxConcurrency (0 uses errgroup's default unlimited fan-out), preserving
// input order in the returned slice per spec §5's batch-API requirement.
// If any item's AnalyzeBytes call returns an error, the whole batch
// returns that error and no results.
func (e *Engine) AnalyzeBatch(ctx context.Context, inputs [][]byte, limits Limits, maxConcurrency int) ([]*types.TriagedArtifact, error) {
	results := make([]*types.TriagedArtifact, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}
	for i, data := range inputs {
		i, data := i, data
		g.Go(func() error {
			artifact, err := e.AnalyzeBytes(gctx, data, limits)
			if err != nil {
				return err
			}
			results[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) analyze(ctx context.Context, path string, data []byte, limits Limits, hitByteLimit bool) (*types.TriagedArtifact, error) {
	start := time.Now()
	acc := errors.NewAccumulator()
	cfg := e.cfg
	if hitByteLimit {
		acc.Add(types.ErrBudgetExceeded, "read truncated at max_read_bytes=%d", limits.MaxReadBytes)
	}

	slices := ioutil.DeriveSlices(data, cfg.IO.MaxSniffSize, cfg.IO.MaxHeaderSize, cfg.IO.MaxEntropySize)

	var hints []types.TriageHint
	var headerVerdicts []types.TriageVerdict

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		hints = sniffers.Combined(slices.Sniff, path)
		return nil
	})
	g.Go(func() error {
		headerVerdicts = headers.ValidateAll(slices.Header, cfg.Headers.BaseConfidence, acc)
		return nil
	})
	_ = g.Wait() // both goroutines are infallible; errgroup only buys the concurrency

	entropyAnalysis := entropy.Analyze(slices.Entropy, &cfg.Entropy)

	extracted := strings.Extract(slices.Entropy, cfg.Heuristics.MinStringLength, cfg.Strings)
	if extracted.Truncated {
		acc.Add(types.ErrBudgetExceeded, "string extraction hit time guard at time_guard_ms=%d", cfg.Strings.TimeGuardMs)
	}
	stringsSummary := strings.Summarize(extracted, cfg.Strings)
	allSamples := append(append([]string{}, extracted.ASCII...), extracted.UTF16LE...)
	allSamples = append(allSamples, extracted.UTF16BE...)
	stringsSummary.Languages = strings.Languages(allSamples, cfg.Strings)

	// spec §9 open question: IOCUseEntropySlice decides whether IOC
	// classification reuses the (up to 1 MiB) entropy/strings samples or
	// re-scans only the bounded header slice on very large inputs.
	iocSamples := allSamples
	if !cfg.Strings.IOCUseEntropySlice {
		headerExtracted := strings.Extract(slices.Header, cfg.Heuristics.MinStringLength, cfg.Strings)
		iocSamples = append(append([]string{}, headerExtracted.ASCII...), headerExtracted.UTF16LE...)
		iocSamples = append(iocSamples, headerExtracted.UTF16BE...)
	}
	stringsSummary.IOCCounts, stringsSummary.IOCSamples = strings.ClassifyAll(iocSamples, cfg.Strings)

	bestHeaderFormat := types.Format("")
	if len(headerVerdicts) > 0 {
		bestHeaderFormat = headerVerdicts[0].Format
	}
	var symbolSummary *types.SymbolSummary
	if bestHeaderFormat != "" {
		symbolSummary = symbols.Summarize(bestHeaderFormat, slices.Header, acc)
	}

	var sectionNames []string
	if bestHeaderFormat == types.FormatPE {
		sectionNames = symbols.PESectionNames(slices.Header)
	}
	scanLimit := cfg.Packers.ScanLimit
	bodyForPackers := data
	if scanLimit > 0 && len(bodyForPackers) > scanLimit {
		bodyForPackers = bodyForPackers[:scanLimit]
	}
	packerMatches := packers.Detect(sectionNames, bodyForPackers, scanLimit)

	var overlayAnalysis *types.OverlayAnalysis
	var signingSummary *types.SigningSummary
	if bestHeaderFormat == types.FormatPE {
		overlayAnalysis = overlay.Detect(slices.Header, data)
		signingSummary = overlay.Signing(overlayAnalysis)
	}

	containerLimits := containers.Limits{
		MaxDepth:      cfg.Containers.MaxDepth,
		MaxFanout:     cfg.Containers.MaxFanout,
		MaxTotalBytes: cfg.Containers.MaxTotalBytes,
	}
	containerTree, containerHitDepth, containerHitByte := containers.Recurse(data, containerLimits, acc)

	var contentHint, extensionHint *types.TriageHint
	for i := range hints {
		switch hints[i].Source {
		case types.HintContent:
			contentHint = &hints[i]
		case types.HintExtension:
			extensionHint = &hints[i]
		}
	}
	containerFound := len(containerTree) > 0

	parserSucceeded := map[types.Format]bool{}
	var parseStatuses []types.ParseStatus
	for _, v := range headerVerdicts {
		ok := v.Confidence >= cfg.Headers.BaseConfidence*0.5
		parserSucceeded[v.Format] = ok
		parseStatuses = append(parseStatuses, types.ParseStatus{Format: v.Format, OK: ok})
	}

	verdicts := score.Fuse(score.Inputs{
		HeaderVerdicts:  headerVerdicts,
		ContentHint:     contentHint,
		ExtensionHint:   extensionHint,
		ContainerFound:  containerFound,
		ParserSucceeded: parserSucceeded,
		EntropyClass:    entropyAnalysis.Classification.Class,
	}, cfg.Scoring)

	if contentHint != nil {
		bestSniffer := contentHint.Label
		bestHeader := types.Format("")
		if len(verdicts) > 0 {
			bestHeader = verdicts[0].Format
		}
		if score.SnifferHeaderMismatch(bestSniffer, bestHeader, containerFound) {
			acc.Add(types.ErrSnifferMismatch, "content sniffer=%s header verdict=%s", bestSniffer, bestHeader)
		}
	}

	params := similarity.RecommendedParams(len(slices.Entropy))
	digest := similarity.Digest(slices.Entropy, params)

	var limitBytesPtr *uint64
	if limits.MaxReadBytes > 0 {
		lb := uint64(limits.MaxReadBytes)
		limitBytesPtr = &lb
	}

	digestHex := e.hasher.Sum(data)
	idLen := 16
	if len(digestHex) < idLen {
		idLen = len(digestHex)
	}
	artifact := &types.TriagedArtifact{
		ID:            digestHex[:idLen],
		Path:          path,
		SizeBytes:     uint64(len(data)),
		SHA256:        digestHex,
		Hints:         hints,
		Verdicts:      verdicts,
		Entropy:       &entropyAnalysis,
		Strings:       &stringsSummary,
		Symbols:       symbolSummary,
		Packers:       packerMatches,
		Containers:    containerTree,
		Overlay:       overlayAnalysis,
		ParseStatus:   parseStatuses,
		Signing:       signingSummary,
		Similarity:    digest,
		SchemaVersion: types.SchemaVersion,
		Budgets: types.Budgets{
			LimitBytes:        limitBytesPtr,
			BytesRead:         uint64(len(data)),
			MaxRecursionDepth: cfg.Containers.MaxDepth,
			HitByteLimit:      hitByteLimit || containerHitByte,
			HitDepthLimit:     containerHitDepth,
			ElapsedMs:         uint64(time.Since(start).Milliseconds()),
		},
		Errors: acc.Errors(),
	}
	return artifact, nil
}
