package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/types"
)

func TestFuseOrdersByConfidenceDescending(t *testing.T) {
	cfg := config.Default().Scoring
	in := Inputs{
		HeaderVerdicts: []types.TriageVerdict{
			{Format: types.FormatELF, Confidence: 0.9},
			{Format: types.FormatPE, Confidence: 0.3},
		},
	}
	out := Fuse(in, cfg)
	require.Len(t, out, 2)
	assert.GreaterOrEqual(t, out[0].Confidence, out[1].Confidence)
	assert.Equal(t, types.FormatELF, out[0].Format)
}

func TestFuseTieBreaksByFormatOrder(t *testing.T) {
	cfg := config.Default().Scoring
	in := Inputs{
		HeaderVerdicts: []types.TriageVerdict{
			{Format: types.FormatPE, Confidence: 0.5},
			{Format: types.FormatELF, Confidence: 0.5},
		},
	}
	out := Fuse(in, cfg)
	require.Len(t, out, 2)
	assert.Equal(t, types.FormatELF, out[0].Format)
}

func TestFuseClampsConfidence(t *testing.T) {
	cfg := config.Default().Scoring
	in := Inputs{
		HeaderVerdicts: []types.TriageVerdict{{Format: types.FormatELF, Confidence: 5.0}},
	}
	out := Fuse(in, cfg)
	require.Len(t, out, 1)
	assert.LessOrEqual(t, out[0].Confidence, 1.0)
}

func TestSnifferHeaderMismatchExemptedByContainer(t *testing.T) {
	assert.False(t, SnifferHeaderMismatch("ZIP", types.FormatPE, true))
	assert.True(t, SnifferHeaderMismatch("ZIP", types.FormatPE, false))
}
