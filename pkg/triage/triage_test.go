package triage

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/greyhatlabs/triage/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAnalyzeBytesTinyText(t *testing.T) {
	e := NewEngine(nil)
	artifact, err := e.AnalyzeBytes(context.Background(), []byte("Hello, World!"), Limits{})
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, types.ClassText, artifact.Entropy.Classification.Class)
	assert.False(t, artifact.Budgets.HitByteLimit)
}

func TestAnalyzeBytesZeros(t *testing.T) {
	e := NewEngine(nil)
	data := make([]byte, 1024)
	artifact, err := e.AnalyzeBytes(context.Background(), data, Limits{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, artifact.Entropy.Summary.Overall)
	assert.Equal(t, types.ClassText, artifact.Entropy.Classification.Class)
}

func TestAnalyzeBytesUniformIsRandom(t *testing.T) {
	e := NewEngine(nil)
	data := make([]byte, 256*100)
	for i := range data {
		data[i] = byte(i)
	}
	artifact, err := e.AnalyzeBytes(context.Background(), data, Limits{})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, artifact.Entropy.Summary.Overall, 0.01)
	assert.Equal(t, types.ClassRandom, artifact.Entropy.Classification.Class)
}

func TestAnalyzeBytesZIPPrefixRaisesNoSnifferMismatch(t *testing.T) {
	e := NewEngine(nil)
	data := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 64)...)
	artifact, err := e.AnalyzeBytes(context.Background(), data, Limits{})
	require.NoError(t, err)
	for _, er := range artifact.Errors {
		assert.NotEqual(t, types.ErrSnifferMismatch, er.Kind)
	}
}

func buildTruncatedELF() []byte {
	full := make([]byte, 64)
	copy(full, []byte{0x7F, 'E', 'L', 'F'})
	full[4] = 2
	full[5] = 1
	binary.LittleEndian.PutUint16(full[16:18], 2)
	binary.LittleEndian.PutUint16(full[18:20], 62)
	return full[:32]
}

func TestAnalyzeBytesTruncatedELF(t *testing.T) {
	e := NewEngine(nil)
	artifact, err := e.AnalyzeBytes(context.Background(), buildTruncatedELF(), Limits{})
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Verdicts)
	assert.Equal(t, types.FormatELF, artifact.Verdicts[0].Format)
	assert.NotEmpty(t, artifact.Errors)
}

func TestAnalyzeBytesBudgetExceeded(t *testing.T) {
	e := NewEngine(nil)
	data := make([]byte, 1<<20)
	artifact, err := e.AnalyzeBytes(context.Background(), data, Limits{MaxReadBytes: 4096})
	require.NoError(t, err)
	assert.True(t, artifact.Budgets.HitByteLimit)
	found := false
	for _, er := range artifact.Errors {
		if er.Kind == types.ErrBudgetExceeded {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeBytesDeterministic(t *testing.T) {
	e := NewEngine(nil)
	data := []byte("deterministic output check across repeated runs")
	a1, err := e.AnalyzeBytes(context.Background(), data, Limits{})
	require.NoError(t, err)
	a2, err := e.AnalyzeBytes(context.Background(), data, Limits{})
	require.NoError(t, err)
	assert.Equal(t, a1.Entropy, a2.Entropy)
	assert.Equal(t, a1.SHA256, a2.SHA256)
	assert.Equal(t, a1.Similarity, a2.Similarity)
}

func TestAnalyzePathMissingFileErrors(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.AnalyzePath(context.Background(), "/nonexistent/triage-test-file", Limits{})
	assert.Error(t, err)
}

func TestAnalyzeBatchPreservesOrder(t *testing.T) {
	e := NewEngine(nil)
	inputs := [][]byte{[]byte("aaa"), []byte("bbbbbb"), []byte("c")}
	results, err := e.AnalyzeBatch(context.Background(), inputs, Limits{}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, uint64(3), results[0].SizeBytes)
	assert.Equal(t, uint64(6), results[1].SizeBytes)
	assert.Equal(t, uint64(1), results[2].SizeBytes)
}

func TestSchemaDescribesTriagedArtifact(t *testing.T) {
	schema, err := Schema()
	require.NoError(t, err)
	require.NotNil(t, schema)
}
