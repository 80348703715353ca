package containers

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatlabs/triage/internal/errors"
)

func buildZIP(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSniffDetectsZIP(t *testing.T) {
	data := buildZIP(t, map[string]string{"a.txt": "hello"})
	kind, ok := Sniff(data)
	assert.True(t, ok)
	assert.Equal(t, KindZIP, kind)
}

func TestSniffRejectsPlainBytes(t *testing.T) {
	_, ok := Sniff([]byte("just some text"))
	assert.False(t, ok)
}

func TestRecurseZIPProducesMetadata(t *testing.T) {
	data := buildZIP(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
	acc := errors.NewAccumulator()
	tree, hitDepth, hitByte := Recurse(data, Limits{MaxDepth: 4, MaxFanout: 64, MaxTotalBytes: 1 << 20}, acc)
	require.Len(t, tree, 1)
	require.NotNil(t, tree[0].Metadata)
	assert.Equal(t, 2, *tree[0].Metadata.FileCount)
	assert.Equal(t, 0, acc.Len())
	assert.False(t, hitDepth)
	assert.False(t, hitByte)
}

func TestRecurseHonorsFanoutLimit(t *testing.T) {
	data := buildZIP(t, map[string]string{"a.txt": "1", "b.txt": "2", "c.txt": "3"})
	acc := errors.NewAccumulator()
	tree, hitDepth, hitByte := Recurse(data, Limits{MaxDepth: 4, MaxFanout: 1, MaxTotalBytes: 1 << 20}, acc)
	require.Len(t, tree, 1)
	assert.Len(t, tree[0].Children, 1)
	assert.Equal(t, 0, acc.Len())
	assert.False(t, hitDepth)
	assert.True(t, hitByte)
}

func TestRecurseHonorsDepthLimit(t *testing.T) {
	inner := buildZIP(t, map[string]string{"x.txt": "hi"})
	outer := buildZIP(t, map[string]string{"inner.zip": string(inner)})
	acc := errors.NewAccumulator()
	tree, hitDepth, hitByte := Recurse(outer, Limits{MaxDepth: 0, MaxFanout: 64, MaxTotalBytes: 1 << 20}, acc)
	require.Len(t, tree, 1)
	assert.Nil(t, tree[0].Children)
	assert.Equal(t, 0, acc.Len())
	assert.True(t, hitDepth)
	assert.False(t, hitByte)
}

func TestRecurseNonContainerReturnsNil(t *testing.T) {
	acc := errors.NewAccumulator()
	tree, _, _ := Recurse([]byte("not a container"), Limits{MaxDepth: 4, MaxFanout: 64, MaxTotalBytes: 1 << 20}, acc)
	assert.Nil(t, tree)
}
