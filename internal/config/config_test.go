package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4096, cfg.IO.MaxSniffSize)
	assert.Equal(t, 65536, cfg.IO.MaxHeaderSize)
	assert.Equal(t, 1048576, cfg.IO.MaxEntropySize)
	assert.Equal(t, int64(104857600), cfg.IO.MaxFileSize)
	assert.Equal(t, 8192, cfg.Entropy.WindowSize)
	assert.Equal(t, uint32(4), cfg.Containers.MaxDepth)
	assert.Equal(t, 64, cfg.Containers.MaxFanout)
	assert.True(t, cfg.Strings.IOCUseEntropySlice)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triage.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[io]
max_sniff_size = 8192

[containers]
max_depth = 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.IO.MaxSniffSize)
	assert.Equal(t, uint32(2), cfg.Containers.MaxDepth)
	assert.Equal(t, 65536, cfg.IO.MaxHeaderSize, "unset fields keep defaults")
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
