package sniffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhatlabs/triage/internal/types"
)

func TestContentELF(t *testing.T) {
	h := Content([]byte{0x7F, 'E', 'L', 'F', 2, 1, 1})
	require.NotNil(t, h)
	assert.Equal(t, "ELF", h.Label)
}

func TestContentZIP(t *testing.T) {
	h := Content([]byte{'P', 'K', 0x03, 0x04, 0, 0})
	require.NotNil(t, h)
	assert.Equal(t, "ZIP", h.Label)
}

func TestContentUnknown(t *testing.T) {
	assert.Nil(t, Content([]byte("just text")))
}

func TestExtensionKnown(t *testing.T) {
	h := Extension("malware.exe")
	require.NotNil(t, h)
	assert.Equal(t, "PE", h.Label)
	assert.Equal(t, types.HintExtension, h.Source)
}

func TestCombinedDeduplicatesZipMasqueradingAsExe(t *testing.T) {
	hints := Combined([]byte{'P', 'K', 0x03, 0x04}, "x.exe")
	assert.Len(t, hints, 2)

	var sawContent, sawExtension bool
	for _, h := range hints {
		if h.Source == types.HintContent {
			sawContent = true
			assert.Equal(t, "ZIP", h.Label)
		}
		if h.Source == types.HintExtension {
			sawExtension = true
			assert.Equal(t, "PE", h.Label)
		}
	}
	assert.True(t, sawContent)
	assert.True(t, sawExtension)
}
