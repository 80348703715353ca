package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolCompilesAllKinds(t *testing.T) {
	entries := All()
	assert.Len(t, entries, len(OrderedKinds))
	for _, e := range entries {
		assert.NotNil(t, e.Re, "kind %s should compile", e.Kind)
	}
}

func TestURLPattern(t *testing.T) {
	re := Get(KindURL)
	assert.True(t, re.MatchString("visit http://example.com/a now"))
	assert.False(t, re.MatchString("no scheme here"))
}

func TestItaniumManglePattern(t *testing.T) {
	re := Get(KindItaniumMangle)
	assert.True(t, re.MatchString("_ZN3foo3barEv"))
}

func TestMSVCManglePattern(t *testing.T) {
	re := Get(KindMSVCMangle)
	assert.True(t, re.MatchString("?bar@foo@@QAEXXZ"))
}
