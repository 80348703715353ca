package demangle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemangleItaniumSimple(t *testing.T) {
	d := Builtin{}
	res := d.DemangleOne("_Z3foov")
	assert.Equal(t, "foo", res.Demangled)
	assert.Equal(t, FlavorItanium, res.Flavor)
}

func TestDemangleItaniumNested(t *testing.T) {
	d := Builtin{}
	res := d.DemangleOne("_ZN3foo3barE")
	assert.Equal(t, "foo::bar", res.Demangled)
}

func TestDemangleMSVC(t *testing.T) {
	d := Builtin{}
	res := d.DemangleOne("?foo@@YAXXZ")
	assert.Equal(t, "foo", res.Demangled)
	assert.Equal(t, FlavorMSVC, res.Flavor)
}

func TestDemangleUnrecognizedPassesThrough(t *testing.T) {
	d := Builtin{}
	res := d.DemangleOne("CreateFileW")
	assert.Equal(t, "CreateFileW", res.Demangled)
	assert.Equal(t, FlavorNone, res.Flavor)
}
