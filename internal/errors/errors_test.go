package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greyhatlabs/triage/internal/types"
)

func TestAccumulatorDeduplicates(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(types.ErrShortRead, "read %d of %d", 4, 8)
	acc.Add(types.ErrShortRead, "read %d of %d", 4, 8)
	acc.Add(types.ErrBadMagic, "")

	assert.Equal(t, 2, acc.Len())
	assert.Nil(t, NewAccumulator().Errors())
}

func TestAccumulatorAddErrIgnoresNil(t *testing.T) {
	acc := NewAccumulator()
	acc.AddErr(types.ErrOther, nil)
	acc.AddErr(types.ErrOther, errors.New("boom"))

	assert.Equal(t, 1, acc.Len())
	assert.Equal(t, types.ErrOther, acc.Errors()[0].Kind)
}
