package errprocess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	err := Set("unknown namespace")
	assert.EqualError(t, err, "unknown namespace")
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	err := Wrap(base, "decode frame")
	assert.ErrorIs(t, err, base)
	assert.EqualError(t, err, "decode frame: boom")
	assert.NoError(t, Wrap(nil, "noop"))
}
