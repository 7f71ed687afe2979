package simerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatsOpCodeAndMessage(t *testing.T) {
	err := New("Registry.Create", CodeNotRegistered, "no such class")
	assert.Equal(t, "Registry.Create: not registered: no such class", err.Error())
}

func TestHasCode_MatchesWrappedChain(t *testing.T) {
	inner := New("storage.alloc", CodeOutOfMemory, "heap exhausted")
	wrapped := Wrap("View.AddAtEnd", CodeOutOfMemory, inner)

	assert.True(t, HasCode(wrapped, CodeOutOfMemory))
	assert.False(t, HasCode(wrapped, CodeInvalidArgument))
}

func TestUnwrap_ReachesInnerError(t *testing.T) {
	inner := errors.New("disk full")
	wrapped := Wrap("View.AddAtEnd", CodeOutOfMemory, inner)

	assert.ErrorIs(t, wrapped, inner)
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf("Registry.Register", CodeAlreadyRegistered, "%s", "demo.Widget")
	assert.Contains(t, err.Error(), "demo.Widget")
}
