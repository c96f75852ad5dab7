package usbhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", KindUninitialized.String())
	assert.Equal(t, "NOT_FOUND", KindNotFound.String())
}

func TestKindOfReturnsOutermostLibraryKind(t *testing.T) {
	inner := newError(KindIO, "device vanished", errors.New("ERROR_DEVICE_NOT_CONNECTED"))
	outer := newError(KindMalformed, "failed to parse response", inner)

	kind, ok := KindOf(outer)
	assert.True(t, ok)
	assert.Equal(t, KindMalformed, kind)
}

func TestKindOfReturnsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := newError(KindTimeout, "wait_change timed out", nil)
	assert.True(t, errors.Is(err, &Error{Kind: KindTimeout}))
	assert.False(t, errors.Is(err, &Error{Kind: KindIO}))
}
