package usbhost

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoCallProbeReusesBufferWhenSizeMatches(t *testing.T) {
	calls := 0
	call := func(in, out []byte) (uint32, error) {
		calls++
		binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)))
		return uint32(len(out)), nil
	}

	out, err := twoCallProbe(call, nil, 8, sizeOfActualLength)
	require.NoError(t, err)
	assert.Len(t, out, 8)
	assert.Equal(t, 1, calls)
}

func TestTwoCallProbeReissuesWhenFullSizeIsLarger(t *testing.T) {
	calls := 0
	call := func(in, out []byte) (uint32, error) {
		calls++
		if len(out) == 8 {
			binary.LittleEndian.PutUint32(out[4:8], 64)
			return 8, nil
		}
		binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)))
		return uint32(len(out)), nil
	}

	out, err := twoCallProbe(call, nil, 8, sizeOfActualLength)
	require.NoError(t, err)
	assert.Len(t, out, 64)
	assert.Equal(t, 2, calls)
}

func TestTwoCallProbeRejectsShortReturn(t *testing.T) {
	call := func(in, out []byte) (uint32, error) {
		if len(out) == 8 {
			binary.LittleEndian.PutUint32(out[4:8], 64) // full size differs, forces a second call
			return 8, nil
		}
		return 0, nil // fewer bytes returned than the declared full size
	}

	_, err := twoCallProbe(call, nil, 8, sizeOfActualLength)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformed, kind)
}

func TestUTF16RoundTrip(t *testing.T) {
	u16 := bytesToUTF16([]byte{'H', 0, 'i', 0, 0, 0})
	assert.Equal(t, "Hi", utf16ToString(u16))
}

func TestUTF16ToStringHandlesSurrogatePair(t *testing.T) {
	// U+1F600 GRINNING FACE as a surrogate pair: D83D DE00.
	u16 := []uint16{0xD83D, 0xDE00}
	s := utf16ToString(u16)
	assert.Equal(t, "😀", s)
}
