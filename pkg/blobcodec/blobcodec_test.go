package blobcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0x03}, 200),
		bytes.Repeat([]byte{0xff, 0x00, 0x7f}, 10_000)[:MaxBlobDataSize],
	}

	for _, data := range cases {
		blob, err := Encode(data)
		require.NoError(t, err)

		for i := 0; i < FieldElementsPerBlob; i++ {
			require.Zero(t, blob[i*FieldElementSize]&0b11000000, "element %d top bits must be zero", i)
		}

		decoded, err := Decode(blob)
		require.NoError(t, err)
		require.Equal(t, data, decoded)
	}
}

func TestEncodeTooLarge(t *testing.T) {
	_, err := Encode(make([]byte, MaxBlobDataSize+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

// TestScenario6 mirrors spec.md scenario 6: b = [0x03]*200.
func TestScenario6(t *testing.T) {
	data := bytes.Repeat([]byte{0x03}, 200)

	blob, err := Encode(data)
	require.NoError(t, err)

	require.Equal(t, byte(0x00), blob[1], "version byte")
	require.Equal(t, byte(0x00), blob[2])
	require.Equal(t, byte(0x00), blob[3])
	require.Equal(t, byte(0xC8), blob[4], "length=200")
	require.Equal(t, bytes.Repeat([]byte{0x03}, 27), []byte(blob[5:32]))

	// The 4-byte header plus 200 payload bytes (204 bytes) fill round 0's
	// 127 bytes and spill into round 1; every round from 2 on must be all zero.
	require.True(t, allZero(blob[2*4*FieldElementSize:]))

	decoded, err := Decode(blob)
	require.NoError(t, err)
	require.Equal(t, data, decoded)
}

func TestDecodeRejectsOverflowingElement(t *testing.T) {
	var blob Blob
	blob[0] = 0b11000000 // top two bits set

	_, err := Decode(&blob)
	require.ErrorIs(t, err, ErrFieldElementOverflow)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
