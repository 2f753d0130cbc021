// Package blobcodec packs and unpacks arbitrary byte streams into the
// 4096 BLS12-381 field elements of an EIP-4844 blob (§4.C3), keeping the
// top two bits of every field element's first byte zero so the element
// never overflows the BLS12-381 scalar field modulus.
package blobcodec

import (
	"errors"
	"fmt"
)

const (
	// FieldElementSize is the byte length of one BLS12-381 field element.
	FieldElementSize = 32
	// FieldElementsPerBlob is the number of field elements in one blob.
	FieldElementsPerBlob = 4096
	// BlobSize is the total byte length of one blob.
	BlobSize = FieldElementSize * FieldElementsPerBlob
	// roundsPerBlob is the number of 4-field-element encoding rounds.
	roundsPerBlob = FieldElementsPerBlob / 4
	// headerSize is the 4-byte {version, len_hi, len_mid, len_lo} prefix
	// packed into the very first round.
	headerSize = 4
	// MaxBlobDataSize is the maximum payload this codec can pack into one
	// blob: 4 * 31 * 1024 - 4.
	MaxBlobDataSize = 4*31*1024 - headerSize

	versionByte = 0x00
)

// Blob is the raw 131072-byte EIP-4844 blob payload.
type Blob [BlobSize]byte

var (
	// ErrPayloadTooLarge is returned by Encode when data exceeds MaxBlobDataSize.
	ErrPayloadTooLarge = errors.New("blobcodec: payload exceeds MAX_BLOB_DATA_SIZE")
	// ErrInvalidVersion is returned by Decode when the version byte isn't 0x00.
	ErrInvalidVersion = errors.New("blobcodec: invalid version byte")
	// ErrTrailingData is returned by Decode when non-zero bytes follow the
	// declared payload length.
	ErrTrailingData = errors.New("blobcodec: non-zero bytes after declared payload length")
	// ErrInvalidLength is returned by Decode when the declared length exceeds
	// what the blob can hold.
	ErrInvalidLength = errors.New("blobcodec: declared length exceeds blob capacity")
	// ErrFieldElementOverflow is returned when a field element's first byte
	// has a non-zero top two bits.
	ErrFieldElementOverflow = errors.New("blobcodec: field element first byte has non-zero top bits")
)

// Encode packs data into a new Blob using the round-based layout of §4.C3:
// 1024 rounds of 4 field elements, each round consuming 127 bytes of input
// (four 31-byte chunks plus three 1-byte chunks whose six-bit pieces are
// spread across the four elements' top bytes). The first round's initial
// 31-byte chunk is replaced by a 4-byte {version=0, len} header followed by
// 27 bytes of payload.
func Encode(data []byte) (*Blob, error) {
	if len(data) > MaxBlobDataSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrPayloadTooLarge, len(data))
	}

	// Logical input stream: the 4-byte header followed by the payload,
	// zero-padded implicitly by readChunk past its end.
	length := len(data)
	stream := make([]byte, 0, headerSize+len(data))
	stream = append(stream, versionByte, byte(length>>16), byte(length>>8), byte(length))
	stream = append(stream, data...)

	pos := 0
	readChunk := func(n int) []byte {
		buf := make([]byte, n)
		if pos < len(stream) {
			copy(buf, stream[pos:min(pos+n, len(stream))])
		}
		pos += n
		return buf
	}

	var blob Blob
	for round := 0; round < roundsPerBlob; round++ {
		c0 := readChunk(31)
		x := readChunk(1)[0]
		c1 := readChunk(31)
		y := readChunk(1)[0]
		c2 := readChunk(31)
		z := readChunk(1)[0]
		c3 := readChunk(31)

		base := round * 4 * FieldElementSize
		fe0 := blob[base : base+FieldElementSize]
		fe1 := blob[base+FieldElementSize : base+2*FieldElementSize]
		fe2 := blob[base+2*FieldElementSize : base+3*FieldElementSize]
		fe3 := blob[base+3*FieldElementSize : base+4*FieldElementSize]

		fe0[0] = x & 0b00111111
		fe1[0] = (y & 0b00001111) | ((x & 0b11000000) >> 2)
		fe2[0] = z & 0b00111111
		fe3[0] = ((z & 0b11000000) >> 2) | ((y & 0b11110000) >> 4)

		copy(fe0[1:], c0)
		copy(fe1[1:], c1)
		copy(fe2[1:], c2)
		copy(fe3[1:], c3)
	}

	return &blob, nil
}

// Decode inverts Encode, validating the version byte, the declared length,
// that no non-zero bytes trail the payload, and that every field element's
// first byte has its top two bits clear.
func Decode(blob *Blob) ([]byte, error) {
	for i := 0; i < FieldElementsPerBlob; i++ {
		if blob[i*FieldElementSize]&0b11000000 != 0 {
			return nil, fmt.Errorf("%w: element %d", ErrFieldElementOverflow, i)
		}
	}

	stream := make([]byte, 0, roundsPerBlob*127)
	for round := 0; round < roundsPerBlob; round++ {
		base := round * 4 * FieldElementSize
		fe0 := blob[base : base+FieldElementSize]
		fe1 := blob[base+FieldElementSize : base+2*FieldElementSize]
		fe2 := blob[base+2*FieldElementSize : base+3*FieldElementSize]
		fe3 := blob[base+3*FieldElementSize : base+4*FieldElementSize]

		a, b, c, d := fe0[0], fe1[0], fe2[0], fe3[0]

		x := a | ((b & 0b00110000) << 2)
		y := (b & 0b00001111) | ((d & 0b00001111) << 4)
		z := c | ((d & 0b00110000) << 2)

		stream = append(stream, fe0[1:]...)
		stream = append(stream, x)
		stream = append(stream, fe1[1:]...)
		stream = append(stream, y)
		stream = append(stream, fe2[1:]...)
		stream = append(stream, z)
		stream = append(stream, fe3[1:]...)
	}

	if stream[0] != versionByte {
		return nil, ErrInvalidVersion
	}
	length := int(stream[1])<<16 | int(stream[2])<<8 | int(stream[3])
	if length > MaxBlobDataSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrInvalidLength, length)
	}

	payload := stream[headerSize : headerSize+length]
	for _, b := range stream[headerSize+length:] {
		if b != 0 {
			return nil, ErrTrailingData
		}
	}

	out := make([]byte, length)
	copy(out, payload)
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
