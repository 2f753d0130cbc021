package utils

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Compress compresses the given bytes using zlib, matching the compression
// scheme the L1 inbox contract expects for proposed tx list bytes.
func Compress(data []byte) ([]byte, error) {
	var b bytes.Buffer

	w := zlib.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write data to zlib writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zlib writer: %w", err)
	}

	return b.Bytes(), nil
}

// Decompress decompresses the given zlib-compressed bytes.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return out, nil
}
