// Package txlistcodec RLP-encodes and zlib-compresses L2 transaction lists
// the way the batch builder measures and packages them for L1 submission
// (§3 L2Block.bytes_length, §4.C8 compress()).
package txlistcodec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeAndCompress RLP-encodes txs and zlib-compresses the result at the
// default compression level, matching the source driver's
// encode_and_compress.
func EncodeAndCompress(txs types.Transactions) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(txs)
	if err != nil {
		return nil, fmt.Errorf("txlistcodec: rlp encode: %w", err)
	}
	return Compress(raw)
}

// Compress zlib-compresses raw bytes at the default compression level.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("txlistcodec: zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("txlistcodec: zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates zlib-compressed bytes.
func Decompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("txlistcodec: zlib reader: %w", err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("txlistcodec: zlib read: %w", err)
	}
	return raw, nil
}

// UncompressAndDecode inverts EncodeAndCompress.
func UncompressAndDecode(compressed []byte) (types.Transactions, error) {
	raw, err := Decompress(compressed)
	if err != nil {
		return nil, err
	}
	var txs types.Transactions
	if err := rlp.DecodeBytes(raw, &txs); err != nil {
		return nil, fmt.Errorf("txlistcodec: rlp decode: %w", err)
	}
	return txs, nil
}
