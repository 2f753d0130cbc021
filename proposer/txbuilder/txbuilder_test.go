package txbuilder

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/bindings"
	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
	"github.com/NethermindEth/taiko-preconf-node/pkg/blobcodec"
)

func testInput(txList []byte) Input {
	return Input{
		Proposer:           common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Coinbase:           common.HexToAddress("0x2222222222222222222222222222222222222222"),
		AnchorBlockID:      100,
		LastBlockTimestamp: 1_700_000_000,
		Blocks: []encoding.BlockParams{
			{NumTransactions: 3, TimeShift: 0},
		},
		TxListBytes: txList,
	}
}

func TestBuildCalldataTxEncodesTxListAsCalldataArgument(t *testing.T) {
	b := &Builder{routerAddress: common.HexToAddress("0x3333333333333333333333333333333333333333")}
	txList := []byte("a compressed tx list payload")

	candidate, err := b.buildCalldataTx(testInput(txList))
	require.NoError(t, err)
	require.Equal(t, &b.routerAddress, candidate.To)

	args, err := bindings.RouterABI.Methods["proposeBatch"].Inputs.Unpack(candidate.TxData[4:])
	require.NoError(t, err)
	require.Len(t, args, 2)
	require.Equal(t, txList, args[1].([]byte))
}

func TestBuildBlobTxLeavesCalldataTxListArgumentEmpty(t *testing.T) {
	b := &Builder{routerAddress: common.HexToAddress("0x3333333333333333333333333333333333333333"), blobsPerBatch: 3}
	txList := bytes.Repeat([]byte{0x07}, 500)

	candidate, hashes, err := b.buildBlobTx(testInput(txList))
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	require.Len(t, candidate.Blobs, 1)

	args, err := bindings.RouterABI.Methods["proposeBatch"].Inputs.Unpack(candidate.TxData[4:])
	require.NoError(t, err)
	require.Equal(t, []byte{}, args[1].([]byte))

	decoded, err := blobcodec.Decode((*blobcodec.Blob)(candidate.Blobs[0]))
	require.NoError(t, err)
	require.Equal(t, txList, decoded)
}

func TestPackBlobsSplitsAcrossMultipleBlobsWhenOverCapacity(t *testing.T) {
	b := &Builder{blobsPerBatch: 3}
	txList := bytes.Repeat([]byte{0x09}, blobcodec.MaxBlobDataSize+10)

	blobs, hashes, err := b.packBlobs(txList)
	require.NoError(t, err)
	require.Len(t, blobs, 2)
	require.Len(t, hashes, 2)
	require.NotEqual(t, hashes[0], hashes[1])

	first, err := blobcodec.Decode((*blobcodec.Blob)(blobs[0]))
	require.NoError(t, err)
	require.Equal(t, txList[:blobcodec.MaxBlobDataSize], first)

	second, err := blobcodec.Decode((*blobcodec.Blob)(blobs[1]))
	require.NoError(t, err)
	require.Equal(t, txList[blobcodec.MaxBlobDataSize:], second)
}

func TestPackBlobsRejectsWhenExceedingBlobsPerBatch(t *testing.T) {
	b := &Builder{blobsPerBatch: 1}
	txList := bytes.Repeat([]byte{0x01}, blobcodec.MaxBlobDataSize+10)

	_, _, err := b.packBlobs(txList)
	require.Error(t, err)
}

func TestPackBlobsHandlesEmptyTxList(t *testing.T) {
	b := &Builder{blobsPerBatch: 3}

	blobs, hashes, err := b.packBlobs(nil)
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	require.Len(t, hashes, 1)
}
