package txmonitor

import (
	"math/big"
	"testing"

	"github.com/ethereum-optimism/optimism/op-service/eth"
	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/pkg/blobcodec"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
)

func TestErrorKindFatalClassification(t *testing.T) {
	recoverable := []ErrorKind{EstimationTooEarly, ReanchorRequired, OldestForcedInclusionDue, NotTheOperatorInCurrentEpoch}
	for _, k := range recoverable {
		require.Falsef(t, k.Fatal(), "%s should be recoverable", k)
	}

	fatal := []ErrorKind{
		UnsupportedTransactionType, GetBlockNumberFailed, InsufficientFunds, TimestampTooLarge,
		TransactionReverted, NotConfirmed, EstimationFailed, BuildTransactionFailed, Web3SignerFailed,
	}
	for _, k := range fatal {
		require.Truef(t, k.Fatal(), "%s should be fatal", k)
	}
}

func TestErrorKindStringNamesEveryVariant(t *testing.T) {
	kinds := []ErrorKind{
		UnsupportedTransactionType, GetBlockNumberFailed, EstimationTooEarly, InsufficientFunds,
		ReanchorRequired, TimestampTooLarge, OldestForcedInclusionDue, NotTheOperatorInCurrentEpoch,
		TransactionReverted, NotConfirmed, EstimationFailed, BuildTransactionFailed, Web3SignerFailed,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		require.NotEqual(t, "Unknown", s)
		require.False(t, seen[s], "duplicate String() value %s", s)
		seen[s] = true
	}
}

func TestTransactionErrorMessageIncludesKindAndCause(t *testing.T) {
	err := &TransactionError{Kind: InsufficientFunds, Err: require.AnError}
	require.Contains(t, err.Error(), "InsufficientFunds")
	require.Contains(t, err.Error(), require.AnError.Error())

	bare := &TransactionError{Kind: NotConfirmed}
	require.Equal(t, "NotConfirmed", bare.Error())
}

func TestClassifySelectorMapsEverySentinel(t *testing.T) {
	cases := []struct {
		sel  [4]byte
		want ErrorKind
	}{
		{selTimestampTooLarge, EstimationTooEarly},
		{selZeroAnchorBlockHash, EstimationTooEarly},
		{selAnchorBlockIdTooSmall, ReanchorRequired},
		{selTimestampTooSmall, ReanchorRequired},
		{selAnchorBlockIdSmallerThanParent, ReanchorRequired},
		{selTimestampSmallerThanParent, ReanchorRequired},
		{selOldestForcedInclusionDue, OldestForcedInclusionDue},
		{selNotOperatorA, NotTheOperatorInCurrentEpoch},
		{selNotOperatorB, NotTheOperatorInCurrentEpoch},
		{selNotOperatorC, NotTheOperatorInCurrentEpoch},
	}
	for _, c := range cases {
		got, ok := classifySelector(c.sel)
		require.True(t, ok)
		require.Equal(t, c.want, got)
	}

	_, ok := classifySelector([4]byte{0xde, 0xad, 0xbe, 0xef})
	require.False(t, ok)
}

func TestExtractSelectorFindsOutputInNestedCall(t *testing.T) {
	inner := rpc.CallFrame{Output: []byte{0x1e, 0x66, 0xa7, 0x70, 0x00}}
	outer := rpc.CallFrame{Calls: []rpc.CallFrame{inner}}

	sel, ok := extractSelector(&outer)
	require.True(t, ok)
	require.Equal(t, selOldestForcedInclusionDue, sel)
}

func TestExtractSelectorFalseWhenNoOutputAnywhere(t *testing.T) {
	frame := rpc.CallFrame{Calls: []rpc.CallFrame{{}, {}}}
	_, ok := extractSelector(&frame)
	require.False(t, ok)
}

func TestRequestIsBlobReflectsCandidateBlobs(t *testing.T) {
	noBlobs := Request{Candidate: &txmgr.TxCandidate{}}
	require.False(t, noBlobs.isBlob())

	withBlobs := Request{Candidate: &txmgr.TxCandidate{Blobs: []*eth.Blob{new(eth.Blob)}}}
	require.True(t, withBlobs.isBlob())
}

func TestBlobSidecarProducesMatchingCommitmentsAndHashes(t *testing.T) {
	packed, err := blobcodec.Encode([]byte("hello from the transaction monitor"))
	require.NoError(t, err)

	blob := new(eth.Blob)
	copy(blob[:], packed[:])

	sidecar, hashes, err := blobSidecar(&txmgr.TxCandidate{Blobs: []*eth.Blob{blob}})
	require.NoError(t, err)
	require.Len(t, hashes, 1)
	require.Len(t, sidecar.Blobs, 1)
	require.Len(t, sidecar.Commitments, 1)
	require.Len(t, sidecar.Proofs, 1)
	require.Equal(t, byte(0x01), hashes[0][0])
}

func TestUint256FromBigRoundTrips(t *testing.T) {
	v := uint256FromBig(big.NewInt(12345))
	require.Equal(t, uint64(12345), v.Uint64())
}
