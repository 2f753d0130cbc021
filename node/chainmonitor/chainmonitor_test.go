package chainmonitor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func fakeEmptyLog() types.Log {
	return types.Log{}
}

func TestClassifyHeadTransitionInitialStateNeverBreaks(t *testing.T) {
	broke, expected := classifyHeadTransition(status{}, 1, common.Hash{})
	require.False(t, broke)
	require.False(t, expected)
}

func TestClassifyHeadTransitionNormalAdvanceDoesNotBreak(t *testing.T) {
	prevHash := common.HexToHash("0xaa")
	prev := status{height: 10, hash: prevHash}

	broke, expected := classifyHeadTransition(prev, 11, prevHash)
	require.False(t, broke)
	require.False(t, expected)
}

func TestClassifyHeadTransitionUnexpectedNumberBreaksUnannounced(t *testing.T) {
	prev := status{height: 10, hash: common.HexToHash("0xaa")}

	broke, expected := classifyHeadTransition(prev, 15, common.HexToHash("0xbb"))
	require.True(t, broke)
	require.False(t, expected)
}

func TestClassifyHeadTransitionUnexpectedParentHashBreaksUnannounced(t *testing.T) {
	prev := status{height: 10, hash: common.HexToHash("0xaa")}

	// number advances correctly but parent hash diverges from the tracked one
	broke, expected := classifyHeadTransition(prev, 11, common.HexToHash("0xcc"))
	require.True(t, broke)
	require.False(t, expected)
}

func TestClassifyHeadTransitionMatchesArmedExpectedReorg(t *testing.T) {
	expectedTarget := uint64(20)
	prev := status{height: 10, hash: common.HexToHash("0xaa"), expectedReorg: &expectedTarget}

	broke, expected := classifyHeadTransition(prev, 20, common.HexToHash("0xdd"))
	require.True(t, broke)
	require.True(t, expected, "break at the armed target block number should be silent")
}

func TestClassifyHeadTransitionArmedButDifferentTargetStillWarns(t *testing.T) {
	expectedTarget := uint64(20)
	prev := status{height: 10, hash: common.HexToHash("0xaa"), expectedReorg: &expectedTarget}

	broke, expected := classifyHeadTransition(prev, 99, common.HexToHash("0xdd"))
	require.True(t, broke)
	require.False(t, expected, "a break at a different number than the armed target still warns")
}

func TestDecodeLastBlockID(t *testing.T) {
	_, err := decodeLastBlockID(fakeEmptyLog())
	require.Error(t, err, "an empty log has no ABI-encoded payload to unpack")
}
