package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/proposer/txmonitor"
)

func TestClassifyTxErrorEstimationTooEarlyAlwaysContinues(t *testing.T) {
	require.Equal(t, actionContinue, classifyTxError(txmonitor.EstimationTooEarly, false, false))
	require.Equal(t, actionContinue, classifyTxError(txmonitor.EstimationTooEarly, true, true))
}

func TestClassifyTxErrorReanchorRequiredOnlyWhenBothRoles(t *testing.T) {
	require.Equal(t, actionReanchor, classifyTxError(txmonitor.ReanchorRequired, true, true))
	require.Equal(t, actionFatal, classifyTxError(txmonitor.ReanchorRequired, true, false))
	require.Equal(t, actionFatal, classifyTxError(txmonitor.ReanchorRequired, false, true))
	require.Equal(t, actionFatal, classifyTxError(txmonitor.ReanchorRequired, false, false))
}

func TestClassifyTxErrorOldestForcedInclusionDueTriggersForceInclusion(t *testing.T) {
	require.Equal(t, actionForceInclusion, classifyTxError(txmonitor.OldestForcedInclusionDue, false, false))
	require.Equal(t, actionForceInclusion, classifyTxError(txmonitor.OldestForcedInclusionDue, true, true))
}

func TestClassifyTxErrorNotTheOperatorInCurrentEpochTriggersResync(t *testing.T) {
	require.Equal(t, actionResyncOperator, classifyTxError(txmonitor.NotTheOperatorInCurrentEpoch, false, false))
	require.Equal(t, actionResyncOperator, classifyTxError(txmonitor.NotTheOperatorInCurrentEpoch, true, true))
}

func TestClassifyTxErrorEverythingElseIsFatal(t *testing.T) {
	for _, kind := range []txmonitor.ErrorKind{
		txmonitor.UnsupportedTransactionType,
		txmonitor.InsufficientFunds,
		txmonitor.TimestampTooLarge,
		txmonitor.TransactionReverted,
		txmonitor.NotConfirmed,
		txmonitor.EstimationFailed,
		txmonitor.BuildTransactionFailed,
		txmonitor.Web3SignerFailed,
		txmonitor.GetBlockNumberFailed,
	} {
		require.Equal(t, actionFatal, classifyTxError(kind, true, true))
	}
}

func TestShouldShutdownThresholdIsHalfAnEpochOfHeartbeats(t *testing.T) {
	const l2SlotsPerEpoch = 64

	require.False(t, shouldShutdown(0, l2SlotsPerEpoch))
	require.False(t, shouldShutdown(l2SlotsPerEpoch/2, l2SlotsPerEpoch))
	require.True(t, shouldShutdown(l2SlotsPerEpoch/2+1, l2SlotsPerEpoch))
}

func TestCompressBatchTxListsIncludesForcedInclusionPrefix(t *testing.T) {
	batch := &Batch{
		L2Blocks: []*L2Block{
			{TimestampSec: 100},
			{TimestampSec: 102},
		},
	}

	withoutFI, err := compressBatchTxLists(batch, nil)
	require.NoError(t, err)
	require.NotEmpty(t, withoutFI)

	withFI, err := compressBatchTxLists(batch, &ForcedInclusionBatch{})
	require.NoError(t, err)
	require.NotEmpty(t, withFI)
}
