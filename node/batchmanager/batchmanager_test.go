package batchmanager

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/node/batchbuilder"
	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
)

func queueNBatches(t *testing.T, b *batchbuilder.Builder, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		b.CreateNewBatchAndAddL2Block(uint64(i), 0, &node.L2Block{BytesLength: 1}, common.Address{})
		b.FinalizeCurrentBatch()
	}
}

func TestMax3PicksLargestOfThree(t *testing.T) {
	require.Equal(t, uint64(5), max3(5, 1, 2))
	require.Equal(t, uint64(5), max3(1, 5, 2))
	require.Equal(t, uint64(5), max3(1, 2, 5))
	require.Equal(t, uint64(0), max3(0, 0, 0))
	require.Equal(t, uint64(7), max3(7, 7, 7))
}

func TestBuildExtraDataZeroPadsSharingPercentageToLastByte(t *testing.T) {
	extra := buildExtraData(42)
	require.Len(t, extra, 32)
	for i := 0; i < 31; i++ {
		require.Equalf(t, byte(0), extra[i], "byte %d should be zero", i)
	}
	require.Equal(t, byte(42), extra[31])
}

func TestBuildExtraDataZeroSharingPercentage(t *testing.T) {
	extra := buildExtraData(0)
	require.Len(t, extra, 32)
	for _, b := range extra {
		require.Equal(t, byte(0), b)
	}
}

func TestThrottledMaxBytesPerTxListNoBacklogReturnsFullSize(t *testing.T) {
	builder := batchbuilder.New(config.BatchConfig{}, nil, 0, 0)
	m := &Manager{
		builder:           builder,
		maxBytesPerTxList: 1000,
		minBytesPerTxList: 100,
		throttlingFactor:  10,
	}
	require.Equal(t, uint64(1000), m.throttledMaxBytesPerTxList())
}

func TestThrottledMaxBytesPerTxListShrinksExponentiallyPerQueuedBatch(t *testing.T) {
	builder := batchbuilder.New(config.BatchConfig{}, nil, 0, 0)
	queueNBatches(t, builder, 1)
	m := &Manager{
		builder:           builder,
		maxBytesPerTxList: 1000,
		minBytesPerTxList: 100,
		throttlingFactor:  10,
	}
	require.Equal(t, uint64(900), m.throttledMaxBytesPerTxList())
}

func TestThrottledMaxBytesPerTxListFloorsAtMinBytes(t *testing.T) {
	builder := batchbuilder.New(config.BatchConfig{}, nil, 0, 0)
	queueNBatches(t, builder, 50)
	m := &Manager{
		builder:           builder,
		maxBytesPerTxList: 1000,
		minBytesPerTxList: 100,
		throttlingFactor:  10,
	}
	require.Equal(t, uint64(100), m.throttledMaxBytesPerTxList())
}

func TestThrottledMaxBytesPerTxListZeroFactorDisablesThrottling(t *testing.T) {
	builder := batchbuilder.New(config.BatchConfig{}, nil, 0, 0)
	queueNBatches(t, builder, 5)
	m := &Manager{
		builder:           builder,
		maxBytesPerTxList: 1000,
		minBytesPerTxList: 100,
		throttlingFactor:  0,
	}
	require.Equal(t, uint64(1000), m.throttledMaxBytesPerTxList())
}
