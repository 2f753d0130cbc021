package batchbuilder

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txmonitor"
)

var coinbase = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

func newTestBuilder() *Builder {
	cfg := config.BatchConfig{
		MaxBlocksPerBatch:            10,
		MaxBytesSizeOfBatch:          1_000,
		MaxTimeShiftBetweenBlocksSec: 255,
		PreconfMinTxs:                1,
		PreconfMaxSkippedL2Slots:     4,
	}
	clock := slotclock.New(0, 12, 32, 2000)
	return New(cfg, clock, 12, 2000)
}

func blockOfSize(bytesLength, tsSec uint64) *node.L2Block {
	return &node.L2Block{BytesLength: bytesLength, TimestampSec: tsSec}
}

// TestScenario1OneBlockBatchThroughBlobPath mirrors the spec's Scenario 1:
// a single 228-byte block creates a one-block batch whose TotalBytes stays
// at the uncompressed bound until finalize.
func TestScenario1OneBlockBatchThroughBlobPath(t *testing.T) {
	b := newTestBuilder()
	block := blockOfSize(228, 1_700_000_000)

	require.False(t, b.CanConsume(block, coinbase))
	b.CreateNewBatchAndAddL2Block(100, 1_699_999_000, block, coinbase)

	require.NotNil(t, b.Current())
	require.Len(t, b.Current().L2Blocks, 1)
	require.Equal(t, uint64(228), b.Current().TotalBytes)

	b.FinalizeCurrentBatch()
	require.Nil(t, b.Current())
	require.Equal(t, 1, b.QueueLen())
}

// TestScenario2CompressionAvoidsNewBatch reproduces the spec's Scenario 2
// numbers exactly using a deterministic stand-in compressor, since real
// RLP+zlib output depends on the transactions' actual bytes.
func TestScenario2CompressionAvoidsNewBatch(t *testing.T) {
	newBatch := func(maxBytes uint64) *Builder {
		b := newTestBuilder()
		b.maxBytesSizeOfBatch = maxBytes
		b.current = &node.Batch{
			Coinbase:   coinbase,
			TotalBytes: 456,
			L2Blocks: []*node.L2Block{
				blockOfSize(228, 1_000),
				blockOfSize(228, 1_010),
			},
		}
		calls := 0
		b.compressFn = func(batch *node.Batch) (uint64, error) {
			calls++
			switch len(batch.L2Blocks) {
			case 2:
				return 242, nil
			case 3:
				return 242, nil // cloned compression for the 366 case also lands at 242
			default:
				t.Fatalf("unexpected block count %d", len(batch.L2Blocks))
				return 0, nil
			}
		}
		return b
	}

	newBlock := blockOfSize(136, 1_020)

	b378 := newBatch(378)
	require.True(t, b378.CanConsume(newBlock, coinbase))
	require.Equal(t, uint64(242), b378.current.TotalBytes)
	require.NoError(t, b378.AddL2Block(newBlock))
	require.Len(t, b378.current.L2Blocks, 3)
	require.Equal(t, uint64(242+136), b378.current.TotalBytes)

	b366 := newBatch(366)
	require.True(t, b366.CanConsume(newBlock, coinbase))

	b365 := newBatch(365)
	b365.compressFn = func(batch *node.Batch) (uint64, error) {
		if len(batch.L2Blocks) == 3 {
			return 366, nil
		}
		return 242, nil
	}
	require.False(t, b365.CanConsume(newBlock, coinbase))
}

func TestCanConsumeFalseWhenNoCurrentBatch(t *testing.T) {
	b := newTestBuilder()
	require.False(t, b.CanConsume(blockOfSize(10, 1), coinbase))
}

func TestCanConsumeFalseOnBlockCountLimit(t *testing.T) {
	b := newTestBuilder()
	b.maxBlocksPerBatch = 1
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}, TotalBytes: 10}
	require.False(t, b.CanConsume(blockOfSize(10, 2), coinbase))
}

func TestCanConsumeFalseOnCoinbaseMismatch(t *testing.T) {
	b := newTestBuilder()
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}, TotalBytes: 10}
	other := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.False(t, b.CanConsume(blockOfSize(10, 2), other))
}

func TestCanConsumeFalseOnTimeShiftExceeded(t *testing.T) {
	b := newTestBuilder()
	b.cfg.MaxTimeShiftBetweenBlocksSec = 10
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 100)}, TotalBytes: 10}
	require.False(t, b.CanConsume(blockOfSize(10, 120), coinbase))
	require.True(t, b.CanConsume(blockOfSize(10, 109), coinbase))
}

func TestRemoveLastL2BlockDropsEmptyBatch(t *testing.T) {
	b := newTestBuilder()
	block := blockOfSize(228, 1)
	b.CreateNewBatchAndAddL2Block(1, 1, block, coinbase)
	require.NotNil(t, b.Current())

	b.RemoveLastL2Block()
	require.Nil(t, b.Current())
}

func TestRemoveLastL2BlockRecompressesRemaining(t *testing.T) {
	b := newTestBuilder()
	b.current = &node.Batch{
		Coinbase: coinbase,
		L2Blocks: []*node.L2Block{blockOfSize(228, 1), blockOfSize(136, 2)},
	}
	b.compressFn = func(batch *node.Batch) (uint64, error) { return 99, nil }

	b.RemoveLastL2Block()
	require.Len(t, b.current.L2Blocks, 1)
	require.Equal(t, uint64(99), b.current.TotalBytes)
}

func TestIsGreaterThanMaxAnchorHeightOffsetNilBatch(t *testing.T) {
	b := newTestBuilder()
	over, err := b.IsGreaterThanMaxAnchorHeightOffset()
	require.NoError(t, err)
	require.False(t, over)
}

func TestShouldNewBlockBeCreated(t *testing.T) {
	b := newTestBuilder()

	require.True(t, b.ShouldNewBlockBeCreated(0, 100, true), "end of sequencing always creates a block")
	require.False(t, b.ShouldNewBlockBeCreated(0, 100, false), "no pending txs, nothing forcing a block")
	require.True(t, b.ShouldNewBlockBeCreated(1, 100, false), "one pending tx meets preconf_min_txs=1")
}

func TestShouldNewBlockBeCreatedSkippedSlots(t *testing.T) {
	b := newTestBuilder()
	b.cfg.PreconfMinTxs = 100
	b.cfg.PreconfMaxSkippedL2Slots = 4
	b.heartbeatMs = 2000
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 0)}}

	// 5 elapsed seconds / 2s heartbeat = 2 skipped slots, below the ceiling of 4.
	require.False(t, b.ShouldNewBlockBeCreated(1, 5, false))
	// 10 elapsed seconds / 2s heartbeat = 5 skipped slots, exceeds 4.
	require.True(t, b.ShouldNewBlockBeCreated(1, 10, false))
}

func TestTrySubmitOldestBatchPopsOnSuccess(t *testing.T) {
	b := newTestBuilder()
	b.queue = []node.QueuedBatch{{Batch: &node.Batch{Coinbase: coinbase}}}

	called := false
	b.TrySubmitOldestBatch(context.Background(), true, false, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		called = true
		return nil
	})
	require.True(t, called)
	require.Equal(t, 0, b.QueueLen())
}

func TestTrySubmitOldestBatchNoOpWhenMonitorBusy(t *testing.T) {
	b := newTestBuilder()
	b.queue = []node.QueuedBatch{{Batch: &node.Batch{Coinbase: coinbase}}}

	b.TrySubmitOldestBatch(context.Background(), true, true, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		t.Fatal("submit should not be called while the monitor is busy")
		return nil
	})
	require.Equal(t, 1, b.QueueLen())
}

func TestTrySubmitOldestBatchDropsQueueOnFatalError(t *testing.T) {
	b := newTestBuilder()
	b.queue = []node.QueuedBatch{
		{Batch: &node.Batch{Coinbase: coinbase}},
		{Batch: &node.Batch{Coinbase: coinbase}},
	}

	b.TrySubmitOldestBatch(context.Background(), true, false, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		return &txmonitor.TransactionError{Kind: txmonitor.InsufficientFunds}
	})
	require.Equal(t, 0, b.QueueLen())
}

func TestTrySubmitOldestBatchKeepsQueueOnEstimationTooEarly(t *testing.T) {
	b := newTestBuilder()
	b.queue = []node.QueuedBatch{
		{Batch: &node.Batch{Coinbase: coinbase}},
		{Batch: &node.Batch{Coinbase: coinbase}},
	}

	b.TrySubmitOldestBatch(context.Background(), true, false, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		return &txmonitor.TransactionError{Kind: txmonitor.EstimationTooEarly}
	})
	require.Equal(t, 2, b.QueueLen())
}

func TestTrySubmitOldestBatchFinalizesFullOpenBatchFirst(t *testing.T) {
	b := newTestBuilder()
	b.maxBlocksPerBatch = 1
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}, TotalBytes: 10}

	b.TrySubmitOldestBatch(context.Background(), true, true, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		t.Fatal("monitor busy, submit must not be called")
		return nil
	})
	require.Nil(t, b.Current())
	require.Equal(t, 1, b.QueueLen())
}

func TestTrySubmitOldestBatchFlushesPartialBatchWhenNotSubmitOnlyFull(t *testing.T) {
	b := newTestBuilder()
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}, TotalBytes: 10}

	b.TrySubmitOldestBatch(context.Background(), false, true, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		t.Fatal("monitor busy, submit must not be called")
		return nil
	})
	require.Nil(t, b.Current())
	require.Equal(t, 1, b.QueueLen())
}

func TestTrySubmitOldestBatchLeavesPartialBatchOpenWhenSubmitOnlyFull(t *testing.T) {
	b := newTestBuilder()
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}, TotalBytes: 10}

	b.TrySubmitOldestBatch(context.Background(), true, true, func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError {
		t.Fatal("monitor busy, submit must not be called")
		return nil
	})
	require.NotNil(t, b.Current())
	require.Equal(t, 0, b.QueueLen())
}

func TestResetClearsEverything(t *testing.T) {
	b := newTestBuilder()
	b.current = &node.Batch{Coinbase: coinbase, L2Blocks: []*node.L2Block{blockOfSize(10, 1)}}
	b.queue = []node.QueuedBatch{{Batch: &node.Batch{}}}
	b.pendingForcedInclusion = &node.ForcedInclusionBatch{}

	b.Reset()
	require.Nil(t, b.Current())
	require.Equal(t, 0, b.QueueLen())
	require.Nil(t, b.pendingForcedInclusion)
}
