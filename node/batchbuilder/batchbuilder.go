// Package batchbuilder implements the C8 Batch Builder (§4.C8): it owns the
// current open batch and the FIFO of batches ready to submit, enforcing the
// §3 size/count/time-shift invariants with the staged compression retry the
// spec requires.
package batchbuilder

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/pkg/txlistcodec"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txmonitor"
)

// Submitter hands a queued batch off to the submission pipeline (C6+C7) and
// reports a classified error if the hand-off itself failed synchronously.
type Submitter func(ctx context.Context, qb node.QueuedBatch) *txmonitor.TransactionError

// Builder is the C8 Batch Builder. The Node Loop is its sole writer (§3
// Ownership).
type Builder struct {
	cfg               config.BatchConfig
	clock             *slotclock.SlotClock
	l1SlotDurationSec uint64
	heartbeatMs       uint64

	maxBlocksPerBatch     uint64
	maxBytesSizeOfBatch   uint64
	maxAnchorHeightOffset uint64

	current                *node.Batch
	queue                  []node.QueuedBatch
	pendingForcedInclusion *node.ForcedInclusionBatch

	// compressFn recomputes a batch's compressed byte length; a field
	// (rather than a direct call to the package-level compress) so tests
	// can substitute a deterministic stand-in for real RLP+zlib.
	compressFn func(*node.Batch) (uint64, error)
}

// New wires the batch config and slot clock. maxBlocksPerBatch and
// maxBytesSizeOfBatch start from cfg and are expected to be refreshed from
// on-chain protocol config via SetLimits once available.
func New(cfg config.BatchConfig, clock *slotclock.SlotClock, l1SlotDurationSec, heartbeatMs uint64) *Builder {
	return &Builder{
		cfg:                 cfg,
		clock:               clock,
		l1SlotDurationSec:   l1SlotDurationSec,
		heartbeatMs:         heartbeatMs,
		maxBlocksPerBatch:   cfg.MaxBlocksPerBatch,
		maxBytesSizeOfBatch: cfg.MaxBytesSizeOfBatch,
		compressFn:          compress,
	}
}

// SetLimits overrides the block-count/byte-size ceilings with values read
// from the L1 protocol config at runtime (§6 pacayaConfig()).
func (b *Builder) SetLimits(maxBlocksPerBatch, maxBytesSizeOfBatch uint64) {
	b.maxBlocksPerBatch = maxBlocksPerBatch
	b.maxBytesSizeOfBatch = maxBytesSizeOfBatch
}

// SetMaxAnchorHeightOffset sets the effective anchor-height-offset ceiling,
// already reduced by BatchConfig.MaxAnchorHeightOffsetReductionValue by the
// caller.
func (b *Builder) SetMaxAnchorHeightOffset(v uint64) {
	b.maxAnchorHeightOffset = v
}

// Current returns the open batch, or nil.
func (b *Builder) Current() *node.Batch {
	return b.current
}

// QueueLen reports how many finalized batches are waiting to be submitted.
func (b *Builder) QueueLen() int {
	return len(b.queue)
}

// SetPendingForcedInclusion stashes a forced-inclusion prefix to be paired
// with the batch the next finalize_current_batch produces (§4.C8, §3).
func (b *Builder) SetPendingForcedInclusion(fi *node.ForcedInclusionBatch) {
	b.pendingForcedInclusion = fi
}

// compress re-runs RLP+zlib over the concatenation of the batch's L2Block
// tx lists, in order, and returns the resulting byte length (§4.C8
// "compress()"). It does not mutate batch; callers decide whether to store
// the result.
func compress(batch *node.Batch) (uint64, error) {
	var all types.Transactions
	for _, blk := range batch.L2Blocks {
		all = append(all, blk.TxList...)
	}
	packed, err := txlistcodec.EncodeAndCompress(all)
	if err != nil {
		return 0, fmt.Errorf("batchbuilder: compress: %w", err)
	}
	return uint64(len(packed)), nil
}

func cloneBatch(batch *node.Batch) *node.Batch {
	clone := &node.Batch{
		AnchorBlockID:           batch.AnchorBlockID,
		AnchorBlockTimestampSec: batch.AnchorBlockTimestampSec,
		Coinbase:                batch.Coinbase,
		TotalBytes:              batch.TotalBytes,
		L2Blocks:                make([]*node.L2Block, len(batch.L2Blocks)),
	}
	copy(clone.L2Blocks, batch.L2Blocks)
	return clone
}

// CanConsume reports whether appending block (to be proposed with coinbase)
// to the current open batch keeps every §3 invariant. A nil current batch
// always returns false — there is nothing open to add to yet, forcing the
// caller to CreateNewBatchAndAddL2Block instead.
func (b *Builder) CanConsume(block *node.L2Block, coinbase common.Address) bool {
	if b.current == nil {
		return false
	}
	if b.current.Coinbase != coinbase {
		return false
	}
	if uint64(len(b.current.L2Blocks))+1 > b.maxBlocksPerBatch {
		return false
	}
	if n := len(b.current.L2Blocks); n > 0 {
		last := b.current.L2Blocks[n-1]
		if block.TimestampSec < last.TimestampSec {
			return false
		}
		if block.TimestampSec-last.TimestampSec > b.cfg.MaxTimeShiftBetweenBlocksSec {
			return false
		}
	}

	// Stage 1: cheap check against the currently tracked total.
	if b.current.TotalBytes+block.BytesLength <= b.maxBytesSizeOfBatch {
		return true
	}

	// Stage 2: compress the open batch (without the new block) and retry.
	recompressed, err := b.compressFn(b.current)
	if err != nil {
		return false
	}
	b.current.TotalBytes = recompressed
	if recompressed+block.BytesLength <= b.maxBytesSizeOfBatch {
		return true
	}

	// Stage 3: clone, append, compress the clone; zlib's boundary overhead
	// can go either way so this is not redundant with stage 2.
	clone := cloneBatch(b.current)
	clone.L2Blocks = append(clone.L2Blocks, block)
	cloneTotal, err := b.compressFn(clone)
	if err != nil {
		return false
	}
	return cloneTotal <= b.maxBytesSizeOfBatch
}

// AddL2Block appends block to the open batch. Preconditions: CanConsume(block,
// coinbase) must have just returned true. Bumps TotalBytes by the block's
// *uncompressed* BytesLength; the tracked number stays a conservative upper
// bound until the next compress() (§4.C8).
func (b *Builder) AddL2Block(block *node.L2Block) error {
	if b.current == nil {
		return fmt.Errorf("batchbuilder: add_l2_block called with no open batch")
	}
	b.current.L2Blocks = append(b.current.L2Blocks, block)
	b.current.TotalBytes += block.BytesLength
	return nil
}

// FinalizeCurrentBatch moves the open batch (if non-empty) into the ready
// queue, pairing it with any pending forced-inclusion prefix, then clears
// that slot. A no-op if there is no open batch.
func (b *Builder) FinalizeCurrentBatch() {
	if b.current == nil || len(b.current.L2Blocks) == 0 {
		b.current = nil
		return
	}
	b.queue = append(b.queue, node.QueuedBatch{
		ForcedInclusion: b.pendingForcedInclusion,
		Batch:           b.current,
	})
	b.pendingForcedInclusion = nil
	b.current = nil
}

// CreateNewBatchAndAddL2Block finalizes the open batch (if any) then opens a
// fresh one seeded with block.
func (b *Builder) CreateNewBatchAndAddL2Block(
	anchorBlockID, anchorBlockTimestampSec uint64,
	block *node.L2Block,
	coinbase common.Address,
) {
	b.FinalizeCurrentBatch()
	b.current = &node.Batch{
		AnchorBlockID:           anchorBlockID,
		AnchorBlockTimestampSec: anchorBlockTimestampSec,
		Coinbase:                coinbase,
		L2Blocks:                []*node.L2Block{block},
		TotalBytes:              block.BytesLength,
	}
}

// RemoveLastL2Block shrinks the open batch by one, invoked by the Batch
// Manager when the driver rejects a preconfirmed block. If the batch becomes
// empty it is dropped entirely.
func (b *Builder) RemoveLastL2Block() {
	if b.current == nil || len(b.current.L2Blocks) == 0 {
		return
	}
	b.current.L2Blocks = b.current.L2Blocks[:len(b.current.L2Blocks)-1]
	if len(b.current.L2Blocks) == 0 {
		b.current = nil
		return
	}
	recompressed, err := b.compressFn(b.current)
	if err == nil {
		b.current.TotalBytes = recompressed
	}
}

// Reset drops the open batch and the entire ready queue, used when the node
// holds neither role (§4.C13 step 6) or on re-anchor (Scenario 4).
func (b *Builder) Reset() {
	b.current = nil
	b.queue = nil
	b.pendingForcedInclusion = nil
}

// IsTimeShiftExpired reports whether now is far enough past the open
// batch's last block that a new block must start a fresh batch (§4.C8).
func (b *Builder) IsTimeShiftExpired(nowSec uint64) bool {
	last := b.lastBlock()
	if last == nil {
		return false
	}
	return nowSec-last.TimestampSec > b.cfg.MaxTimeShiftBetweenBlocksSec
}

// IsTimeShiftBetweenBlocksExpiring reports whether the time-shift ceiling is
// about to be hit, the trigger for injecting an empty L2 block to keep the
// batch open (§4.C8, Boundary behaviors).
func (b *Builder) IsTimeShiftBetweenBlocksExpiring(nowSec uint64) bool {
	last := b.lastBlock()
	if last == nil {
		return false
	}
	if b.cfg.MaxTimeShiftBetweenBlocksSec < b.l1SlotDurationSec {
		return false
	}
	threshold := b.cfg.MaxTimeShiftBetweenBlocksSec - b.l1SlotDurationSec
	return nowSec-last.TimestampSec >= threshold
}

// IsGreaterThanMaxAnchorHeightOffset reports whether the open batch's anchor
// has aged past the effective ceiling, the trigger for a mandatory
// finalize-and-submit (§4.C8).
func (b *Builder) IsGreaterThanMaxAnchorHeightOffset() (bool, error) {
	if b.current == nil {
		return false, nil
	}
	slots, err := b.clock.SlotsSinceL1Block(b.current.AnchorBlockTimestampSec)
	if err != nil {
		return false, fmt.Errorf("batchbuilder: anchor height offset: %w", err)
	}
	return slots > b.maxAnchorHeightOffset, nil
}

func (b *Builder) lastBlock() *node.L2Block {
	if b.current == nil || len(b.current.L2Blocks) == 0 {
		return nil
	}
	return b.current.L2Blocks[len(b.current.L2Blocks)-1]
}

// ShouldNewBlockBeCreated decides whether this heartbeat should produce a new
// L2 block (possibly empty) at all (§4.C8).
func (b *Builder) ShouldNewBlockBeCreated(numPendingTxs uint64, nowSec uint64, endOfSequencing bool) bool {
	if b.IsTimeShiftBetweenBlocksExpiring(nowSec) || endOfSequencing {
		return true
	}
	if numPendingTxs == 0 {
		return false
	}
	if numPendingTxs >= b.cfg.PreconfMinTxs {
		return true
	}
	last := b.lastBlock()
	if last == nil {
		return false
	}
	skipped := (nowSec - last.TimestampSec) * 1000 / b.heartbeatMs
	return skipped > b.cfg.PreconfMaxSkippedL2Slots
}

// TrySubmitOldestBatch is called from the Node Loop (§4.C13 step 5b) with
// submitOnlyFull = is_preconfer: while still preconfirming we leave a
// not-yet-full open batch alone rather than force a premature finalize. That
// finalize step runs even when the Transaction Monitor is busy; a busy
// monitor only means nothing is submitted this call. Otherwise it peeks the
// front of the ready queue and hands it to submit; on a non-EstimationTooEarly
// error every queued batch is dropped (they shared the condition that
// caused the failure), on EstimationTooEarly the queue is left untouched for
// a retry next tick, and on success the front entry is popped.
func (b *Builder) TrySubmitOldestBatch(ctx context.Context, submitOnlyFull, monitorBusy bool, submit Submitter) {
	if b.current != nil {
		full := uint64(len(b.current.L2Blocks)) >= b.maxBlocksPerBatch
		if full {
			b.FinalizeCurrentBatch()
		} else if !submitOnlyFull {
			b.FinalizeCurrentBatch()
		}
	}

	if monitorBusy {
		return
	}
	if len(b.queue) == 0 {
		return
	}

	front := b.queue[0]
	if txErr := submit(ctx, front); txErr != nil {
		if txErr.Kind != txmonitor.EstimationTooEarly {
			b.queue = nil
		}
		return
	}
	b.queue = b.queue[1:]
}
