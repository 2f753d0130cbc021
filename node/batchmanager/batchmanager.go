// Package batchmanager implements the C9 Batch Manager (§4.C9): it glues the
// L2 Client Adapter, L1 Client Adapter and Batch Builder together on each
// heartbeat, building the anchor transaction, shaping L2 blocks and feeding
// them both to the batch builder and to the driver.
package batchmanager

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/node/batchbuilder"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/signer"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/pkg/txlistcodec"
)

// preconfBlockGasLimit is the driver's fixed per-block gas limit (§4.C9
// step 5).
const preconfBlockGasLimit = 241_000_000

// Manager is the C9 Batch Manager. The Node Loop is its sole caller.
type Manager struct {
	l1           *rpc.L1Client
	l2           *rpc.L2Client
	clock        *slotclock.SlotClock
	builder      *batchbuilder.Builder
	anchorSigner *signer.FixedKSigner

	coinbase          common.Address
	l1HeightLag       uint64
	maxBytesPerTxList uint64
	minBytesPerTxList uint64
	throttlingFactor  uint64
	baseFeeCfg        encoding.BaseFeeConfig
}

// New wires every collaborator the Batch Manager needs. coinbase is the
// configured preconfer address, used both as the batch's coinbase and the
// driver's fee_recipient. minBytesPerTxList and throttlingFactor feed
// maxBytesPerTxList's exponential backed-up-submitter throttling (§6
// MIN_BYTES_PER_TX_LIST, THROTTLING_FACTOR); throttlingFactor of 0 disables
// throttling (no division by zero, requested size is used as-is).
func New(
	l1 *rpc.L1Client,
	l2 *rpc.L2Client,
	clock *slotclock.SlotClock,
	builder *batchbuilder.Builder,
	anchorSigner *signer.FixedKSigner,
	coinbase common.Address,
	l1HeightLag uint64,
	maxBytesPerTxList uint64,
	minBytesPerTxList uint64,
	throttlingFactor uint64,
) *Manager {
	return &Manager{
		l1:                l1,
		l2:                l2,
		clock:             clock,
		builder:           builder,
		anchorSigner:      anchorSigner,
		coinbase:          coinbase,
		l1HeightLag:       l1HeightLag,
		maxBytesPerTxList: maxBytesPerTxList,
		minBytesPerTxList: minBytesPerTxList,
		throttlingFactor:  throttlingFactor,
	}
}

// SetBaseFeeConfig refreshes the base-fee config used for getBasefeeV2 calls
// and the anchor tx's sharing-percentage byte, read from the L1 protocol
// config (§6 pacayaConfig()).
func (m *Manager) SetBaseFeeConfig(cfg encoding.BaseFeeConfig) {
	m.baseFeeCfg = cfg
}

// Tick runs one §4.C9 iteration. It returns the driver's advanced head on
// success, nil if no block was built this tick (should_new_block_be_created
// returned false), and an error if a step before the driver hand-off failed
// (slot info, pending tx list, anchor id resolution). A failure inside
// submit (anchor header fetch, anchor tx construction, compression, or the
// driver rejecting the block) is not surfaced as an error from the Node
// Loop's point of view: the block is simply removed from the batch and nil
// is returned so the caller can retry later.
func (m *Manager) Tick(ctx context.Context, endOfSequencing bool) (*node.Head, error) {
	slot, err := m.slotInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("batchmanager: slot info: %w", err)
	}

	maxBytesPerTxList := m.throttledMaxBytesPerTxList()
	pending, err := m.l2.PendingTxList(ctx, m.coinbase, slot.BaseFee, preconfBlockGasLimit, maxBytesPerTxList)
	if err != nil {
		return nil, fmt.Errorf("batchmanager: pending tx list: %w", err)
	}

	numPending := 0
	if pending != nil {
		numPending = len(pending.TxList)
	}

	if !m.builder.ShouldNewBlockBeCreated(uint64(numPending), slot.SlotTimestamp, endOfSequencing) {
		return nil, nil
	}

	block := &node.L2Block{TimestampSec: slot.SlotTimestamp}
	if pending != nil && numPending > 0 {
		block.TxList = pending.TxList
		block.EstimatedGasUsed = pending.EstimatedGasUsed
		block.BytesLength = pending.BytesLength
	}

	var anchorBlockID uint64
	if m.builder.CanConsume(block, m.coinbase) {
		anchorBlockID = m.builder.Current().AnchorBlockID
		if err := m.builder.AddL2Block(block); err != nil {
			return nil, fmt.Errorf("batchmanager: add l2 block: %w", err)
		}
	} else {
		id, anchorTimestampSec, err := m.resolveAnchorBlockID(ctx)
		if err != nil {
			return nil, fmt.Errorf("batchmanager: resolve anchor block id: %w", err)
		}
		anchorBlockID = id
		m.builder.CreateNewBatchAndAddL2Block(anchorBlockID, anchorTimestampSec, block, m.coinbase)
	}

	head, err := m.submit(ctx, block, slot, anchorBlockID, endOfSequencing)
	if err != nil {
		log.Error("batchmanager: driver rejected preconfirmed block, dropping it", "err", err)
		m.builder.RemoveLastL2Block()
		return nil, nil
	}

	if exceeded, err := m.builder.IsGreaterThanMaxAnchorHeightOffset(); err != nil {
		log.Warn("batchmanager: anchor height offset check failed", "err", err)
	} else if exceeded {
		log.Info("batchmanager: anchor height offset exceeded, finalizing current batch")
		m.builder.FinalizeCurrentBatch()
	}

	return head, nil
}

// throttledMaxBytesPerTxList shrinks maxBytesPerTxList exponentially by
// throttlingFactor for every batch already queued for submission, floored at
// minBytesPerTxList, so a backed-up submitter stops requesting full-size tx
// lists it can't flush (§6 THROTTLING_FACTOR/MIN_BYTES_PER_TX_LIST,
// calculate_max_bytes_per_tx_list).
func (m *Manager) throttledMaxBytesPerTxList() uint64 {
	if m.throttlingFactor == 0 {
		return m.maxBytesPerTxList
	}
	size := m.maxBytesPerTxList
	batchesReadyToSend := uint64(m.builder.QueueLen())
	for i := uint64(0); i < batchesReadyToSend; i++ {
		size -= size / m.throttlingFactor
	}
	if size < m.minBytesPerTxList {
		size = m.minBytesPerTxList
	}
	if size > m.maxBytesPerTxList {
		size = m.maxBytesPerTxList
	}
	if batchesReadyToSend > 0 {
		log.Debug("batchmanager: reducing max bytes per tx list", "size", size)
	}
	return size
}

// slotInfo computes the §3 SlotInfo for this heartbeat: the L2 sub-slot
// begin timestamp, the parent L2 block's id/hash/gas-used, and the base fee
// read from the anchor contract at the parent block.
func (m *Manager) slotInfo(ctx context.Context) (*node.SlotInfo, error) {
	slotTimestamp, err := m.clock.L2SlotBeginTimestamp()
	if err != nil {
		return nil, fmt.Errorf("l2 slot begin timestamp: %w", err)
	}

	parentHeader, err := m.l2.ParentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("parent info: %w", err)
	}
	parentGasUsed := uint32(parentHeader.GasUsed)

	baseFee, err := m.l2.BaseFee(ctx, parentGasUsed, slotTimestamp, m.baseFeeCfg)
	if err != nil {
		return nil, fmt.Errorf("base fee: %w", err)
	}

	return &node.SlotInfo{
		BaseFee:       baseFee,
		SlotTimestamp: slotTimestamp,
		ParentID:      parentHeader.Number.Uint64(),
		ParentHash:    parentHeader.Hash(),
		ParentGasUsed: parentGasUsed,
	}, nil
}

// resolveAnchorBlockID computes anchor_block_id = max(last synced from the
// anchor contract, l1_height - l1_height_lag, last synced from geth) and
// fetches that L1 block's timestamp (§4.C9 step 3).
func (m *Manager) resolveAnchorBlockID(ctx context.Context) (id, timestampSec uint64, err error) {
	fromContract, err := m.l2.LastSyncedAnchorIDFromAnchorContract(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("last synced anchor id from anchor contract: %w", err)
	}

	l1Height, err := m.l1.BlockNumber(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("l1 height: %w", err)
	}
	var l1HeightWithLag uint64
	if l1Height > m.l1HeightLag {
		l1HeightWithLag = l1Height - m.l1HeightLag
	}

	fromGeth, err := m.l2.LastSyncedAnchorIDFromGeth(ctx)
	if err != nil {
		log.Warn("batchmanager: last synced anchor id from geth failed", "err", err)
		fromGeth = 0
	}

	id = max3(fromContract, l1HeightWithLag, fromGeth)

	header, err := m.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(id))
	if err != nil {
		return 0, 0, fmt.Errorf("l1 header at anchor block %d: %w", id, err)
	}
	return id, header.Time, nil
}

// submit builds the anchor tx, prepends it to the block's tx list,
// compresses the result, packages an ExecutableData and POSTs it to the
// driver (§4.C9 step 5).
func (m *Manager) submit(
	ctx context.Context,
	block *node.L2Block,
	slot *node.SlotInfo,
	anchorBlockID uint64,
	endOfSequencing bool,
) (*node.Head, error) {
	anchorHeader, err := m.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(anchorBlockID))
	if err != nil {
		return nil, fmt.Errorf("batchmanager: anchor block %d header: %w", anchorBlockID, err)
	}

	anchorTx, err := m.l2.ConstructAnchorTx(
		ctx, m.anchorSigner, slot.ParentHash, anchorBlockID, anchorHeader.Root,
		slot.ParentGasUsed, m.baseFeeCfg, slot.BaseFee,
	)
	if err != nil {
		return nil, fmt.Errorf("batchmanager: construct anchor tx: %w", err)
	}

	fullTxList := make(types.Transactions, 0, len(block.TxList)+1)
	fullTxList = append(fullTxList, anchorTx)
	fullTxList = append(fullTxList, block.TxList...)

	compressed, err := txlistcodec.EncodeAndCompress(fullTxList)
	if err != nil {
		return nil, fmt.Errorf("batchmanager: compress tx list: %w", err)
	}

	data := rpc.ExecutableData{
		BaseFeePerGas: (*hexutil.Big)(new(big.Int).SetUint64(slot.BaseFee)),
		BlockNumber:   hexutil.Uint64(slot.ParentID + 1),
		ExtraData:     buildExtraData(m.baseFeeCfg.SharingPctg),
		FeeRecipient:  m.coinbase,
		GasLimit:      hexutil.Uint64(preconfBlockGasLimit),
		ParentHash:    slot.ParentHash,
		Timestamp:     hexutil.Uint64(block.TimestampSec),
		Transactions:  compressed,
	}

	number, hash, _, err := m.l2.SubmitPreconfBlock(ctx, data, endOfSequencing)
	if err != nil {
		return nil, err
	}
	return &node.Head{Number: number, Hash: hash}, nil
}

// RecoverFromL2Block rebuilds the open batch's state from a previously
// preconfirmed L2 block: decodes its anchor tx to recover the anchor id,
// starts a fresh batch if the anchor id, coinbase or time-shift ceiling has
// changed, and re-adds the block minus its anchor tx (§4.C9
// recover_from_l2_block).
func (m *Manager) RecoverFromL2Block(ctx context.Context, blockHeight uint64) error {
	block, err := m.l2.BlockByNumber(ctx, new(big.Int).SetUint64(blockHeight))
	if err != nil {
		return fmt.Errorf("batchmanager: fetch l2 block %d: %w", blockHeight, err)
	}
	txs := block.Transactions()
	if len(txs) == 0 {
		return fmt.Errorf("batchmanager: l2 block %d has no anchor transaction", blockHeight)
	}
	rest := txs[1:]

	anchorBlockID, err := rpc.DecodeAnchorBlockID(txs[0].Data())
	if err != nil {
		return fmt.Errorf("batchmanager: decode anchor tx: %w", err)
	}
	anchorHeader, err := m.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(anchorBlockID))
	if err != nil {
		return fmt.Errorf("batchmanager: anchor block %d header: %w", anchorBlockID, err)
	}

	coinbase := block.Coinbase()
	timestampSec := block.Time()

	compressed, err := txlistcodec.EncodeAndCompress(rest)
	if err != nil {
		return fmt.Errorf("batchmanager: measure recovered block size: %w", err)
	}

	recovered := &node.L2Block{
		TxList:       rest,
		BytesLength:  uint64(len(compressed)),
		TimestampSec: timestampSec,
	}

	current := m.builder.Current()
	needsNewBatch := current == nil ||
		current.AnchorBlockID != anchorBlockID ||
		current.Coinbase != coinbase ||
		m.builder.IsTimeShiftExpired(timestampSec)

	if needsNewBatch {
		m.builder.CreateNewBatchAndAddL2Block(anchorBlockID, anchorHeader.Time, recovered, coinbase)
		return nil
	}
	return m.builder.AddL2Block(recovered)
}

// buildExtraData packs the base-fee config's sharing percentage into the
// driver's 32-byte extra_data field, zero-padded on the left so the byte
// lands last (§4.C9 step 5, §9 "Sharing percentage").
func buildExtraData(sharingPctg uint8) []byte {
	extraData := make([]byte, 32)
	extraData[31] = sharingPctg
	return extraData
}

func max3(a, b, c uint64) uint64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
