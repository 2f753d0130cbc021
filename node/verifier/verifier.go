// Package verifier implements the C11 Verifier (§4.C11): the one-shot
// reconciliation task spawned at the start of a hand-off window that
// confirms the L1 inbox caught up to the last block the outgoing preconfer
// expected to have proposed, recovering any missing tail or flagging a
// re-anchor.
package verifier

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/taiko-preconf-node/node/batchmanager"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
)

// Root identifies the last L2 block the outgoing preconfer expects to have
// preconfirmed, the checkpoint a verification pass confirms against the L1
// inbox (§4.C11).
type Root struct {
	Number uint64
	Hash   common.Hash
}

// ResultKind tags the Verifier's per-tick outcome; exactly one is produced.
type ResultKind int

const (
	SlotNotValid ResultKind = iota
	VerificationInProgress
	SuccessNoBatches
	SuccessWithBatches
	ReanchorNeeded
)

func (k ResultKind) String() string {
	switch k {
	case SlotNotValid:
		return "SlotNotValid"
	case VerificationInProgress:
		return "VerificationInProgress"
	case SuccessNoBatches:
		return "SuccessNoBatches"
	case SuccessWithBatches:
		return "SuccessWithBatches"
	case ReanchorNeeded:
		return "ReanchorNeeded"
	default:
		return "Unknown"
	}
}

// Result is the outcome of one Verifier.Tick call.
type Result struct {
	Kind ResultKind

	// RecoveredThroughHeight is set on SuccessWithBatches: every height from
	// inbox_height+1 through this one was just recovered into the Batch
	// Manager's open batch. The Node Loop must finalize it immediately so it
	// is queued ahead of anything built later this tick (§8 Scenario 5,
	// "prepended to any newly built batch").
	RecoveredThroughHeight uint64

	// ParentBlockID and Reason are set on ReanchorNeeded: the L1 inbox's
	// last known L2 height to re-anchor from, and why.
	ParentBlockID uint64
	Reason        string
}

// Deps is the set of RPC/recovery operations a verification pass needs,
// split out as an interface (rather than concrete *rpc.L1Client/*rpc.L2Client
// fields) so the rule logic in verify/Tick is unit-testable without a live
// connection, the way proposer/txmonitor separates its send/wait primitives
// from the classification logic that drives them.
type Deps interface {
	CurrentL1Slot(ctx context.Context) (uint64, error)
	InboxHeight(ctx context.Context) (uint64, error)
	L2RootHash(ctx context.Context, blockNumber uint64) (common.Hash, error)
	AnchorHeightOffsetWithinLimit(ctx context.Context, blockNumber uint64) (bool, error)
	RecoverFromL2Block(ctx context.Context, blockHeight uint64) error
}

// Verifier is the C11 Verifier, created once per hand-off window. Tick is
// called only from the Node Loop's heartbeat goroutine, so running and
// resultCh need no locking of their own.
type Verifier struct {
	deps Deps

	root             Root
	verificationSlot uint64

	running  bool
	resultCh chan verifyOutcome
}

// verifyOutcome carries the one-shot verification task's result back across
// resultCh.
type verifyOutcome struct {
	result *Result
	err    error
}

// New creates a Verifier for the hand-off window ending at verificationSlot
// (the first slot of the next epoch), checking the L1 inbox against root.
func New(deps Deps, root Root, verificationSlot uint64) *Verifier {
	return &Verifier{deps: deps, root: root, verificationSlot: verificationSlot}
}

// Tick runs one §4.C11 iteration. The first call past verificationSlot
// spawns the one-shot verification task in a background goroutine and
// returns VerificationInProgress immediately; every call afterwards does a
// non-blocking read of the task's result channel, returning
// VerificationInProgress again until the task completes so the heartbeat is
// never blocked on a slow recovery pass (§5 Concurrency, §4.C11 "spawn a
// one-shot verification task").
func (v *Verifier) Tick(ctx context.Context) (*Result, error) {
	if v.running {
		select {
		case out := <-v.resultCh:
			v.running = false
			v.resultCh = nil
			return out.result, out.err
		default:
			return &Result{Kind: VerificationInProgress}, nil
		}
	}

	slot, err := v.deps.CurrentL1Slot(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifier: current l1 slot: %w", err)
	}
	if slot < v.verificationSlot {
		return &Result{Kind: SlotNotValid}, nil
	}

	v.running = true
	v.resultCh = make(chan verifyOutcome, 1)
	go func() {
		result, err := v.verify(ctx)
		v.resultCh <- verifyOutcome{result: result, err: err}
	}()

	return &Result{Kind: VerificationInProgress}, nil
}

// verify implements the one-shot verification task's three-way comparison
// between the L1 inbox's last known L2 height and the expected root.
func (v *Verifier) verify(ctx context.Context) (*Result, error) {
	inboxHeight, err := v.deps.InboxHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("verifier: inbox height: %w", err)
	}

	rootHash, err := v.deps.L2RootHash(ctx, v.root.Number)
	if err != nil {
		return nil, fmt.Errorf("verifier: l2 root hash at %d: %w", v.root.Number, err)
	}
	if rootHash != v.root.Hash {
		log.Warn("verifier: l2 root hash changed since hand-off, re-anchor required", "height", v.root.Number)
		return &Result{Kind: ReanchorNeeded, ParentBlockID: inboxHeight, Reason: "root changed"}, nil
	}

	switch {
	case inboxHeight == v.root.Number:
		return &Result{Kind: SuccessNoBatches}, nil

	case v.root.Number > inboxHeight:
		return v.recoverTail(ctx, inboxHeight)

	default: // root.Number < inboxHeight
		log.Warn("verifier: unexpected proposal by previous operator, re-anchor required",
			"inbox_height", inboxHeight, "root", v.root.Number)
		return &Result{Kind: ReanchorNeeded, ParentBlockID: inboxHeight, Reason: "unexpected proposal by previous operator"}, nil
	}
}

// recoverTail handles root.Number > inboxHeight: the previous preconfer
// failed to submit its tail. If the oldest missing block is still within
// the anchor-height-offset ceiling, every missing height is recovered into
// the Batch Manager's open batch; otherwise a re-anchor is required.
func (v *Verifier) recoverTail(ctx context.Context, inboxHeight uint64) (*Result, error) {
	withinLimit, err := v.deps.AnchorHeightOffsetWithinLimit(ctx, inboxHeight+1)
	if err != nil {
		return nil, fmt.Errorf("verifier: anchor height offset at %d: %w", inboxHeight+1, err)
	}
	if !withinLimit {
		log.Warn("verifier: tail blocks aged past max anchor height offset, re-anchor required",
			"from", inboxHeight+1, "to", v.root.Number)
		return &Result{Kind: ReanchorNeeded, ParentBlockID: inboxHeight, Reason: "anchor height offset exceeded during recovery"}, nil
	}

	for h := inboxHeight + 1; h <= v.root.Number; h++ {
		if err := v.deps.RecoverFromL2Block(ctx, h); err != nil {
			return nil, fmt.Errorf("verifier: recover l2 block %d: %w", h, err)
		}
	}
	return &Result{Kind: SuccessWithBatches, RecoveredThroughHeight: v.root.Number}, nil
}

// rpcDeps is the live Deps implementation wired from the node's RPC clients.
type rpcDeps struct {
	l1                    *rpc.L1Client
	l2                    *rpc.L2Client
	clock                 *slotclock.SlotClock
	manager               *batchmanager.Manager
	maxAnchorHeightOffset uint64
}

// NewRPCDeps builds the Deps implementation the Node Loop wires into a real
// Verifier. maxAnchorHeightOffset should be the same effective ceiling the
// Batch Builder (C8) enforces on its own open batch.
func NewRPCDeps(
	l1 *rpc.L1Client,
	l2 *rpc.L2Client,
	clock *slotclock.SlotClock,
	manager *batchmanager.Manager,
	maxAnchorHeightOffset uint64,
) Deps {
	return &rpcDeps{l1: l1, l2: l2, clock: clock, manager: manager, maxAnchorHeightOffset: maxAnchorHeightOffset}
}

func (d *rpcDeps) CurrentL1Slot(ctx context.Context) (uint64, error) {
	return d.clock.CurrentSlot()
}

// InboxHeight reads the last L2 block id known to the L1 inbox: the last
// block of its most recently proposed batch.
func (d *rpcDeps) InboxHeight(ctx context.Context) (uint64, error) {
	stats, err := d.l1.GetStats2(ctx)
	if err != nil {
		return 0, fmt.Errorf("get stats2: %w", err)
	}
	if stats.NumBatches == 0 {
		return 0, nil
	}
	return d.l1.GetL2HeightFromTaikoInbox(ctx, stats.NumBatches-1)
}

func (d *rpcDeps) L2RootHash(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	header, err := d.l2.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return common.Hash{}, fmt.Errorf("l2 header at %d: %w", blockNumber, err)
	}
	return header.Hash(), nil
}

// AnchorHeightOffsetWithinLimit reports whether blockNumber's own anchor has
// not yet aged past the offset ceiling, mirroring
// batchbuilder.Builder.IsGreaterThanMaxAnchorHeightOffset but for an
// arbitrary already-preconfirmed block rather than the open batch.
func (d *rpcDeps) AnchorHeightOffsetWithinLimit(ctx context.Context, blockNumber uint64) (bool, error) {
	block, err := d.l2.BlockByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return false, fmt.Errorf("l2 block %d: %w", blockNumber, err)
	}
	txs := block.Transactions()
	if len(txs) == 0 {
		return false, fmt.Errorf("l2 block %d has no anchor transaction", blockNumber)
	}
	anchorBlockID, err := rpc.DecodeAnchorBlockID(txs[0].Data())
	if err != nil {
		return false, fmt.Errorf("decode anchor tx at block %d: %w", blockNumber, err)
	}
	anchorHeader, err := d.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(anchorBlockID))
	if err != nil {
		return false, fmt.Errorf("l1 header at anchor block %d: %w", anchorBlockID, err)
	}
	slots, err := d.clock.SlotsSinceL1Block(anchorHeader.Time)
	if err != nil {
		return false, fmt.Errorf("slots since anchor block %d: %w", anchorBlockID, err)
	}
	return slots <= d.maxAnchorHeightOffset, nil
}

func (d *rpcDeps) RecoverFromL2Block(ctx context.Context, blockHeight uint64) error {
	return d.manager.RecoverFromL2Block(ctx, blockHeight)
}
