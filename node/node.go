// Package node also implements the C13 Node Loop (§4.C13): the single
// per-heartbeat tick that wires the Operator State Machine, Batch Manager,
// Batch Builder, Verifier, Chain Monitor and Forced-Inclusion Adapter
// together, plus the watchdog that shuts the process down after too many
// consecutive failed ticks.
package node

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
	"github.com/NethermindEth/taiko-preconf-node/internal/metrics"
	"github.com/NethermindEth/taiko-preconf-node/node/batchbuilder"
	"github.com/NethermindEth/taiko-preconf-node/node/batchmanager"
	"github.com/NethermindEth/taiko-preconf-node/node/chainmonitor"
	"github.com/NethermindEth/taiko-preconf-node/node/forcedinclusion"
	"github.com/NethermindEth/taiko-preconf-node/node/operator"
	"github.com/NethermindEth/taiko-preconf-node/node/verifier"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/signer"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/pkg/txlistcodec"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txbuilder"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txmonitor"
)

// compressBatchTxLists concatenates the forced-inclusion prefix (if any) and
// every L2 block's transactions, in order, and RLP+zlib-compresses the
// result the same way batchbuilder.compress measures a batch's size.
func compressBatchTxLists(batch *Batch, fi *ForcedInclusionBatch) ([]byte, error) {
	var all types.Transactions
	if fi != nil {
		all = append(all, fi.DecodedTxs...)
	}
	for _, blk := range batch.L2Blocks {
		all = append(all, blk.TxList...)
	}
	packed, err := txlistcodec.EncodeAndCompress(all)
	if err != nil {
		return nil, fmt.Errorf("node: compress batch tx lists: %w", err)
	}
	return packed, nil
}

// tickAction tags what the Node Loop should do with a drained
// *txmonitor.TransactionError (§7 error taxonomy mapping, step 2).
type tickAction int

const (
	actionContinue tickAction = iota
	actionReanchor
	actionForceInclusion
	actionResyncOperator
	actionFatal
)

// classifyTxError implements §7's error-kind mapping (step 2's "continue /
// re-anchor / fatal" summary folds OldestForcedInclusionDue and
// NotTheOperatorInCurrentEpoch into "the rest", but both are explicitly
// recoverable per their §7 entries and per ErrorKind.Fatal's own taxonomy, so
// they get their own actions rather than tripping the watchdog). Pulled out
// as a pure function so the rule table is unit-testable without a live error
// channel.
func classifyTxError(kind txmonitor.ErrorKind, isPreconfer, isSubmitter bool) tickAction {
	switch {
	case kind == txmonitor.EstimationTooEarly:
		return actionContinue
	case kind == txmonitor.ReanchorRequired && isPreconfer && isSubmitter:
		return actionReanchor
	case kind == txmonitor.OldestForcedInclusionDue:
		return actionForceInclusion
	case kind == txmonitor.NotTheOperatorInCurrentEpoch:
		return actionResyncOperator
	default:
		return actionFatal
	}
}

// shouldShutdown implements the watchdog's threshold check (§4.C13
// Watchdog): shutdown once the consecutive tick-error count exceeds half an
// epoch's worth of L2 heartbeats.
func shouldShutdown(consecutiveErrors, l2SlotsPerEpoch uint64) bool {
	return consecutiveErrors > l2SlotsPerEpoch/2
}

// Loop is the C13 Node Loop.
type Loop struct {
	l1 *rpc.L1Client
	l2 *rpc.L2Client

	clock      *slotclock.SlotClock
	op         *operator.Machine
	manager    *batchmanager.Manager
	builder    *batchbuilder.Builder
	txBuilder  *txbuilder.Builder
	txMon      *txmonitor.Monitor
	chainMon   *chainmonitor.Monitor
	forcedIncl *forcedinclusion.Adapter
	verifDeps  verifier.Deps
	metrics    metrics.Recorder

	backend signer.Backend
	chainID int64

	heartbeat             time.Duration
	maxAnchorHeightOffset uint64
	l2SlotsPerEpoch       uint64

	cancel context.CancelFunc

	mu             sync.Mutex
	head           *Head
	verif          *verifier.Verifier
	submitInFlight bool
	fiDecodeCh     <-chan forcedinclusion.DecodeResult

	consecutiveTickErrors uint64
}

// Params bundles every collaborator New needs; a struct rather than a long
// positional parameter list since the Node Loop is the one component that
// wires all thirteen others together.
type Params struct {
	L1                    *rpc.L1Client
	L2                    *rpc.L2Client
	Clock                 *slotclock.SlotClock
	Operator              *operator.Machine
	Manager               *batchmanager.Manager
	Builder               *batchbuilder.Builder
	TxBuilder             *txbuilder.Builder
	TxMonitor             *txmonitor.Monitor
	ChainMonitor          *chainmonitor.Monitor
	ForcedInclusion       *forcedinclusion.Adapter
	VerifierDeps          verifier.Deps
	Metrics               metrics.Recorder
	Backend               signer.Backend
	ChainID               int64
	Heartbeat             time.Duration
	MaxAnchorHeightOffset uint64
	L2SlotsPerEpoch       uint64
	Cancel                context.CancelFunc
}

// New builds the Node Loop from its wired collaborators.
func New(p Params) *Loop {
	rec := p.Metrics
	if rec == nil {
		rec = metrics.Noop
	}
	return &Loop{
		l1:                    p.L1,
		l2:                    p.L2,
		clock:                 p.Clock,
		op:                    p.Operator,
		manager:               p.Manager,
		builder:               p.Builder,
		txBuilder:             p.TxBuilder,
		txMon:                 p.TxMonitor,
		chainMon:              p.ChainMonitor,
		forcedIncl:            p.ForcedInclusion,
		verifDeps:             p.VerifierDeps,
		metrics:               rec,
		backend:               p.Backend,
		chainID:               p.ChainID,
		heartbeat:             p.Heartbeat,
		maxAnchorHeightOffset: p.MaxAnchorHeightOffset,
		l2SlotsPerEpoch:       p.L2SlotsPerEpoch,
		cancel:                p.Cancel,
	}
}

// Run drives the heartbeat ticker until ctx is cancelled or the watchdog
// trips. time.Ticker already drops ticks that arrive while a send is
// pending on its channel, matching the spec's MissedTickBehavior::Skip
// (§4.C13 Heartbeat).
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.tick(ctx); err != nil {
				l.consecutiveTickErrors++
				log.Error("node: tick failed", "err", err, "consecutiveErrors", l.consecutiveTickErrors)
				if shouldShutdown(l.consecutiveTickErrors, l.l2SlotsPerEpoch) {
					log.Error("node: watchdog threshold exceeded, shutting down")
					l.cancel()
					return err
				}
				continue
			}
			l.consecutiveTickErrors = 0
		}
	}
}

// tick runs one §4.C13 iteration.
func (l *Loop) tick(ctx context.Context) error {
	status, err := l.op.Tick(ctx)
	if err != nil {
		return fmt.Errorf("node: operator tick: %w", err)
	}

	if action, ok := l.drainTxError(status); ok {
		switch action {
		case actionContinue:
			// estimation ran before the anchor settled; retried next tick.
		case actionReanchor:
			if err := l.triggerReanchor(ctx, l.currentHeadNumber()); err != nil {
				return fmt.Errorf("node: re-anchor after tx error: %w", err)
			}
		case actionForceInclusion:
			log.Warn("node: oldest forced inclusion is due, fetching it for the next batch")
			l.pollForcedInclusion(ctx)
		case actionResyncOperator:
			log.Warn("node: local operator state is stale, dropping batches and resyncing from contract")
			l.builder.Reset()
			l.mu.Lock()
			l.verif = nil
			l.mu.Unlock()
		case actionFatal:
			return fmt.Errorf("node: fatal transaction error, shutting down")
		}
	}

	if status.IsPreconformationStart {
		if err := l.onPreconfirmationStart(ctx, status); err != nil {
			return fmt.Errorf("node: preconfirmation start: %w", err)
		}
	}

	if status.IsPreconfer() {
		if err := l.tickPreconfer(ctx, status); err != nil {
			return fmt.Errorf("node: preconfer tick: %w", err)
		}
	}

	if status.IsSubmitter() {
		l.tickSubmitter(ctx, status)
	}

	if !status.IsPreconfer() && !status.IsSubmitter() {
		l.tickIdle()
	}

	return nil
}

// drainTxError performs the non-blocking channel read of step 2.
func (l *Loop) drainTxError(status *OperatorStatus) (tickAction, bool) {
	select {
	case txErr := <-l.txMon.Errors():
		log.Warn("node: transaction monitor reported an error", "kind", txErr.Kind, "err", txErr.Err)
		return classifyTxError(txErr.Kind, status.IsPreconfer(), status.IsSubmitter()), true
	default:
		return actionContinue, false
	}
}

// onPreconfirmationStart implements step 3: memoize the current head and
// then branch on how this boundary was reached. A preconfer-only (handover)
// start schedules a Verifier for the next epoch boundary. A
// preconfer-and-submitter start needs no Verifier. The StatusSubmitter case
// checks for unproposed batches, but operator.Machine sets
// IsPreconformationStart only on a transition into a preconfirming role, so
// a submitter-only status never reaches this function and that check does
// not run.
func (l *Loop) onPreconfirmationStart(ctx context.Context, status *OperatorStatus) error {
	parent, err := l.l2.ParentInfo(ctx)
	if err != nil {
		return fmt.Errorf("parent info: %w", err)
	}

	l.mu.Lock()
	l.head = &Head{Number: parent.Number.Uint64(), Hash: parent.Hash()}
	head := *l.head
	l.mu.Unlock()

	switch status.Kind {
	case StatusPreconfer:
		nextEpochSlot, err := l.clock.FirstSlotOfNextEpoch()
		if err != nil {
			return fmt.Errorf("first slot of next epoch: %w", err)
		}
		l.mu.Lock()
		l.verif = verifier.New(l.verifDeps, verifier.Root{Number: head.Number, Hash: head.Hash}, nextEpochSlot)
		l.mu.Unlock()
		log.Info("node: handover start, scheduled verifier", "root", head.Number, "verificationSlot", nextEpochSlot)
	case StatusSubmitter:
		return l.checkForMissingProposedBatches(ctx, head)
	}
	return nil
}

// checkForMissingProposedBatches implements step 3's submitter-only branch:
// compare the L1 inbox's last-proposed L2 height against our own memoized
// head, and if they diverge, schedule a Verifier with an already-satisfied
// verification slot (0) so it runs and reconciles on the very next tick
// instead of waiting for the next epoch boundary.
func (l *Loop) checkForMissingProposedBatches(ctx context.Context, head Head) error {
	inboxHeight, err := l.inboxHeight(ctx)
	if err != nil {
		return fmt.Errorf("check for missing proposed batches: inbox height: %w", err)
	}

	log.Info("node: submitter-only start, checking for unproposed batches", "inboxHeight", inboxHeight, "driverHeight", head.Number)

	if inboxHeight == head.Number {
		return nil
	}

	l.mu.Lock()
	l.verif = verifier.New(l.verifDeps, verifier.Root{Number: head.Number, Hash: head.Hash}, 0)
	l.mu.Unlock()
	log.Info("node: unproposed batches detected, scheduled immediate verifier", "inboxHeight", inboxHeight, "driverHeight", head.Number)
	return nil
}

// tickPreconfer implements step 4.
func (l *Loop) tickPreconfer(ctx context.Context, status *OperatorStatus) error {
	l.mu.Lock()
	head := l.head
	l.mu.Unlock()
	if head == nil {
		return fmt.Errorf("preconfer tick with no memoized head")
	}

	l.pollForcedInclusion(ctx)

	if status.Kind != StatusPreconferAndSubmitter {
		inboxHeight, err := l.inboxHeight(ctx)
		if err != nil {
			return fmt.Errorf("fast re-anchor check: inbox height: %w", err)
		}
		if inboxHeight < head.Number {
			withinLimit, err := l.verifDeps.AnchorHeightOffsetWithinLimit(ctx, inboxHeight+1)
			if err != nil {
				return fmt.Errorf("fast re-anchor check: anchor offset: %w", err)
			}
			if !withinLimit {
				log.Warn("node: fast re-anchor check failed, skipping preconf this tick", "inboxHeight", inboxHeight, "head", head.Number)
				return l.triggerReanchor(ctx, inboxHeight)
			}
		}
	}

	parent, err := l.l2.ParentInfo(ctx)
	if err != nil {
		return fmt.Errorf("parent info: %w", err)
	}
	if parent.Number.Uint64() != head.Number || parent.Hash() != head.Hash {
		return fmt.Errorf("node: driver head diverged from memoized head: driver=(%d,%s) memoized=(%d,%s)",
			parent.Number.Uint64(), parent.Hash(), head.Number, head.Hash)
	}

	// endOfSequencing detection requires knowing one tick ahead whether this
	// node is about to lose preconfirmation rights; left false (never forced)
	// since the handover window's own rules already drain remaining batches
	// through the submitter role once that happens.
	newHead, err := l.manager.Tick(ctx, false)
	if err != nil {
		return fmt.Errorf("batch manager tick: %w", err)
	}
	if newHead == nil {
		return nil
	}
	if newHead.Number != head.Number+1 {
		return fmt.Errorf("node: preconfirmed block %d does not extend memoized head %d", newHead.Number, head.Number)
	}

	l.mu.Lock()
	l.head = newHead
	l.mu.Unlock()
	l.metrics.IncBlocksPreconfirmed()
	return nil
}

// tickSubmitter implements step 5. Submission runs in a background goroutine
// so a slow send/confirm cycle never stalls the heartbeat (§5 Concurrency).
func (l *Loop) tickSubmitter(ctx context.Context, status *OperatorStatus) {
	l.mu.Lock()
	if l.submitInFlight {
		l.mu.Unlock()
		return
	}

	v := l.verif
	l.mu.Unlock()

	if v != nil {
		result, err := v.Tick(ctx)
		if err != nil {
			log.Error("node: verifier tick failed", "err", err)
			return
		}
		switch result.Kind {
		case verifier.SlotNotValid, verifier.VerificationInProgress:
			return
		case verifier.ReanchorNeeded:
			if err := l.triggerReanchor(ctx, result.ParentBlockID); err != nil {
				log.Error("node: re-anchor after verifier failure", "err", err)
			}
			l.mu.Lock()
			l.verif = nil
			l.mu.Unlock()
			return
		case verifier.SuccessWithBatches:
			l.builder.FinalizeCurrentBatch()
			l.metrics.IncBatchRecovered()
			l.mu.Lock()
			l.verif = nil
			l.mu.Unlock()
		case verifier.SuccessNoBatches:
			l.mu.Lock()
			l.verif = nil
			l.mu.Unlock()
		}
	}

	l.mu.Lock()
	l.submitInFlight = true
	l.mu.Unlock()

	go func() {
		defer func() {
			l.mu.Lock()
			l.submitInFlight = false
			l.mu.Unlock()
		}()
		l.builder.TrySubmitOldestBatch(ctx, status.IsPreconfer(), false, l.submit)
	}()
}

// tickIdle implements step 6: neither role means any open work is stale.
func (l *Loop) tickIdle() {
	l.mu.Lock()
	hadVerifier := l.verif != nil
	l.verif = nil
	l.mu.Unlock()

	if l.builder.QueueLen() > 0 || l.builder.Current() != nil {
		log.Error("node: holding neither role with pending batch work, resetting")
		l.builder.Reset()
	}
	if hadVerifier {
		log.Info("node: holding neither role, clearing stale verifier")
	}
	l.forcedIncl.CancelPending()
	l.mu.Lock()
	l.fiDecodeCh = nil
	l.mu.Unlock()
}

// pollForcedInclusion implements C14's half of step 4: drain any in-flight
// decode, and if none is outstanding, refresh the on-chain head/tail window
// and kick off a decode when an entry is waiting (§4.C14). A decoded batch
// is handed to the Batch Builder so the next finalize_current_batch pairs it
// with the batch currently being assembled.
func (l *Loop) pollForcedInclusion(ctx context.Context) {
	l.mu.Lock()
	ch := l.fiDecodeCh
	l.mu.Unlock()

	if ch != nil {
		select {
		case result := <-ch:
			l.mu.Lock()
			l.fiDecodeCh = nil
			l.mu.Unlock()
			if result.Err != nil {
				log.Warn("node: forced-inclusion decode failed", "err", result.Err)
				return
			}
			l.builder.SetPendingForcedInclusion(result.Batch)
			log.Info("node: forced inclusion decoded, queued for next batch", "createdIn", result.Batch.CreatedInL1Block)
		default:
		}
		return
	}

	if err := l.forcedIncl.Refresh(ctx); err != nil {
		log.Warn("node: forced-inclusion refresh failed", "err", err)
		return
	}
	if !l.forcedIncl.HasPending() {
		return
	}
	l.mu.Lock()
	l.fiDecodeCh = l.forcedIncl.StartDecode(ctx)
	l.mu.Unlock()
}

// inboxHeight mirrors verifier.rpcDeps.InboxHeight's computation; kept local
// since the Node Loop needs it outside of a Verifier's lifetime too (the
// fast re-anchor check of step 4a runs independently of any scheduled
// Verifier).
func (l *Loop) inboxHeight(ctx context.Context) (uint64, error) {
	stats, err := l.l1.GetStats2(ctx)
	if err != nil {
		return 0, fmt.Errorf("get stats2: %w", err)
	}
	if stats.NumBatches == 0 {
		return 0, nil
	}
	return l.l1.GetL2HeightFromTaikoInbox(ctx, stats.NumBatches-1)
}

func (l *Loop) currentHeadNumber() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.head == nil {
		return 0
	}
	return l.head.Number
}

// triggerReanchor arms the Chain Monitor's one allowed reorg target, asks the
// driver to reorg to targetParentBlockID, and discards all in-progress batch
// state (§4.C11/C12/C13, §8 Scenario 4).
func (l *Loop) triggerReanchor(ctx context.Context, targetParentBlockID uint64) error {
	l.chainMon.SetExpectedReorg(targetParentBlockID)
	l.forcedIncl.CancelPending()
	l.mu.Lock()
	l.fiDecodeCh = nil
	l.mu.Unlock()
	l.builder.Reset()

	if err := l.l2.TriggerReorg(ctx, targetParentBlockID); err != nil {
		return fmt.Errorf("trigger reorg to %d: %w", targetParentBlockID, err)
	}

	header, err := l.l2.HeaderByNumber(ctx, new(big.Int).SetUint64(targetParentBlockID))
	if err != nil {
		return fmt.Errorf("header after reorg to %d: %w", targetParentBlockID, err)
	}
	l.mu.Lock()
	l.head = &Head{Number: header.Number.Uint64(), Hash: header.Hash()}
	l.verif = nil
	l.mu.Unlock()

	l.metrics.IncBlocksReanchored()
	log.Warn("node: re-anchored", "to", targetParentBlockID)
	return nil
}

// submit is the batchbuilder.Submitter handed to TrySubmitOldestBatch. It
// builds the proposeBatch candidate (C6), resolves nonce and starting fee
// caps, and drives it to completion through the Transaction Monitor (C7).
// Blocking here is safe: the caller already runs it from the background
// goroutine tickSubmitter spawns, not from the heartbeat itself.
func (l *Loop) submit(ctx context.Context, qb QueuedBatch) *txmonitor.TransactionError {
	in, err := l.buildTxBuilderInput(ctx, qb)
	if err != nil {
		return &txmonitor.TransactionError{Kind: txmonitor.BuildTransactionFailed, Err: err}
	}

	candidate, err := l.txBuilder.Build(ctx, in)
	if err != nil {
		return &txmonitor.TransactionError{Kind: txmonitor.BuildTransactionFailed, Err: err}
	}
	l.metrics.ObserveBatchBlockCount(len(in.Blocks))
	l.metrics.ObserveBatchBlobSize(len(in.TxListBytes))

	nonce, err := l.l1.PendingNonceAt(ctx, l.backend.Address())
	if err != nil {
		return &txmonitor.TransactionError{Kind: txmonitor.GetBlockNumberFailed, Err: err}
	}

	feeHistory, err := l.l1.FeeHistory2Blocks(ctx, []float64{50})
	if err != nil || len(feeHistory.BaseFee) == 0 || len(feeHistory.Reward) == 0 {
		return &txmonitor.TransactionError{Kind: txmonitor.EstimationFailed, Err: err}
	}
	baseFee := feeHistory.BaseFee[len(feeHistory.BaseFee)-1]
	priorityFee := feeHistory.Reward[len(feeHistory.Reward)-1][0]
	maxFeePerGas := new(big.Int).Add(baseFee, priorityFee)

	var maxFeePerBlobGas *big.Int
	if len(candidate.Blobs) > 0 {
		maxFeePerBlobGas = big.NewInt(1)
		if len(feeHistory.BlobBaseFee) > 0 {
			maxFeePerBlobGas = feeHistory.BlobBaseFee[len(feeHistory.BlobBaseFee)-1]
		}
	}

	req := txmonitor.Request{
		Candidate:            candidate,
		Nonce:                nonce,
		MaxFeePerGas:         maxFeePerGas,
		MaxPriorityFeePerGas: priorityFee,
		MaxFeePerBlobGas:     maxFeePerBlobGas,
	}

	l.metrics.IncBatchProposed()
	ok := l.txMon.Run(ctx, req)
	l.metrics.ObserveBatchProposeTries(int(l.txMon.Broadcasts()))
	if ok {
		l.metrics.IncBatchConfirmed()
		return nil
	}
	select {
	case txErr := <-l.txMon.Errors():
		return txErr
	default:
		return &txmonitor.TransactionError{Kind: txmonitor.NotConfirmed}
	}
}

// buildTxBuilderInput converts a finalized QueuedBatch into the C6 Builder's
// Input shape. A forced-inclusion prefix's decoded transactions are counted
// into the first L2 block's transaction count and re-compressed into
// TxListBytes with the batch's own transactions; only the forced inclusion's
// created-in L1 block is passed on. Neither this function nor the C6 Builder
// references the original forced-inclusion blob or its byte range.
func (l *Loop) buildTxBuilderInput(ctx context.Context, qb QueuedBatch) (txbuilder.Input, error) {
	batch := qb.Batch
	if len(batch.L2Blocks) == 0 {
		return txbuilder.Input{}, fmt.Errorf("node: finalized batch has no l2 blocks")
	}

	blocks := make([]encoding.BlockParams, len(batch.L2Blocks))
	prevTimestamp := batch.AnchorBlockTimestampSec
	for i, blk := range batch.L2Blocks {
		numTx := len(blk.TxList)
		if i == 0 && qb.ForcedInclusion != nil {
			numTx += len(qb.ForcedInclusion.DecodedTxs)
		}
		shift := blk.TimestampSec - prevTimestamp
		blocks[i] = encoding.BlockParams{NumTransactions: uint16(numTx), TimeShift: uint8(shift)}
		prevTimestamp = blk.TimestampSec
	}

	parentMetaHash, err := l.parentMetaHash(ctx)
	if err != nil {
		return txbuilder.Input{}, err
	}

	txListBytes, err := compressBatchTxLists(batch, qb.ForcedInclusion)
	if err != nil {
		return txbuilder.Input{}, err
	}

	var createdIn uint64
	if qb.ForcedInclusion != nil {
		createdIn = qb.ForcedInclusion.CreatedInL1Block
	}

	return txbuilder.Input{
		Proposer:                 l.backend.Address(),
		Coinbase:                 batch.Coinbase,
		ParentMetaHash:           parentMetaHash,
		AnchorBlockID:            batch.AnchorBlockID,
		LastBlockTimestamp:       batch.L2Blocks[len(batch.L2Blocks)-1].TimestampSec,
		RevertIfNotFirstProposal: false,
		Blocks:                   blocks,
		TxListBytes:              txListBytes,
		ForcedInclusionCreatedIn: createdIn,
	}, nil
}

func (l *Loop) parentMetaHash(ctx context.Context) (common.Hash, error) {
	stats, err := l.l1.GetStats2(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get stats2: %w", err)
	}
	if stats.NumBatches == 0 {
		return common.Hash{}, nil
	}
	return l.l1.GetBatchMetaHash(ctx, stats.NumBatches-1)
}
