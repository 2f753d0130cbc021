// Package txmonitor implements the C7 Transaction Monitor (§4.C7): it owns
// the single in-flight L1 send/replace/confirm loop for one proposeBatch
// transaction, tuning fees between attempts and classifying reverts into the
// §7 TransactionError taxonomy.
package txmonitor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/signer"
)

// ErrorKind tags a TransactionError's §7 taxonomy variant.
type ErrorKind int

const (
	UnsupportedTransactionType ErrorKind = iota
	GetBlockNumberFailed
	EstimationTooEarly
	InsufficientFunds
	ReanchorRequired
	TimestampTooLarge
	OldestForcedInclusionDue
	NotTheOperatorInCurrentEpoch
	TransactionReverted
	NotConfirmed
	EstimationFailed
	BuildTransactionFailed
	Web3SignerFailed
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedTransactionType:
		return "UnsupportedTransactionType"
	case GetBlockNumberFailed:
		return "GetBlockNumberFailed"
	case EstimationTooEarly:
		return "EstimationTooEarly"
	case InsufficientFunds:
		return "InsufficientFunds"
	case ReanchorRequired:
		return "ReanchorRequired"
	case TimestampTooLarge:
		return "TimestampTooLarge"
	case OldestForcedInclusionDue:
		return "OldestForcedInclusionDue"
	case NotTheOperatorInCurrentEpoch:
		return "NotTheOperatorInCurrentEpoch"
	case TransactionReverted:
		return "TransactionReverted"
	case NotConfirmed:
		return "NotConfirmed"
	case EstimationFailed:
		return "EstimationFailed"
	case BuildTransactionFailed:
		return "BuildTransactionFailed"
	case Web3SignerFailed:
		return "Web3SignerFailed"
	default:
		return "Unknown"
	}
}

// Fatal reports whether this error kind should trigger node shutdown per §7;
// the remainder are recoverable and handled inline by the Node Loop.
func (k ErrorKind) Fatal() bool {
	switch k {
	case EstimationTooEarly, ReanchorRequired, OldestForcedInclusionDue, NotTheOperatorInCurrentEpoch:
		return false
	default:
		return true
	}
}

// TransactionError is the value surfaced on the monitor's output channel.
type TransactionError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// revert sentinel selectors (§7).
var (
	selTimestampTooLarge              = [4]byte{0x3d, 0x32, 0xff, 0xdb}
	selZeroAnchorBlockHash            = [4]byte{0x2b, 0x44, 0xf0, 0x10}
	selAnchorBlockIdTooSmall          = [4]byte{0x46, 0xaf, 0xbf, 0x54}
	selTimestampTooSmall              = [4]byte{0x19, 0x99, 0xae, 0xd2}
	selAnchorBlockIdSmallerThanParent = [4]byte{0xfe, 0x16, 0x98, 0xb2}
	selTimestampSmallerThanParent     = [4]byte{0x21, 0x38, 0x9b, 0x84}
	selOldestForcedInclusionDue       = [4]byte{0x1e, 0x66, 0xa7, 0x70}
	selNotOperatorA                   = [4]byte{0x47, 0xfa, 0xc6, 0xc1}
	selNotOperatorB                   = [4]byte{0x79, 0x5e, 0x2f, 0x19}
	selNotOperatorC                   = [4]byte{0xc0, 0xec, 0x4b, 0x50}
)

func classifySelector(sel [4]byte) (ErrorKind, bool) {
	switch sel {
	case selTimestampTooLarge, selZeroAnchorBlockHash:
		return EstimationTooEarly, true
	case selAnchorBlockIdTooSmall, selTimestampTooSmall, selAnchorBlockIdSmallerThanParent, selTimestampSmallerThanParent:
		return ReanchorRequired, true
	case selOldestForcedInclusionDue:
		return OldestForcedInclusionDue, true
	case selNotOperatorA, selNotOperatorB, selNotOperatorC:
		return NotTheOperatorInCurrentEpoch, true
	default:
		return 0, false
	}
}

const oneGwei = 1_000_000_000

// Request bundles a built transaction candidate and the nonce/fee caps the
// Node Loop chose for it (§4.C7).
type Request struct {
	Candidate            *txmgr.TxCandidate
	Nonce                uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	// MaxFeePerBlobGas is nil for a calldata-form candidate.
	MaxFeePerBlobGas *big.Int
}

func (r Request) isBlob() bool { return len(r.Candidate.Blobs) > 0 }

// Monitor is the C7 Transaction Monitor. One Monitor handles exactly one
// in-flight transaction at a time (§5 Ordering: "the Transaction Monitor,
// once spawned, is the sole mutator of its in-flight state").
type Monitor struct {
	l1      *rpc.L1Client
	backend signer.Backend
	chainID int64
	cfg     config.TxMonitorConfig

	errCh chan *TransactionError

	// broadcasts counts transactions actually sent to L1 this Run, read by
	// the Node Loop afterwards for the batch_propose_tries histogram (§6).
	broadcasts atomic.Uint64
}

// Broadcasts reports how many times the most recent Run call sent a
// transaction to L1 (fee bumps and replacements each count), for the
// batch_propose_tries metric (§6).
func (m *Monitor) Broadcasts() uint64 {
	return m.broadcasts.Load()
}

// NewMonitor wires the L1 adapter, signing backend, chain ID and the
// {min_priority_fee_per_gas_wei, tx_fees_increase_percentage,
// max_attempts_to_send_tx, max_attempts_to_wait_tx,
// delay_between_tx_attempts} config (§4.C7).
func NewMonitor(l1 *rpc.L1Client, backend signer.Backend, chainID int64, cfg config.TxMonitorConfig) *Monitor {
	return &Monitor{l1: l1, backend: backend, chainID: chainID, cfg: cfg, errCh: make(chan *TransactionError, 1)}
}

// Errors is the single-producer output channel to the Node Loop (§4.C7).
func (m *Monitor) Errors() <-chan *TransactionError {
	return m.errCh
}

func (m *Monitor) fail(kind ErrorKind, err error) {
	select {
	case m.errCh <- &TransactionError{Kind: kind, Err: err}:
	default:
	}
}

// Run drives the send/replace/confirm loop to completion for one
// transaction request and reports whether it ultimately confirmed. On
// failure it also emits exactly one TransactionError on Errors().
func (m *Monitor) Run(ctx context.Context, req Request) bool {
	m.broadcasts.Store(0)

	maxFeePerGas := new(big.Int).Mul(req.MaxFeePerGas, big.NewInt(2))
	priorityFee := new(big.Int).Mul(
		req.MaxPriorityFeePerGas,
		big.NewInt(100+int64(m.cfg.TxFeesIncreasePercentage)),
	)
	priorityFee.Div(priorityFee, big.NewInt(100))

	var maxFeePerBlobGas *big.Int
	if req.isBlob() {
		maxFeePerBlobGas = new(big.Int).Mul(req.MaxFeePerBlobGas, big.NewInt(2))
		if priorityFee.Cmp(big.NewInt(oneGwei)) < 0 {
			priorityFee = big.NewInt(oneGwei)
		}
	}

	minPriority := new(big.Int).SetUint64(m.cfg.MinPriorityFeePerGasWei)
	if priorityFee.Cmp(minPriority) < 0 {
		diff := new(big.Int).Sub(minPriority, priorityFee)
		priorityFee.Add(priorityFee, diff)
		maxFeePerGas.Add(maxFeePerGas, diff)
	}

	var broadcastHashes []common.Hash

	for attempt := uint64(0); attempt < m.cfg.MaxAttemptsToSendTx; {
		l1BlockAtSend, err := m.l1.BlockNumber(ctx)
		if err != nil {
			m.fail(GetBlockNumberFailed, err)
			return false
		}

		if attempt > 0 {
			if hash, ok := m.findLanded(ctx, broadcastHashes); ok {
				return m.finish(ctx, hash)
			}
		}

		tx, err := m.buildSignedTx(ctx, req, maxFeePerGas, priorityFee, maxFeePerBlobGas)
		if err != nil {
			m.fail(BuildTransactionFailed, err)
			return false
		}

		if err := m.l1.SendTransaction(ctx, tx); err != nil {
			msg := err.Error()
			switch {
			case strings.Contains(msg, "nonce too low"):
				if hash, ok := m.findLanded(ctx, broadcastHashes); ok {
					return m.finish(ctx, hash)
				}
				m.fail(TransactionReverted, err)
				return false
			case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "insufficient allowance"):
				m.fail(InsufficientFunds, err)
				return false
			default:
				m.fail(TransactionReverted, err)
				return false
			}
		}
		broadcastHashes = append(broadcastHashes, tx.Hash())
		m.broadcasts.Add(1)

		advanced, landed := m.waitForReceiptOrL1Advance(ctx, tx.Hash(), l1BlockAtSend)
		switch {
		case landed:
			return m.finish(ctx, tx.Hash())
		case !advanced:
			// Only reached when ctx was cancelled during the wait; the next
			// iteration runs its L1 calls with the cancelled ctx.
			continue
		}

		attempt++
		maxFeePerGas.Mul(maxFeePerGas, big.NewInt(2))
		priorityFee.Mul(priorityFee, big.NewInt(2))
		if req.isBlob() {
			maxFeePerBlobGas.Mul(maxFeePerBlobGas, big.NewInt(2))
		}
	}

	return m.waitLoop(ctx, broadcastHashes)
}

// waitForReceiptOrL1Advance polls the receipt every 500ms. Each time
// delay_between_tx_attempts passes without a receipt it checks the L1 block
// number: if it has not advanced past l1BlockAtSend, it restarts the delay
// and keeps polling; once it has, it returns (advanced=true, landed=false)
// so the caller bumps fees and rebroadcasts. It returns landed=true once a
// receipt lands (caller inspects it via finish), and (advanced=false,
// landed=false) only when ctx is cancelled.
func (m *Monitor) waitForReceiptOrL1Advance(
	ctx context.Context,
	hash common.Hash,
	l1BlockAtSend uint64,
) (advanced bool, landed bool) {
	deadline := time.Now().Add(m.cfg.DelayBetweenTxAttempts)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := m.l1.TransactionReceipt(ctx, hash); err == nil {
			return false, true
		}

		if time.Now().After(deadline) {
			current, err := m.l1.BlockNumber(ctx)
			if err == nil && current > l1BlockAtSend {
				return true, false
			}
			deadline = time.Now().Add(m.cfg.DelayBetweenTxAttempts)
		}

		select {
		case <-ctx.Done():
			return false, false
		case <-ticker.C:
		}
	}
}

func (m *Monitor) findLanded(ctx context.Context, hashes []common.Hash) (common.Hash, bool) {
	for _, h := range hashes {
		if receipt, err := m.l1.TransactionReceipt(ctx, h); err == nil && receipt != nil {
			return h, true
		}
	}
	return common.Hash{}, false
}

// finish inspects a landed receipt's status and classifies a revert via
// debug_traceTransaction (§4.C7 step 4).
func (m *Monitor) finish(ctx context.Context, hash common.Hash) bool {
	receipt, err := m.l1.TransactionReceipt(ctx, hash)
	if err != nil {
		m.fail(GetBlockNumberFailed, err)
		return false
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return true
	}

	kind := TransactionReverted
	if frame, err := m.l1.DebugTraceTransaction(ctx, hash); err == nil {
		if selector, ok := extractSelector(frame); ok {
			if classified, found := classifySelector(selector); found {
				kind = classified
			}
		}
	}
	m.fail(kind, fmt.Errorf("transaction %s reverted", hash))
	return false
}

func extractSelector(frame *rpc.CallFrame) ([4]byte, bool) {
	if len(frame.Output) >= 4 {
		var sel [4]byte
		copy(sel[:], frame.Output[:4])
		return sel, true
	}
	for _, inner := range frame.Calls {
		if sel, ok := extractSelector(&inner); ok {
			return sel, true
		}
	}
	return [4]byte{}, false
}

// waitLoop polls every previously broadcast hash for up to
// max_attempts_to_wait_tx intervals once the send loop is exhausted (§4.C7
// "Wait loop").
func (m *Monitor) waitLoop(ctx context.Context, hashes []common.Hash) bool {
	for i := uint64(0); i < m.cfg.MaxAttemptsToWaitTx; i++ {
		if hash, ok := m.findLanded(ctx, hashes); ok {
			return m.finish(ctx, hash)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.cfg.DelayBetweenTxAttempts):
		}
	}
	m.fail(NotConfirmed, fmt.Errorf("transaction not confirmed after %d wait attempts", m.cfg.MaxAttemptsToWaitTx))
	return false
}

// buildSignedTx constructs and signs the EIP-1559 or EIP-4844 transaction
// for this attempt's fee caps.
func (m *Monitor) buildSignedTx(
	ctx context.Context,
	req Request,
	maxFeePerGas, maxPriorityFeePerGas, maxFeePerBlobGas *big.Int,
) (*types.Transaction, error) {
	chainID := big.NewInt(m.chainID)

	var value big.Int
	if req.Candidate.Value != nil {
		value.Set(req.Candidate.Value)
	}

	var inner types.TxData
	if req.isBlob() {
		sidecar, blobHashes, err := blobSidecar(req.Candidate)
		if err != nil {
			return nil, fmt.Errorf("txmonitor: build blob sidecar: %w", err)
		}

		gasLimit, err := m.resolveGasLimit(ctx, req, &value, maxFeePerBlobGas, blobHashes)
		if err != nil {
			return nil, err
		}

		inner = &types.BlobTx{
			ChainID:    uint256FromBig(chainID),
			Nonce:      req.Nonce,
			GasTipCap:  uint256FromBig(maxPriorityFeePerGas),
			GasFeeCap:  uint256FromBig(maxFeePerGas),
			Gas:        gasLimit,
			To:         *req.Candidate.To,
			Value:      uint256FromBig(&value),
			Data:       req.Candidate.TxData,
			BlobFeeCap: uint256FromBig(maxFeePerBlobGas),
			BlobHashes: blobHashes,
			Sidecar:    sidecar,
		}
	} else {
		gasLimit, err := m.resolveGasLimit(ctx, req, &value, nil, nil)
		if err != nil {
			return nil, err
		}

		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     req.Nonce,
			GasTipCap: maxPriorityFeePerGas,
			GasFeeCap: maxFeePerGas,
			Gas:       gasLimit,
			To:        req.Candidate.To,
			Value:     &value,
			Data:      req.Candidate.TxData,
		}
	}

	tx := types.NewTx(inner)
	signed, err := m.backend.SignTx(ctx, &m.chainID, tx)
	if err != nil {
		log.Warn("txmonitor: sign failed", "err", err)
		return nil, err
	}
	return signed, nil
}

// resolveGasLimit uses the candidate's pre-computed gas limit if the
// Propose-Batch Builder set one, otherwise estimates it fresh so a
// fee-bumped replacement still carries a correct gas cap.
func (m *Monitor) resolveGasLimit(
	ctx context.Context,
	req Request,
	value *big.Int,
	blobFeeCap *big.Int,
	blobHashes []common.Hash,
) (uint64, error) {
	if req.Candidate.GasLimit != 0 {
		return req.Candidate.GasLimit, nil
	}

	msg := ethereum.CallMsg{
		From:  m.backend.Address(),
		To:    req.Candidate.To,
		Data:  req.Candidate.TxData,
		Value: value,
	}
	if len(blobHashes) > 0 {
		msg.BlobGasFeeCap = blobFeeCap
		msg.BlobHashes = blobHashes
	}

	gas, err := m.l1.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("txmonitor: estimate gas: %w", err)
	}
	return gas, nil
}

// blobSidecar computes the KZG commitment, proof and versioned hash of each
// blob in the candidate, the way the teacher's tx cost calculator computes
// blob hashes for its eth_estimateGas call (§4.C6 grounding).
func blobSidecar(candidate *txmgr.TxCandidate) (*types.BlobTxSidecar, []common.Hash, error) {
	sidecar := &types.BlobTxSidecar{}
	hashes := make([]common.Hash, len(candidate.Blobs))

	for i, b := range candidate.Blobs {
		var kzgBlob kzg4844.Blob
		copy(kzgBlob[:], b[:])

		commitment, err := kzg4844.BlobToCommitment(&kzgBlob)
		if err != nil {
			return nil, nil, fmt.Errorf("commitment for blob %d: %w", i, err)
		}
		proof, err := kzg4844.ComputeBlobProof(&kzgBlob, commitment)
		if err != nil {
			return nil, nil, fmt.Errorf("proof for blob %d: %w", i, err)
		}

		sidecar.Blobs = append(sidecar.Blobs, kzgBlob)
		sidecar.Commitments = append(sidecar.Commitments, commitment)
		sidecar.Proofs = append(sidecar.Proofs, proof)
		hashes[i] = kzg4844.CalcBlobHashV1(sha256.New(), &commitment)
	}
	return sidecar, hashes, nil
}

func uint256FromBig(v *big.Int) *uint256.Int {
	u, _ := uint256.FromBig(v)
	return u
}
