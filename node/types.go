// Package node implements the Node Loop (§4.C13) and owns the data model
// shared across the batch manager, batch builder, verifier and chain
// monitor (§3).
package node

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SlotInfo is the timing context of one L2 heartbeat. Immutable once created.
type SlotInfo struct {
	BaseFee        uint64
	SlotTimestamp  uint64
	ParentID       uint64
	ParentHash     common.Hash
	ParentGasUsed  uint32
}

// L2Block is the unit of preconfirmation (§3). BytesLength is the RLP+zlib
// size of TxList only, excluding the anchor transaction.
type L2Block struct {
	TxList           types.Transactions
	EstimatedGasUsed uint64
	BytesLength      uint64
	TimestampSec     uint64
}

// Batch is an ordered non-empty sequence of L2Blocks sharing one anchor and
// coinbase (§3).
type Batch struct {
	AnchorBlockID          uint64
	AnchorBlockTimestampSec uint64
	Coinbase               common.Address
	L2Blocks               []*L2Block
	// TotalBytes is a conservative upper bound on the compressed byte length
	// of the batch's concatenated tx lists: it starts at the first block's
	// BytesLength, grows by each added block's BytesLength, and is replaced by
	// the measured size whenever the Batch Builder recompresses the batch.
	TotalBytes uint64
}

// ForcedInclusionBatch is an optional prefix paired with the next finalized
// Batch and submitted atomically (§3).
type ForcedInclusionBatch struct {
	BlobHash        common.Hash
	ByteOffset      uint32
	ByteSize        uint32
	CreatedInL1Block uint64
	DecodedTxs      types.Transactions
}

// QueuedBatch pairs a finalized Batch with its optional forced-inclusion
// prefix, the unit the ready queue (C8) and submission pipeline (C6/C7) work
// with.
type QueuedBatch struct {
	ForcedInclusion *ForcedInclusionBatch
	Batch           *Batch
}

// OperatorStatusKind tags the variant returned by the Operator State Machine
// (§4.C10).
type OperatorStatusKind int

const (
	StatusNone OperatorStatusKind = iota
	StatusPreconfer
	StatusPreconferHandoverBuffer
	StatusPreconferAndSubmitter
	StatusSubmitter
)

func (k OperatorStatusKind) String() string {
	switch k {
	case StatusNone:
		return "None"
	case StatusPreconfer:
		return "Preconfer"
	case StatusPreconferHandoverBuffer:
		return "PreconferHandoverBuffer"
	case StatusPreconferAndSubmitter:
		return "PreconferAndSubmitter"
	case StatusSubmitter:
		return "Submitter"
	default:
		return "Unknown"
	}
}

// OperatorStatus is the derived, not stored, per-tick role decision.
type OperatorStatus struct {
	Kind             OperatorStatusKind
	RemainingBufferMs uint64 // only meaningful for StatusPreconferHandoverBuffer
	Reason           string

	// IsPreconformationStart is true on the first tick a new status is
	// reported that grants preconfirmation rights (used by the Node Loop to
	// detect the hand-off boundary).
	IsPreconformationStart bool
}

// IsPreconfer reports whether this status allows preconfirming L2 blocks.
func (s OperatorStatus) IsPreconfer() bool {
	return s.Kind == StatusPreconfer || s.Kind == StatusPreconferAndSubmitter
}

// IsSubmitter reports whether this status allows submitting batches to L1.
func (s OperatorStatus) IsSubmitter() bool {
	return s.Kind == StatusSubmitter || s.Kind == StatusPreconferAndSubmitter
}

// Head is the memoized (parent_id, parent_hash) the node uses to detect
// unexpected divergence from the driver's accepted chain (§8 invariants).
type Head struct {
	Number uint64
	Hash   common.Hash
}
