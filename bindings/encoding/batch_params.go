package encoding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BlobParams is the blobParams member of BatchParams (§6 wire format).
type BlobParams struct {
	BlobHashes     []common.Hash
	FirstBlobIndex uint8
	NumBlobs       uint8
	ByteOffset     uint32
	ByteSize       uint32
	CreatedIn      uint64
}

// BlockParams is one entry of BatchParams.blocks (§6 wire format).
type BlockParams struct {
	NumTransactions uint16
	TimeShift       uint8
	SignalSlots     []common.Hash
}

// BatchParams is the Pacaya TaikoInbox.proposeBatch parameter struct (§6).
type BatchParams struct {
	Proposer                 common.Address
	Coinbase                 common.Address
	ParentMetaHash           common.Hash
	AnchorBlockID            uint64
	LastBlockTimestamp       uint64
	RevertIfNotFirstProposal bool
	BlobParams               BlobParams
	Blocks                   []BlockParams
}

var batchParamsComponents = []abi.ArgumentMarshaling{
	{Name: "proposer", Type: "address"},
	{Name: "coinbase", Type: "address"},
	{Name: "parentMetaHash", Type: "bytes32"},
	{Name: "anchorBlockId", Type: "uint64"},
	{Name: "lastBlockTimestamp", Type: "uint64"},
	{Name: "revertIfNotFirstProposal", Type: "bool"},
	{Name: "blobParams", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "blobHashes", Type: "bytes32[]"},
		{Name: "firstBlobIndex", Type: "uint8"},
		{Name: "numBlobs", Type: "uint8"},
		{Name: "byteOffset", Type: "uint32"},
		{Name: "byteSize", Type: "uint32"},
		{Name: "createdIn", Type: "uint64"},
	}},
	{Name: "blocks", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "numTransactions", Type: "uint16"},
		{Name: "timeShift", Type: "uint8"},
		{Name: "signalSlots", Type: "bytes32[]"},
	}},
}

func mustNewType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic("encoding: invalid ABI type: " + err.Error())
	}
	return typ
}

var (
	batchParamsType = mustNewType("tuple", batchParamsComponents)
	batchParamsArgs = abi.Arguments{{Type: batchParamsType}}

	proposeBatchWrapperArgs = abi.Arguments{
		{Type: mustNewType("bytes", nil)},
		{Type: mustNewType("bytes", nil)},
	}
)

// abiBlobParams and abiBlockParams are the anonymous-struct shapes abi.Pack
// expects for the tuple/tuple[] components above (field order and exported
// names must match the ABI component order).
type abiBlobParams struct {
	BlobHashes     []common.Hash
	FirstBlobIndex uint8
	NumBlobs       uint8
	ByteOffset     uint32
	ByteSize       uint32
	CreatedIn      uint64
}

type abiBlockParams struct {
	NumTransactions uint16
	TimeShift       uint8
	SignalSlots     []common.Hash
}

type abiBatchParams struct {
	Proposer                 common.Address
	Coinbase                 common.Address
	ParentMetaHash           common.Hash
	AnchorBlockID            uint64 `abi:"anchorBlockId"`
	LastBlockTimestamp       uint64
	RevertIfNotFirstProposal bool
	BlobParams               abiBlobParams
	Blocks                   []abiBlockParams
}

func (p BatchParams) toABI() abiBatchParams {
	blocks := make([]abiBlockParams, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = abiBlockParams{
			NumTransactions: b.NumTransactions,
			TimeShift:       b.TimeShift,
			SignalSlots:     b.SignalSlots,
		}
	}
	return abiBatchParams{
		Proposer:                 p.Proposer,
		Coinbase:                 p.Coinbase,
		ParentMetaHash:           p.ParentMetaHash,
		AnchorBlockID:            p.AnchorBlockID,
		LastBlockTimestamp:       p.LastBlockTimestamp,
		RevertIfNotFirstProposal: p.RevertIfNotFirstProposal,
		BlobParams: abiBlobParams{
			BlobHashes:     p.BlobParams.BlobHashes,
			FirstBlobIndex: p.BlobParams.FirstBlobIndex,
			NumBlobs:       p.BlobParams.NumBlobs,
			ByteOffset:     p.BlobParams.ByteOffset,
			ByteSize:       p.BlobParams.ByteSize,
			CreatedIn:      p.BlobParams.CreatedIn,
		},
		Blocks: blocks,
	}
}

// EncodeBatchParams ABI-encodes a BatchParams struct (the "bytesY" payload).
func EncodeBatchParams(p BatchParams) ([]byte, error) {
	return batchParamsArgs.Pack(p.toABI())
}

// EncodeProposeBatchInput builds the first argument to
// preconfRouter.proposeBatch: abi_encode_sequence({bytesX: empty, bytesY:
// encodeBatchParams(params)}) (§6 wire format).
func EncodeProposeBatchInput(p BatchParams) ([]byte, error) {
	bytesY, err := EncodeBatchParams(p)
	if err != nil {
		return nil, err
	}
	return proposeBatchWrapperArgs.Pack([]byte{}, bytesY)
}

// unused keeps big.Int imported for callers that build LivenessBond math
// alongside this package without a separate import; avoids an unused
// import error if future fields need it.
var _ = big.NewInt
