// Package txbuilder implements the C6 Propose-Batch Builder (§4.C6): given a
// batch's blocks and compressed tx list it produces both a calldata-form and
// a blob-form proposeBatch transaction candidate, estimates gas for each, and
// returns the cheaper one.
package txbuilder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum-optimism/optimism/op-service/eth"
	"github.com/ethereum-optimism/optimism/op-service/txmgr"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/taiko-preconf-node/bindings"
	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
	"github.com/NethermindEth/taiko-preconf-node/pkg/blobcodec"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
)

// dataGasPerBlob is the fixed blob-gas cost of a single blob (§4.C6
// "DATA_GAS_PER_BLOB"), matching the protocol's per-blob 131072 gas charge.
const dataGasPerBlob = 131072

// Input is everything the Propose-Batch Builder needs to produce both
// transaction forms for the same batch (§4.C9 step 5 hands this over after
// building the anchor tx and compressing the tx lists).
type Input struct {
	Proposer                 common.Address
	Coinbase                 common.Address
	ParentMetaHash           common.Hash
	AnchorBlockID            uint64
	LastBlockTimestamp       uint64
	RevertIfNotFirstProposal bool
	Blocks                   []encoding.BlockParams
	// TxListBytes is the RLP+zlib-compressed concatenation of the batch's
	// (and, if present, forced-inclusion prefix's) tx lists.
	TxListBytes []byte
	// ForcedInclusionCreatedIn is the forced-inclusion blob's L1 creation
	// block, or 0 for a locally built batch (§6 blobParams.createdIn).
	ForcedInclusionCreatedIn uint64
}

// Builder is the C6 Propose-Batch Builder.
type Builder struct {
	l1                 *rpc.L1Client
	routerAddress      common.Address
	blobsPerBatch      uint64
	extraGasPercentage uint64
}

// NewBuilder wires the L1 adapter used for gas estimation and fee history,
// the preconf router address, and the batch config knobs from §6
// (BLOBS_PER_BATCH, EXTRA_GAS_PERCENTAGE).
func NewBuilder(l1 *rpc.L1Client, routerAddress common.Address, blobsPerBatch, extraGasPercentage uint64) *Builder {
	return &Builder{
		l1:                 l1,
		routerAddress:      routerAddress,
		blobsPerBatch:      blobsPerBatch,
		extraGasPercentage: extraGasPercentage,
	}
}

func baseParams(in Input) encoding.BatchParams {
	return encoding.BatchParams{
		Proposer:                 in.Proposer,
		Coinbase:                 in.Coinbase,
		ParentMetaHash:           in.ParentMetaHash,
		AnchorBlockID:            in.AnchorBlockID,
		LastBlockTimestamp:       in.LastBlockTimestamp,
		RevertIfNotFirstProposal: in.RevertIfNotFirstProposal,
		Blocks:                   in.Blocks,
	}
}

// buildCalldataTx builds the calldata-form transaction: the compressed tx
// list travels as the txList argument, blobParams.numBlobs stays 0 (§6 wire
// format).
func (b *Builder) buildCalldataTx(in Input) (*txmgr.TxCandidate, error) {
	params := baseParams(in)
	params.BlobParams = encoding.BlobParams{ByteSize: uint32(len(in.TxListBytes))}

	paramsBytes, err := encoding.EncodeProposeBatchInput(params)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: encode calldata batch params: %w", err)
	}
	data, err := bindings.RouterABI.Pack("proposeBatch", paramsBytes, in.TxListBytes)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: pack calldata proposeBatch: %w", err)
	}
	return &txmgr.TxCandidate{TxData: data, To: &b.routerAddress}, nil
}

// buildBlobTx builds the blob-form transaction: the compressed tx list is
// split across up to blobs_per_batch blobs, each packed independently via
// the §4.C3 codec, and the txList argument is left empty.
func (b *Builder) buildBlobTx(in Input) (*txmgr.TxCandidate, []common.Hash, error) {
	blobs, hashes, err := b.packBlobs(in.TxListBytes)
	if err != nil {
		return nil, nil, err
	}

	params := baseParams(in)
	params.BlobParams = encoding.BlobParams{
		BlobHashes:     hashes,
		FirstBlobIndex: 0,
		NumBlobs:       uint8(len(blobs)),
		ByteOffset:     0,
		ByteSize:       uint32(len(in.TxListBytes)),
		CreatedIn:      in.ForcedInclusionCreatedIn,
	}

	paramsBytes, err := encoding.EncodeProposeBatchInput(params)
	if err != nil {
		return nil, nil, fmt.Errorf("txbuilder: encode blob batch params: %w", err)
	}
	data, err := bindings.RouterABI.Pack("proposeBatch", paramsBytes, []byte{})
	if err != nil {
		return nil, nil, fmt.Errorf("txbuilder: pack blob proposeBatch: %w", err)
	}

	return &txmgr.TxCandidate{TxData: data, To: &b.routerAddress, Blobs: blobs}, hashes, nil
}

// packBlobs chunks txListBytes into at most MaxBlobDataSize pieces, encodes
// each chunk into its own blob (each carrying its own §4.C3 version+length
// header), and computes the versioned KZG hash of every blob the way the
// teacher's tx cost calculator does for its blob candidates.
func (b *Builder) packBlobs(txListBytes []byte) ([]*eth.Blob, []common.Hash, error) {
	var chunks [][]byte
	for off := 0; off < len(txListBytes); off += blobcodec.MaxBlobDataSize {
		end := off + blobcodec.MaxBlobDataSize
		if end > len(txListBytes) {
			end = len(txListBytes)
		}
		chunks = append(chunks, txListBytes[off:end])
	}
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}
	if uint64(len(chunks)) > b.blobsPerBatch {
		return nil, nil, fmt.Errorf(
			"txbuilder: tx list needs %d blobs, exceeds blobs_per_batch=%d", len(chunks), b.blobsPerBatch,
		)
	}

	blobs := make([]*eth.Blob, len(chunks))
	hashes := make([]common.Hash, len(chunks))
	for i, chunk := range chunks {
		packed, err := blobcodec.Encode(chunk)
		if err != nil {
			return nil, nil, fmt.Errorf("txbuilder: encode blob %d: %w", i, err)
		}
		blob := new(eth.Blob)
		copy(blob[:], packed[:])

		commitment, err := blob.ComputeKZGCommitment()
		if err != nil {
			return nil, nil, fmt.Errorf("txbuilder: compute KZG commitment for blob %d: %w", i, err)
		}
		hashes[i] = kzg4844.CalcBlobHashV1(sha256.New(), &commitment)
		blobs[i] = blob
	}
	return blobs, hashes, nil
}

// Build produces both transaction forms, estimates gas for each, and returns
// the cheaper one per the §4.C6 cost formulas. If fee-history retrieval
// fails it defaults to the blob form without estimating cost. If both gas
// estimates come back zero it errors out rather than silently picking one.
func (b *Builder) Build(ctx context.Context, in Input) (*txmgr.TxCandidate, error) {
	calldataTx, err := b.buildCalldataTx(in)
	if err != nil {
		return nil, err
	}
	blobTx, blobHashes, err := b.buildBlobTx(in)
	if err != nil {
		return nil, err
	}

	feeHistory, err := b.l1.FeeHistory2Blocks(ctx, []float64{50})
	if err != nil {
		log.Warn("txbuilder: fee history unavailable, defaulting to blob form", "err", err)
		return blobTx, nil
	}
	if len(feeHistory.BaseFee) == 0 || len(feeHistory.Reward) == 0 || len(feeHistory.Reward[len(feeHistory.Reward)-1]) == 0 {
		log.Warn("txbuilder: empty fee history response, defaulting to blob form")
		return blobTx, nil
	}

	baseFee := feeHistory.BaseFee[len(feeHistory.BaseFee)-1]
	priorityFee := feeHistory.Reward[len(feeHistory.Reward)-1][0]
	blobBaseFee := big.NewInt(0)
	if len(feeHistory.BlobBaseFee) > 0 {
		blobBaseFee = feeHistory.BlobBaseFee[len(feeHistory.BlobBaseFee)-1]
	}

	gas1559, err := b.l1.EstimateGas(ctx, ethereum.CallMsg{
		From: in.Proposer,
		To:   &b.routerAddress,
		Data: calldataTx.TxData,
	})
	if err != nil {
		log.Debug("txbuilder: calldata gas estimate failed", "err", err)
		gas1559 = 0
	}

	gas4844, err := b.l1.EstimateGas(ctx, ethereum.CallMsg{
		From:          in.Proposer,
		To:            &b.routerAddress,
		Data:          blobTx.TxData,
		BlobGasFeeCap: blobBaseFee,
		BlobHashes:    blobHashes,
	})
	if err != nil {
		log.Debug("txbuilder: blob gas estimate failed", "err", err)
		gas4844 = 0
	}

	if gas1559 == 0 && gas4844 == 0 {
		return nil, fmt.Errorf("txbuilder: both calldata and blob gas estimates are zero")
	}
	if gas1559 == 0 {
		return blobTx, nil
	}
	if gas4844 == 0 {
		return calldataTx, nil
	}

	inflate := func(gas uint64) uint64 {
		return gas * (100 + b.extraGasPercentage) / 100
	}

	feePerGas := new(big.Int).Add(baseFee, priorityFee)
	eip1559Cost := new(big.Int).Mul(new(big.Int).SetUint64(inflate(gas1559)), feePerGas)

	blobGasCost := new(big.Int).Mul(
		new(big.Int).SetUint64(dataGasPerBlob*uint64(len(blobHashes))),
		blobBaseFee,
	)
	eip4844Cost := new(big.Int).Add(
		new(big.Int).Mul(new(big.Int).SetUint64(inflate(gas4844)), feePerGas),
		blobGasCost,
	)

	if eip4844Cost.Cmp(eip1559Cost) < 0 {
		return blobTx, nil
	}
	return calldataTx, nil
}
