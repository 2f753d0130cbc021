// Package forcedinclusion implements the C14 Forced-Inclusion Adapter
// (§4.C14): it tracks the on-chain forced-inclusion store's head/tail index
// window and, on demand, decodes the next queued item's blob into a tx list
// via a cancellable background task so a slow blob fetch never stalls the
// heartbeat.
package forcedinclusion

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/pkg/blobcodec"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/pkg/txlistcodec"
)

// decodeCacheSize bounds the decoded-batch cache; a retried decode (after a
// cancelled background task) should not re-fetch and re-decompress the blob.
const decodeCacheSize = 64

// DecodeResult is delivered on the channel StartDecode returns.
type DecodeResult struct {
	Batch *node.ForcedInclusionBatch
	Err   error
}

// Adapter is the C14 Forced-Inclusion Adapter.
type Adapter struct {
	l1     *rpc.L1Client
	beacon *rpc.BeaconClient
	clock  *slotclock.SlotClock

	mu         sync.Mutex
	index      uint64
	tail       uint64
	cancelPrev context.CancelFunc

	cache *lru.Cache[uint64, *node.ForcedInclusionBatch]
}

// New builds a Forced-Inclusion Adapter. Refresh must be called at least
// once before HasPending/StartDecode report anything useful.
func New(l1 *rpc.L1Client, beacon *rpc.BeaconClient, clock *slotclock.SlotClock) *Adapter {
	cache, _ := lru.New[uint64, *node.ForcedInclusionBatch](decodeCacheSize)
	return &Adapter{l1: l1, beacon: beacon, clock: clock, cache: cache}
}

// Refresh re-reads the on-chain head/tail window. If the on-chain head has
// moved past our own cursor (another consumer claimed entries, or this is a
// fresh restart) the cursor jumps forward to match.
func (a *Adapter) Refresh(ctx context.Context) error {
	head, tail, err := a.l1.ForcedInclusionHeadTail(ctx)
	if err != nil {
		return fmt.Errorf("forcedinclusion: head/tail: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if head.Uint64() > a.index {
		a.index = head.Uint64()
	}
	a.tail = tail.Uint64()
	return nil
}

// HasPending reports whether at least one forced-inclusion entry is waiting
// to be consumed.
func (a *Adapter) HasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index < a.tail
}

// StartDecode consumes the next queued index and kicks off its blob decode
// in the background, cancelling any still-running previous decode first
// (§5 "the blob-decoding sub-task additionally has its own token"). The
// caller reads exactly one DecodeResult off the returned channel.
func (a *Adapter) StartDecode(ctx context.Context) <-chan DecodeResult {
	out := make(chan DecodeResult, 1)

	a.mu.Lock()
	if a.index >= a.tail {
		a.mu.Unlock()
		out <- DecodeResult{Err: fmt.Errorf("forcedinclusion: no pending entry")}
		return out
	}
	if a.cancelPrev != nil {
		a.cancelPrev()
	}
	index := a.index
	a.index++
	decodeCtx, cancel := context.WithCancel(ctx)
	a.cancelPrev = cancel
	a.mu.Unlock()

	go func() {
		defer cancel()
		batch, err := a.decode(decodeCtx, index)
		out <- DecodeResult{Batch: batch, Err: err}
	}()
	return out
}

// CancelPending aborts a background decode that hasn't delivered yet,
// called before a deliberate re-anchor makes it obsolete (§5 Cancellation).
func (a *Adapter) CancelPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelPrev != nil {
		a.cancelPrev()
		a.cancelPrev = nil
	}
}

// decode fetches entry index's metadata, resolves its blob from the beacon
// node, unpacks it via the blob codec, and decodes the resulting bytes
// (already RLP+zlib-compressed the same way a batch's tx list is) into a
// transaction list.
func (a *Adapter) decode(ctx context.Context, index uint64) (*node.ForcedInclusionBatch, error) {
	if cached, ok := a.cache.Get(index); ok {
		return cached, nil
	}

	blobHash, byteOffset, byteSize, createdIn, err := a.l1.ForcedInclusionAt(ctx, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: entry %d: %w", index, err)
	}

	header, err := a.l1.HeaderByNumber(ctx, new(big.Int).SetUint64(createdIn))
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: l1 header at %d: %w", createdIn, err)
	}
	slot, err := a.clock.SlotAtTimestamp(header.Time)
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: slot at block %d: %w", createdIn, err)
	}

	raw, err := a.beacon.BlobByVersionedHash(ctx, slot, blobHash)
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: fetch blob %s: %w", blobHash, err)
	}
	var blob blobcodec.Blob
	copy(blob[:], raw)
	decoded, err := blobcodec.Decode(&blob)
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: decode blob %s: %w", blobHash, err)
	}

	if uint64(byteOffset)+uint64(byteSize) > uint64(len(decoded)) {
		return nil, fmt.Errorf("forcedinclusion: entry %d: offset+size exceeds decoded blob length", index)
	}
	slice := decoded[byteOffset : byteOffset+byteSize]

	txs, err := txlistcodec.UncompressAndDecode(slice)
	if err != nil {
		return nil, fmt.Errorf("forcedinclusion: decode tx list for entry %d: %w", index, err)
	}

	batch := &node.ForcedInclusionBatch{
		BlobHash:         blobHash,
		ByteOffset:       byteOffset,
		ByteSize:         byteSize,
		CreatedInL1Block: createdIn,
		DecodedTxs:       txs,
	}
	a.cache.Add(index, batch)
	return batch, nil
}
