package rpc

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/NethermindEth/taiko-preconf-node/bindings"
	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
)

// CallFrame is the subset of a debug_traceTransaction callTracer result the
// Transaction Monitor needs to pull the revert reason / returned selector
// out of a failed propose-batch call (§7).
type CallFrame struct {
	Type   string         `json:"type"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Output hexutil.Bytes  `json:"output"`
	Error  string         `json:"error"`
	Revert string         `json:"revertReason"`
	Calls  []CallFrame    `json:"calls"`
}

// L1Client is the C5 L1 Client Adapter (§4.C5): a thin wrapper over
// ethclient.Client plus the handful of raw JSON-RPC and contract-view calls
// the node needs that ethclient doesn't expose directly.
type L1Client struct {
	*ethclient.Client
	raw *rpc.Client

	InboxAddress                common.Address
	RouterAddress               common.Address
	WhitelistAddress            common.Address
	ForcedInclusionStoreAddress common.Address

	bondTokenOnce sync.Once
	bondTokenAddr common.Address
	bondTokenErr  error
}

// NewL1Client dials the L1 execution endpoint and wires the inbox, router,
// whitelist and forced-inclusion store addresses used by every subsequent
// call (§6 CATALYST_NODE_L1_INBOX_ADDRESS and friends).
func NewL1Client(
	ctx context.Context,
	endpoint string,
	inbox, router, whitelist, fis common.Address,
) (*L1Client, error) {
	raw, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial L1 endpoint: %w", err)
	}

	return &L1Client{
		Client:                      ethclient.NewClient(raw),
		raw:                         raw,
		InboxAddress:                inbox,
		RouterAddress:               router,
		WhitelistAddress:            whitelist,
		ForcedInclusionStoreAddress: fis,
	}, nil
}

// PendingNonceAt returns the account's next usable nonce, matching
// txmgr/txmonitor's expectation of the "pending" view (§4.C7).
func (c *L1Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.Client.PendingNonceAt(ctx, account)
}

// FeeHistory2Blocks fetches a 2-block fee history window, the minimum needed
// by the eip1559/eip4844 cost comparison (§4.C6, spec Scenario 1/2).
func (c *L1Client) FeeHistory2Blocks(ctx context.Context, rewardPercentiles []float64) (*ethereum.FeeHistory, error) {
	return c.Client.FeeHistory(ctx, 2, nil, rewardPercentiles)
}

// DebugTraceTransaction calls debug_traceTransaction with the callTracer,
// used by the Transaction Monitor to classify reverted propose-batch
// transactions into the §7 TransactionError taxonomy.
func (c *L1Client) DebugTraceTransaction(ctx context.Context, txHash common.Hash) (*CallFrame, error) {
	var result CallFrame
	err := c.raw.CallContext(ctx, &result, "debug_traceTransaction", txHash, map[string]string{"tracer": "callTracer"})
	if err != nil {
		return nil, fmt.Errorf("rpc: debug_traceTransaction: %w", err)
	}
	return &result, nil
}

// PacayaConfig calls the L1 inbox's pacayaConfig() view (§6, GLOSSARY "Pacaya
// config") and returns it in the internal ProtocolConfig shape.
func (c *L1Client) PacayaConfig(ctx context.Context) (*encoding.ProtocolConfig, error) {
	out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "pacayaConfig")
	if err != nil {
		return nil, fmt.Errorf("rpc: pacayaConfig: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rpc: pacayaConfig: empty result")
	}

	raw, ok := out[0].(struct {
		ChainId                uint64
		MaxUnverifiedBatches   uint64
		BatchRingBufferSize    uint64
		MaxBatchesToVerify     uint64
		BlockMaxGasLimit       uint32
		LivenessBondBase       *big.Int
		LivenessBondPerBlock   *big.Int
		StateRootSyncInternal  uint8
		MaxAnchorHeightOffset  uint64
		BaseFeeConfig          struct {
			AdjustmentQuotient     uint8
			SharingPctg            uint8
			GasIssuancePerSecond   uint32
			MinGasExcess           uint64
			MaxGasIssuancePerBlock uint32
		}
		ProvingWindow       *big.Int
		CooldownWindow      *big.Int
		MaxSignalsToReceive uint8
		MaxBlocksPerBatch   uint16
	})
	if !ok {
		return nil, fmt.Errorf("rpc: pacayaConfig: unexpected return shape %T", out[0])
	}

	return &encoding.ProtocolConfig{
		ChainID:               raw.ChainId,
		MaxUnverifiedBatches:  raw.MaxUnverifiedBatches,
		BatchRingBufferSize:   raw.BatchRingBufferSize,
		MaxBatchesToVerify:    raw.MaxBatchesToVerify,
		BlockMaxGasLimit:      raw.BlockMaxGasLimit,
		LivenessBondBase:      raw.LivenessBondBase,
		LivenessBondPerBlock:  raw.LivenessBondPerBlock,
		StateRootSyncInternal: raw.StateRootSyncInternal,
		MaxAnchorHeightOffset: raw.MaxAnchorHeightOffset,
		BaseFeeConfig: encoding.BaseFeeConfig{
			AdjustmentQuotient:     raw.BaseFeeConfig.AdjustmentQuotient,
			SharingPctg:            raw.BaseFeeConfig.SharingPctg,
			GasIssuancePerSecond:   raw.BaseFeeConfig.GasIssuancePerSecond,
			MinGasExcess:           raw.BaseFeeConfig.MinGasExcess,
			MaxGasIssuancePerBlock: raw.BaseFeeConfig.MaxGasIssuancePerBlock,
		},
		ProvingWindow:       uint32(raw.ProvingWindow.Uint64()),
		CooldownWindow:      uint32(raw.CooldownWindow.Uint64()),
		MaxSignalsToReceive: raw.MaxSignalsToReceive,
		MaxBlocksPerBatch:   raw.MaxBlocksPerBatch,
	}, nil
}

// GetOperatorForCurrentEpoch and GetOperatorForNextEpoch back the Operator
// State Machine's whitelist reads (§4.C10).
func (c *L1Client) GetOperatorForCurrentEpoch(ctx context.Context) (common.Address, error) {
	return c.callWhitelistAddress(ctx, "getOperatorForCurrentEpoch")
}

func (c *L1Client) GetOperatorForNextEpoch(ctx context.Context) (common.Address, error) {
	return c.callWhitelistAddress(ctx, "getOperatorForNextEpoch")
}

func (c *L1Client) callWhitelistAddress(ctx context.Context, method string) (common.Address, error) {
	out, err := bind.NewBoundContract(c.WhitelistAddress, bindings.WhitelistABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("rpc: %s: %w", method, err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("rpc: %s: empty result", method)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("rpc: %s: unexpected return shape %T", method, out[0])
	}
	return addr, nil
}

// BondBalanceOf reads the preconfer's liveness-bond balance held by the
// inbox contract. The funds monitor does not call it; its bond-token gauge
// reads TaikoTokenBalanceOf instead.
func (c *L1Client) BondBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "bondBalanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("rpc: bondBalanceOf: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rpc: bondBalanceOf: empty result")
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("rpc: bondBalanceOf: unexpected return shape %T", out[0])
	}
	return bal, nil
}

// bondTokenAddress resolves the inbox's configured bond/TAIKO token address,
// cached for the lifetime of the client since it never changes post-deploy.
func (c *L1Client) bondTokenAddress(ctx context.Context) (common.Address, error) {
	c.bondTokenOnce.Do(func() {
		out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
			Call(&bind.CallOpts{Context: ctx}, nil, "bondToken")
		if err != nil {
			c.bondTokenErr = fmt.Errorf("rpc: bondToken: %w", err)
			return
		}
		if len(out) == 0 {
			c.bondTokenErr = fmt.Errorf("rpc: bondToken: empty result")
			return
		}
		addr, ok := out[0].(common.Address)
		if !ok {
			c.bondTokenErr = fmt.Errorf("rpc: bondToken: unexpected return shape %T", out[0])
			return
		}
		c.bondTokenAddr = addr
	})
	return c.bondTokenAddr, c.bondTokenErr
}

// TaikoTokenBalanceOf reads account's ERC20 balance of the inbox's bond
// token, used by the funds monitor's preconfer_taiko_balance gauge
// (§6 Metrics endpoint).
func (c *L1Client) TaikoTokenBalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	token, err := c.bondTokenAddress(ctx)
	if err != nil {
		return nil, err
	}
	out, err := bind.NewBoundContract(token, bindings.ERC20ABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("rpc: taiko token balanceOf: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rpc: taiko token balanceOf: empty result")
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("rpc: taiko token balanceOf: unexpected return shape %T", out[0])
	}
	return bal, nil
}

// ForcedInclusionHeadTail reads the forced-inclusion store's head/tail
// indices (§4.C14).
func (c *L1Client) ForcedInclusionHeadTail(ctx context.Context) (head, tail *big.Int, err error) {
	contract := bind.NewBoundContract(c.ForcedInclusionStoreAddress, bindings.ForcedInclusionStoreABI, c.Client, c.Client, c.Client)

	headOut, err := contract.Call(&bind.CallOpts{Context: ctx}, nil, "head")
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: forcedInclusion head: %w", err)
	}
	tailOut, err := contract.Call(&bind.CallOpts{Context: ctx}, nil, "tail")
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: forcedInclusion tail: %w", err)
	}
	head, ok := headOut[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("rpc: forcedInclusion head: unexpected return shape %T", headOut[0])
	}
	tail, ok = tailOut[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("rpc: forcedInclusion tail: unexpected return shape %T", tailOut[0])
	}
	return head, tail, nil
}

// ForcedInclusionAt reads a single forced-inclusion entry by index.
func (c *L1Client) ForcedInclusionAt(ctx context.Context, index *big.Int) (blobHash common.Hash, byteOffset, byteSize uint32, createdIn uint64, err error) {
	out, err := bind.NewBoundContract(c.ForcedInclusionStoreAddress, bindings.ForcedInclusionStoreABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "getForcedInclusion", index)
	if err != nil {
		return common.Hash{}, 0, 0, 0, fmt.Errorf("rpc: getForcedInclusion: %w", err)
	}
	if len(out) == 0 {
		return common.Hash{}, 0, 0, 0, fmt.Errorf("rpc: getForcedInclusion: empty result")
	}
	raw, ok := out[0].(struct {
		BlobHash      [32]byte
		BlobByteOffset uint32
		BlobByteSize   uint32
		BlobCreatedIn  uint64
	})
	if !ok {
		return common.Hash{}, 0, 0, 0, fmt.Errorf("rpc: getForcedInclusion: unexpected return shape %T", out[0])
	}
	return raw.BlobHash, raw.BlobByteOffset, raw.BlobByteSize, raw.BlobCreatedIn, nil
}

// GetL2HeightFromTaikoInbox reads the batch metadata for batchID and returns
// the height of its last L2 block, used by the Node Loop and the Verifier to
// read the L1 inbox's last proposed L2 height.
func (c *L1Client) GetL2HeightFromTaikoInbox(ctx context.Context, batchID uint64) (uint64, error) {
	out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "getBatch", batchID)
	if err != nil {
		return 0, fmt.Errorf("rpc: getBatch: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("rpc: getBatch: empty result")
	}
	raw, ok := out[0].(struct {
		MetaHash             [32]byte
		LastBlockId          uint64
		BatchId              uint64
		LastBlockTimestamp   uint64
		AnchorBlockId        uint64
		NextTransitionId     *big.Int
		VerifiedTransitionId *big.Int
	})
	if !ok {
		return 0, fmt.Errorf("rpc: getBatch: unexpected return shape %T", out[0])
	}
	return raw.LastBlockId, nil
}

// GetBatchMetaHash reads the stored metaHash of a previously proposed batch,
// used by the Node Loop to resolve parent_meta_hash for the next
// proposeBatch call (§6 wire format, BatchParams.parentMetaHash).
func (c *L1Client) GetBatchMetaHash(ctx context.Context, batchID uint64) (common.Hash, error) {
	out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "getBatch", batchID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("rpc: getBatch: %w", err)
	}
	if len(out) == 0 {
		return common.Hash{}, fmt.Errorf("rpc: getBatch: empty result")
	}
	raw, ok := out[0].(struct {
		MetaHash             [32]byte
		LastBlockId          uint64
		BatchId              uint64
		LastBlockTimestamp   uint64
		AnchorBlockId        uint64
		NextTransitionId     *big.Int
		VerifiedTransitionId *big.Int
	})
	if !ok {
		return common.Hash{}, fmt.Errorf("rpc: getBatch: unexpected return shape %T", out[0])
	}
	return raw.MetaHash, nil
}

// Stats2 is the L1 inbox's getStats2() view (§6, GLOSSARY).
type Stats2 struct {
	NumBatches         uint64
	LastVerifiedBatchID uint64
	Paused             bool
	LastProposedIn     uint64
	LastUnpausedAt     uint64
}

// GetStats2 calls the L1 inbox's getStats2() view.
func (c *L1Client) GetStats2(ctx context.Context) (*Stats2, error) {
	out, err := bind.NewBoundContract(c.InboxAddress, bindings.InboxABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "getStats2")
	if err != nil {
		return nil, fmt.Errorf("rpc: getStats2: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rpc: getStats2: empty result")
	}
	raw, ok := out[0].(struct {
		NumBatches         uint64
		LastVerifiedBatchId uint64
		Paused             bool
		LastProposedIn     *big.Int
		LastUnpausedAt     uint64
	})
	if !ok {
		return nil, fmt.Errorf("rpc: getStats2: unexpected return shape %T", out[0])
	}
	return &Stats2{
		NumBatches:          raw.NumBatches,
		LastVerifiedBatchID: raw.LastVerifiedBatchId,
		Paused:              raw.Paused,
		LastProposedIn:      raw.LastProposedIn.Uint64(),
		LastUnpausedAt:      raw.LastUnpausedAt,
	}, nil
}

// WatchBatchProposed subscribes to BatchProposed logs starting at fromBlock,
// feeding the Chain Monitor (§4.C12).
func (c *L1Client) WatchBatchProposed(ctx context.Context, fromBlock uint64, sink chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.InboxAddress},
		Topics:    [][]common.Hash{{bindings.InboxABI.Events["BatchProposed"].ID}},
	}
	sub, err := c.Client.SubscribeFilterLogs(ctx, query, sink)
	if err != nil {
		log.Warn("l1 log subscription unavailable, caller should fall back to polling", "err", err)
		return nil, err
	}
	return sub, nil
}
