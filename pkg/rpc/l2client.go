package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-resty/resty/v2"

	"github.com/NethermindEth/taiko-preconf-node/bindings"
	"github.com/NethermindEth/taiko-preconf-node/bindings/encoding"
	"github.com/NethermindEth/taiko-preconf-node/pkg/signer"
)

// anchorTxGasLimit and anchorTxMaxPriorityFeePerGas are the protocol-fixed
// values the anchor transaction must carry (§4.C4 construct_anchor_tx,
// "value expected by Taiko").
const (
	anchorTxGasLimit             = 1_000_000
	anchorTxMaxPriorityFeePerGas = 0
)

// PreBuiltTxList is the candidate-block payload the local execution engine
// hands back from pending_tx_list (§4.C4).
type PreBuiltTxList struct {
	TxList           types.Transactions
	EstimatedGasUsed uint64
	BytesLength      uint64
}

// L1Origin is the subset of taiko_l1OriginByID the node needs to tell a
// forced-inclusion-sourced block apart from a regular preconfirmed one.
type L1Origin struct {
	IsForcedInclusion bool `json:"isForcedInclusion"`
}

// ExecutableData is the driver's expected POST /preconfBlocks payload shape
// (§4.C9 step 5, §6 "L2 driver JSON-HTTP").
type ExecutableData struct {
	BaseFeePerGas *hexutil.Big      `json:"baseFeePerGas"`
	BlockNumber   hexutil.Uint64    `json:"blockNumber"`
	ExtraData     hexutil.Bytes     `json:"extraData"`
	FeeRecipient  common.Address    `json:"feeRecipient"`
	GasLimit      hexutil.Uint64    `json:"gasLimit"`
	ParentHash    common.Hash       `json:"parentHash"`
	Timestamp     hexutil.Uint64    `json:"timestamp"`
	Transactions  hexutil.Bytes     `json:"transactions"`
}

type submitPreconfBlockRequest struct {
	ExecutableData  ExecutableData `json:"executableData"`
	EndOfSequencing bool           `json:"endOfSequencing"`
}

type blockHeaderResponse struct {
	Number     hexutil.Uint64 `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
}

type submitPreconfBlockResponse struct {
	BlockHeader blockHeaderResponse `json:"blockHeader"`
}

// L2Client is the C4 L2 Client Adapter (§4.C4): RPC to the local execution
// engine (plain and JWT-authenticated) plus the driver's JSON-HTTP API.
type L2Client struct {
	*ethclient.Client
	authRPC       *rpc.Client
	driver        *resty.Client
	anchorAddress common.Address
}

// NewL2Client dials the plain and JWT-authenticated L2 endpoints and wires
// the driver's base URL, matching §6's TAIKO_GETH_RPC_URL /
// TAIKO_GETH_AUTH_RPC_URL / TAIKO_DRIVER_URL / JWT_SECRET_FILE_PATH.
func NewL2Client(ctx context.Context, gethURL, authURL, driverURL, jwtSecretFile string, anchorAddress common.Address) (*L2Client, error) {
	plain, err := ethclient.DialContext(ctx, gethURL)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial L2 endpoint: %w", err)
	}

	secret, err := loadJWTSecret(jwtSecretFile)
	if err != nil {
		return nil, fmt.Errorf("rpc: load JWT secret: %w", err)
	}

	authRPC, err := rpc.DialOptions(ctx, authURL, rpc.WithHTTPAuth(node.NewJWTAuth(secret)))
	if err != nil {
		return nil, fmt.Errorf("rpc: dial L2 auth endpoint: %w", err)
	}

	driver := resty.New().
		SetBaseURL(driverURL).
		SetTimeout(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &L2Client{
		Client:        plain,
		authRPC:       authRPC,
		driver:        driver,
		anchorAddress: anchorAddress,
	}, nil
}

func loadJWTSecret(path string) ([32]byte, error) {
	var secret [32]byte
	raw, err := os.ReadFile(path)
	if err != nil {
		return secret, err
	}
	decoded, err := hexutil.Decode(strings.TrimSpace(string(raw)))
	if err != nil {
		return secret, fmt.Errorf("invalid JWT secret file contents: %w", err)
	}
	if len(decoded) != 32 {
		return secret, fmt.Errorf("JWT secret must be 32 bytes, got %d", len(decoded))
	}
	copy(secret[:], decoded)
	return secret, nil
}

// PendingTxList requests one candidate block's worth of transactions from
// the local execution engine's tx pool, filtered by min-tip=0 (§4.C4
// pending_tx_list).
func (c *L2Client) PendingTxList(
	ctx context.Context,
	beneficiary common.Address,
	baseFee uint64,
	blockMaxGasLimit uint64,
	maxBytesPerTxList uint64,
) (*PreBuiltTxList, error) {
	var result []struct {
		TxList           hexutil.Bytes `json:"txList"`
		EstimatedGasUsed uint64        `json:"estimatedGasUsed"`
		BytesLength      uint64        `json:"bytesLength"`
	}

	err := c.authRPC.CallContext(
		ctx,
		&result,
		"taikoAuth_txPoolContentWithMinTip",
		beneficiary,
		(*hexutil.Big)(new(big.Int).SetUint64(baseFee)),
		blockMaxGasLimit,
		maxBytesPerTxList,
		[]common.Address{},
		1,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: taikoAuth_txPoolContentWithMinTip: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	var txs types.Transactions
	if err := rlp.DecodeBytes(result[0].TxList, &txs); err != nil {
		return nil, fmt.Errorf("rpc: decode pending tx list: %w", err)
	}

	return &PreBuiltTxList{
		TxList:           txs,
		EstimatedGasUsed: result[0].EstimatedGasUsed,
		BytesLength:      result[0].BytesLength,
	}, nil
}

// L1OriginByID returns whether the given L2 block originated from a
// forced-inclusion batch (§6 "Custom taiko_l1OriginByID(id)").
func (c *L2Client) L1OriginByID(ctx context.Context, blockID uint64) (*L1Origin, error) {
	var origin L1Origin
	if err := c.authRPC.CallContext(ctx, &origin, "taiko_l1OriginByID", hexutil.Uint64(blockID)); err != nil {
		return nil, fmt.Errorf("rpc: taiko_l1OriginByID: %w", err)
	}
	return &origin, nil
}

// ParentInfo returns the parent L2 block's header fields needed to build
// the next SlotInfo (§3 SlotInfo).
func (c *L2Client) ParentInfo(ctx context.Context) (*types.Header, error) {
	return c.Client.HeaderByNumber(ctx, nil)
}

// BaseFee calls the L2 anchor contract's getBasefeeV2 view (§6 "L2 anchor
// contract").
func (c *L2Client) BaseFee(ctx context.Context, parentGasUsed uint32, l2SlotTimestamp uint64, cfg encoding.BaseFeeConfig) (uint64, error) {
	out, err := bind.NewBoundContract(c.anchorAddress, bindings.AnchorABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "getBasefeeV2", parentGasUsed, l2SlotTimestamp, baseFeeConfigToABIArg(cfg))
	if err != nil {
		return 0, fmt.Errorf("rpc: getBasefeeV2: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("rpc: getBasefeeV2: empty result")
	}
	basefee, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("rpc: getBasefeeV2: unexpected return shape %T", out[0])
	}
	return basefee.Uint64(), nil
}

// baseFeeConfigToABIArg reshapes a BaseFeeConfig into the anonymous struct
// shape abi.Pack expects for the anchor contract's baseFeeConfig tuple
// argument (field order mirrors the ABI component order in
// bindings/contracts.go).
func baseFeeConfigToABIArg(cfg encoding.BaseFeeConfig) interface{} {
	return struct {
		AdjustmentQuotient     uint8
		SharingPctg            uint8
		GasIssuancePerSecond   uint32
		MinGasExcess           uint64
		MaxGasIssuancePerBlock uint32
	}{
		AdjustmentQuotient:     cfg.AdjustmentQuotient,
		SharingPctg:            cfg.SharingPctg,
		GasIssuancePerSecond:   cfg.GasIssuancePerSecond,
		MinGasExcess:           cfg.MinGasExcess,
		MaxGasIssuancePerBlock: cfg.MaxGasIssuancePerBlock,
	}
}

// LastSyncedAnchorIDFromAnchorContract calls the L2 anchor contract's
// lastSyncedBlock() view (§4.C4).
func (c *L2Client) LastSyncedAnchorIDFromAnchorContract(ctx context.Context) (uint64, error) {
	out, err := bind.NewBoundContract(c.anchorAddress, bindings.AnchorABI, c.Client, c.Client, c.Client).
		Call(&bind.CallOpts{Context: ctx}, nil, "lastSyncedBlock")
	if err != nil {
		return 0, fmt.Errorf("rpc: lastSyncedBlock: %w", err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("rpc: lastSyncedBlock: empty result")
	}
	id, ok := out[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("rpc: lastSyncedBlock: unexpected return shape %T", out[0])
	}
	return id, nil
}

// LastSyncedAnchorIDFromGeth decodes the anchor transaction of the latest L2
// block to recover the anchor block ID it encoded (§4.C4
// last_synced_anchor_id_from_geth).
func (c *L2Client) LastSyncedAnchorIDFromGeth(ctx context.Context) (uint64, error) {
	block, err := c.Client.BlockByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("rpc: fetch latest L2 block: %w", err)
	}
	txs := block.Transactions()
	if len(txs) == 0 {
		return 0, fmt.Errorf("rpc: latest L2 block has no anchor transaction")
	}
	anchorBlockID, err := DecodeAnchorBlockID(txs[0].Data())
	if err != nil {
		return 0, fmt.Errorf("rpc: decode anchor tx: %w", err)
	}
	return anchorBlockID, nil
}

// DecodeAnchorBlockID extracts the anchorBlockId argument from an anchorV3
// call's calldata, used both by LastSyncedAnchorIDFromGeth and by the Batch
// Manager's recover_from_l2_block (§4.C9).
func DecodeAnchorBlockID(data []byte) (uint64, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("rpc: anchor tx data too short")
	}
	method, err := bindings.AnchorABI.MethodById(data[:4])
	if err != nil {
		return 0, fmt.Errorf("rpc: decode anchor tx selector: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return 0, fmt.Errorf("rpc: decode anchor tx args: %w", err)
	}
	anchorBlockID, ok := args[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("rpc: anchor tx first arg has unexpected type %T", args[0])
	}
	return anchorBlockID, nil
}

// ConstructAnchorTx builds and signs the anchorV3 EIP-1559 transaction that
// must be prepended to every L2 block's tx list (§4.C4, §4.C9 step 5): gas
// fixed at 1,000,000, zero priority fee, max fee pinned to the L2 base fee,
// nonce read from the golden-touch account at parentHash, signed
// deterministically via the fixed-k signer (§4.C2).
func (c *L2Client) ConstructAnchorTx(
	ctx context.Context,
	anchorSigner *signer.FixedKSigner,
	parentHash common.Hash,
	anchorBlockID uint64,
	anchorStateRoot common.Hash,
	parentGasUsed uint32,
	cfg encoding.BaseFeeConfig,
	baseFee uint64,
) (*types.Transaction, error) {
	chainID, err := c.Client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("rpc: l2 chain id: %w", err)
	}

	parentHeader, err := c.Client.HeaderByHash(ctx, parentHash)
	if err != nil {
		return nil, fmt.Errorf("rpc: anchor tx parent header: %w", err)
	}
	nonce, err := c.Client.NonceAt(ctx, signer.GoldenTouchAddress, parentHeader.Number)
	if err != nil {
		return nil, fmt.Errorf("rpc: golden touch nonce: %w", err)
	}

	data, err := bindings.AnchorABI.Pack(
		"anchorV3",
		anchorBlockID,
		anchorStateRoot,
		parentGasUsed,
		baseFeeConfigToABIArg(cfg),
		[]common.Hash{},
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: pack anchorV3: %w", err)
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(anchorTxMaxPriorityFeePerGas),
		GasFeeCap: new(big.Int).SetUint64(baseFee),
		Gas:       anchorTxGasLimit,
		To:        &c.anchorAddress,
		Data:      data,
	})

	txSigner := types.NewLondonSigner(chainID)
	hash := txSigner.Hash(unsigned)

	sig, err := anchorSigner.SignHash(hash)
	if err != nil {
		return nil, fmt.Errorf("rpc: sign anchor tx: %w", err)
	}

	signed, err := unsigned.WithSignature(txSigner, sig[:])
	if err != nil {
		return nil, fmt.Errorf("rpc: apply anchor tx signature: %w", err)
	}
	return signed, nil
}

// SubmitPreconfBlock POSTs a freshly built L2 block to the driver (§4.C9
// step 5, §6 "POST /preconfBlocks").
func (c *L2Client) SubmitPreconfBlock(ctx context.Context, data ExecutableData, endOfSequencing bool) (number uint64, hash, parentHash common.Hash, err error) {
	var response submitPreconfBlockResponse
	var apiErr json.RawMessage

	resp, err := c.driver.R().
		SetContext(ctx).
		SetBody(submitPreconfBlockRequest{ExecutableData: data, EndOfSequencing: endOfSequencing}).
		SetResult(&response).
		SetError(&apiErr).
		Post("/preconfBlocks")
	if err != nil {
		return 0, common.Hash{}, common.Hash{}, fmt.Errorf("rpc: POST /preconfBlocks: %w", err)
	}
	if resp.IsError() {
		return 0, common.Hash{}, common.Hash{}, fmt.Errorf("rpc: POST /preconfBlocks: driver rejected block, status %d: %s", resp.StatusCode(), string(apiErr))
	}

	return uint64(response.BlockHeader.Number), response.BlockHeader.Hash, response.BlockHeader.ParentHash, nil
}

// TriggerReorg requests the driver reorg to targetBlockID. Its only caller
// is the Node Loop's re-anchor path (node.Loop.triggerReanchor), which calls
// it on every re-anchor (§6 "trigger_reorg").
func (c *L2Client) TriggerReorg(ctx context.Context, targetBlockID uint64) error {
	resp, err := c.driver.R().
		SetContext(ctx).
		SetBody(map[string]uint64{"targetBlockId": targetBlockID}).
		Post("/reorg")
	if err != nil {
		return fmt.Errorf("rpc: POST /reorg: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("rpc: POST /reorg: status %d", resp.StatusCode())
	}
	return nil
}
