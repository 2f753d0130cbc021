// Package flags defines all command line flags for the preconf-node binary,
// one per §6 environment variable of the spec, with the same defaults.
package flags

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Required flag category, used purely for --help grouping.
const (
	l1Category       = "L1"
	l2Category       = "L2"
	signerCategory   = "SIGNER"
	epochCategory    = "EPOCH"
	batchCategory    = "BATCH"
	txmonCategory    = "TXMONITOR"
	metricsCategory  = "METRICS"
	loggingCategory  = "LOGGING"
)

var (
	L1RPCURLs = &cli.StringSliceFlag{
		Name:     "l1.rpcUrls",
		Usage:    "Comma-separated L1 execution engine RPC endpoints, first is primary",
		EnvVars:  []string{"L1_RPC_URLS"},
		Category: l1Category,
	}
	L1BeaconURL = &cli.StringFlag{
		Name:     "l1.beaconUrl",
		Usage:    "L1 beacon (consensus) node REST endpoint",
		EnvVars:  []string{"L1_BEACON_URL"},
		Category: l1Category,
	}
	TaikoGethRPCURL = &cli.StringFlag{
		Name:     "l2.gethRpcUrl",
		Usage:    "L2 execution engine RPC endpoint",
		EnvVars:  []string{"TAIKO_GETH_RPC_URL"},
		Category: l2Category,
	}
	TaikoGethAuthRPCURL = &cli.StringFlag{
		Name:     "l2.gethAuthRpcUrl",
		Usage:    "L2 execution engine authenticated (JWT) RPC endpoint",
		EnvVars:  []string{"TAIKO_GETH_AUTH_RPC_URL"},
		Category: l2Category,
	}
	TaikoDriverURL = &cli.StringFlag{
		Name:     "l2.driverUrl",
		Usage:    "L2 driver JSON-HTTP endpoint",
		EnvVars:  []string{"TAIKO_DRIVER_URL"},
		Category: l2Category,
	}
	JWTSecretFile = &cli.StringFlag{
		Name:     "l2.jwtSecretFile",
		Usage:    "Path to the JWT secret shared with the L2 execution engine",
		EnvVars:  []string{"JWT_SECRET_FILE_PATH"},
		Value:    "/tmp/jwtsecret",
		Category: l2Category,
	}
	L1InboxAddress = &cli.StringFlag{
		Name:     "l1.inboxAddress",
		Usage:    "TaikoInbox contract address",
		EnvVars:  []string{"CATALYST_NODE_L1_INBOX_ADDRESS"},
		Category: l1Category,
	}
	L1RouterAddress = &cli.StringFlag{
		Name:     "l1.routerAddress",
		Usage:    "Preconf router contract address",
		EnvVars:  []string{"CATALYST_NODE_L1_ROUTER_ADDRESS"},
		Category: l1Category,
	}
	L1WhitelistAddress = &cli.StringFlag{
		Name:     "l1.whitelistAddress",
		Usage:    "Preconf whitelist contract address",
		EnvVars:  []string{"CATALYST_NODE_L1_WHITELIST_ADDRESS"},
		Category: l1Category,
	}
	L1ForcedInclusionStoreAddress = &cli.StringFlag{
		Name:     "l1.forcedInclusionStoreAddress",
		Usage:    "Forced-inclusion store contract address",
		EnvVars:  []string{"CATALYST_NODE_L1_FORCED_INCLUSION_STORE_ADDRESS"},
		Category: l1Category,
	}
	L2AnchorAddress = &cli.StringFlag{
		Name:     "l2.anchorAddress",
		Usage:    "L2 anchor contract address",
		EnvVars:  []string{"CATALYST_NODE_L2_ANCHOR_ADDRESS"},
		Category: l2Category,
	}
	CatalystNodeECDSAPrivateKey = &cli.StringFlag{
		Name:     "signer.privateKey",
		Usage:    "Proposer account private key, mutually exclusive with the web3signer flags",
		EnvVars:  []string{"CATALYST_NODE_ECDSA_PRIVATE_KEY"},
		Category: signerCategory,
	}
	Web3SignerL1URL = &cli.StringFlag{
		Name:     "signer.web3signerL1Url",
		Usage:    "Remote web3signer endpoint used for L1 signing",
		EnvVars:  []string{"WEB3SIGNER_L1_URL"},
		Category: signerCategory,
	}
	Web3SignerL2URL = &cli.StringFlag{
		Name:     "signer.web3signerL2Url",
		Usage:    "Remote web3signer endpoint for L2 signing; required with the web3signer backend but not used for anchor transactions, which are signed with the golden-touch key",
		EnvVars:  []string{"WEB3SIGNER_L2_URL"},
		Category: signerCategory,
	}
	PreconferAddress = &cli.StringFlag{
		Name:     "signer.preconferAddress",
		Usage:    "Proposer account address, required when using web3signer",
		EnvVars:  []string{"PRECONFER_ADDRESS"},
		Category: signerCategory,
	}
	L1SlotDurationSec = &cli.Uint64Flag{
		Name:     "epoch.l1SlotDurationSec",
		EnvVars:  []string{"L1_SLOT_DURATION_SEC"},
		Value:    12,
		Category: epochCategory,
	}
	L1SlotsPerEpoch = &cli.Uint64Flag{
		Name:     "epoch.l1SlotsPerEpoch",
		EnvVars:  []string{"L1_SLOTS_PER_EPOCH"},
		Value:    32,
		Category: epochCategory,
	}
	PreconfHeartbeatMs = &cli.Uint64Flag{
		Name:     "epoch.preconfHeartbeatMs",
		EnvVars:  []string{"PRECONF_HEARTBEAT_MS"},
		Value:    2000,
		Category: epochCategory,
	}
	HandoverWindowSlots = &cli.Uint64Flag{
		Name:     "epoch.handoverWindowSlots",
		EnvVars:  []string{"HANDOVER_WINDOW_SLOTS"},
		Value:    4,
		Category: epochCategory,
	}
	HandoverStartBufferMs = &cli.Uint64Flag{
		Name:     "epoch.handoverStartBufferMs",
		EnvVars:  []string{"HANDOVER_START_BUFFER_MS"},
		Value:    6000,
		Category: epochCategory,
	}
	L1HeightLag = &cli.Uint64Flag{
		Name:     "epoch.l1HeightLag",
		EnvVars:  []string{"L1_HEIGHT_LAG"},
		Value:    4,
		Category: epochCategory,
	}
	BlobsPerBatch = &cli.Uint64Flag{
		Name:     "batch.blobsPerBatch",
		EnvVars:  []string{"BLOBS_PER_BATCH"},
		Value:    3,
		Category: batchCategory,
	}
	MaxBlocksPerBatch = &cli.Uint64Flag{
		Name:     "batch.maxBlocksPerBatch",
		Usage:    "0 means use the contract-reported limit",
		EnvVars:  []string{"MAX_BLOCKS_PER_BATCH"},
		Value:    0,
		Category: batchCategory,
	}
	MaxTimeShiftBetweenBlocksSec = &cli.Uint64Flag{
		Name:     "batch.maxTimeShiftBetweenBlocksSec",
		EnvVars:  []string{"MAX_TIME_SHIFT_BETWEEN_BLOCKS_SEC"},
		Value:    255,
		Category: batchCategory,
	}
	MaxAnchorHeightOffsetReductionValue = &cli.Uint64Flag{
		Name:     "batch.maxAnchorHeightOffsetReductionValue",
		EnvVars:  []string{"MAX_ANCHOR_HEIGHT_OFFSET_REDUCTION_VALUE"},
		Value:    10,
		Category: batchCategory,
	}
	PreconfMinTxs = &cli.Uint64Flag{
		Name:     "batch.preconfMinTxs",
		EnvVars:  []string{"PRECONF_MIN_TXS"},
		Value:    3,
		Category: batchCategory,
	}
	PreconfMaxSkippedL2Slots = &cli.Uint64Flag{
		Name:     "batch.preconfMaxSkippedL2Slots",
		EnvVars:  []string{"PRECONF_MAX_SKIPPED_L2_SLOTS"},
		Value:    2,
		Category: batchCategory,
	}
	MaxBytesPerTxList = &cli.Uint64Flag{
		Name:     "batch.maxBytesPerTxList",
		EnvVars:  []string{"MAX_BYTES_PER_TX_LIST"},
		Value:    126972,
		Category: batchCategory,
	}
	MinBytesPerTxList = &cli.Uint64Flag{
		Name:     "batch.minBytesPerTxList",
		EnvVars:  []string{"MIN_BYTES_PER_TX_LIST"},
		Value:    8192,
		Category: batchCategory,
	}
	ThrottlingFactor = &cli.Uint64Flag{
		Name:     "batch.throttlingFactor",
		EnvVars:  []string{"THROTTLING_FACTOR"},
		Value:    2,
		Category: batchCategory,
	}
	MinPriorityFeePerGasWei = &cli.Uint64Flag{
		Name:     "txmonitor.minPriorityFeePerGasWei",
		EnvVars:  []string{"MIN_PRIORITY_FEE_PER_GAS_WEI"},
		Value:    1_000_000_000,
		Category: txmonCategory,
	}
	TxFeesIncreasePercentage = &cli.Uint64Flag{
		Name:     "txmonitor.txFeesIncreasePercentage",
		EnvVars:  []string{"TX_FEES_INCREASE_PERCENTAGE"},
		Value:    0,
		Category: txmonCategory,
	}
	MaxAttemptsToSendTx = &cli.Uint64Flag{
		Name:     "txmonitor.maxAttemptsToSendTx",
		EnvVars:  []string{"MAX_ATTEMPTS_TO_SEND_TX"},
		Value:    4,
		Category: txmonCategory,
	}
	MaxAttemptsToWaitTx = &cli.Uint64Flag{
		Name:     "txmonitor.maxAttemptsToWaitTx",
		EnvVars:  []string{"MAX_ATTEMPTS_TO_WAIT_TX"},
		Value:    5,
		Category: txmonCategory,
	}
	DelayBetweenTxAttemptsSec = &cli.Uint64Flag{
		Name:     "txmonitor.delayBetweenTxAttemptsSec",
		EnvVars:  []string{"DELAY_BETWEEN_TX_ATTEMPTS_SEC"},
		Value:    63,
		Category: txmonCategory,
	}
	ExtraGasPercentage = &cli.Uint64Flag{
		Name:     "batch.extraGasPercentage",
		EnvVars:  []string{"EXTRA_GAS_PERCENTAGE"},
		Value:    100,
		Category: batchCategory,
	}
	MetricsPort = &cli.Uint64Flag{
		Name:     "metrics.port",
		EnvVars:  []string{"METRICS_PORT"},
		Value:    9898,
		Category: metricsCategory,
	}
	Verbosity = &cli.StringFlag{
		Name:     "verbosity",
		EnvVars:  []string{"VERBOSITY"},
		Value:    "info",
		Category: loggingCategory,
	}
)

// DelayBetweenTxAttempts returns DelayBetweenTxAttemptsSec as a time.Duration.
func DelayBetweenTxAttempts(c *cli.Context) time.Duration {
	return time.Duration(c.Uint64(DelayBetweenTxAttemptsSec.Name)) * time.Second
}

// All is the full set of flags registered on the root app.
var All = []cli.Flag{
	L1RPCURLs,
	L1BeaconURL,
	TaikoGethRPCURL,
	TaikoGethAuthRPCURL,
	TaikoDriverURL,
	JWTSecretFile,
	L1InboxAddress,
	L1RouterAddress,
	L1WhitelistAddress,
	L1ForcedInclusionStoreAddress,
	L2AnchorAddress,
	CatalystNodeECDSAPrivateKey,
	Web3SignerL1URL,
	Web3SignerL2URL,
	PreconferAddress,
	L1SlotDurationSec,
	L1SlotsPerEpoch,
	PreconfHeartbeatMs,
	HandoverWindowSlots,
	HandoverStartBufferMs,
	L1HeightLag,
	BlobsPerBatch,
	MaxBlocksPerBatch,
	MaxTimeShiftBetweenBlocksSec,
	MaxAnchorHeightOffsetReductionValue,
	MinPriorityFeePerGasWei,
	TxFeesIncreasePercentage,
	MaxAttemptsToSendTx,
	MaxAttemptsToWaitTx,
	DelayBetweenTxAttemptsSec,
	ExtraGasPercentage,
	PreconfMinTxs,
	PreconfMaxSkippedL2Slots,
	MaxBytesPerTxList,
	MinBytesPerTxList,
	ThrottlingFactor,
	MetricsPort,
	Verbosity,
}
