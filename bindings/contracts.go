// Package bindings holds thin ABI-bound wrappers for the contracts named in
// §6 (the L1 inbox, the L1 preconf whitelist, the L1 forced-inclusion store
// and the L2 anchor contract). They are hand-written instead of abigen'd
// because no Go toolchain is run to generate them in this environment; the
// ABI fragments below cover the methods and events this node calls, plus an
// ERC20 balanceOf fragment for the bond token. The pacayaConfig() tuple
// stops at maxBlocksPerBatch; it has no forkHeights member.
package bindings

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const inboxABIJSON = `[
	{"type":"function","name":"pacayaConfig","stateMutability":"view","inputs":[],"outputs":[{"type":"tuple","components":[
		{"name":"chainId","type":"uint64"},
		{"name":"maxUnverifiedBatches","type":"uint64"},
		{"name":"batchRingBufferSize","type":"uint64"},
		{"name":"maxBatchesToVerify","type":"uint64"},
		{"name":"blockMaxGasLimit","type":"uint32"},
		{"name":"livenessBondBase","type":"uint96"},
		{"name":"livenessBondPerBlock","type":"uint96"},
		{"name":"stateRootSyncInternal","type":"uint8"},
		{"name":"maxAnchorHeightOffset","type":"uint64"},
		{"name":"baseFeeConfig","type":"tuple","components":[
			{"name":"adjustmentQuotient","type":"uint8"},
			{"name":"sharingPctg","type":"uint8"},
			{"name":"gasIssuancePerSecond","type":"uint32"},
			{"name":"minGasExcess","type":"uint64"},
			{"name":"maxGasIssuancePerBlock","type":"uint32"}
		]},
		{"name":"provingWindow","type":"uint24"},
		{"name":"cooldownWindow","type":"uint24"},
		{"name":"maxSignalsToReceive","type":"uint8"},
		{"name":"maxBlocksPerBatch","type":"uint16"}
	]}]},
	{"type":"function","name":"getStats2","stateMutability":"view","inputs":[],"outputs":[{"type":"tuple","components":[
		{"name":"numBatches","type":"uint64"},
		{"name":"lastVerifiedBatchId","type":"uint64"},
		{"name":"paused","type":"bool"},
		{"name":"lastProposedIn","type":"uint56"},
		{"name":"lastUnpausedAt","type":"uint64"}
	]}]},
	{"type":"function","name":"getBatch","stateMutability":"view","inputs":[{"name":"batchId","type":"uint64"}],"outputs":[{"type":"tuple","components":[
		{"name":"metaHash","type":"bytes32"},
		{"name":"lastBlockId","type":"uint64"},
		{"name":"batchId","type":"uint64"},
		{"name":"lastBlockTimestamp","type":"uint64"},
		{"name":"anchorBlockId","type":"uint64"},
		{"name":"nextTransitionId","type":"uint24"},
		{"name":"verifiedTransitionId","type":"uint24"}
	]}]},
	{"type":"function","name":"bondBalanceOf","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"bondToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"BatchProposed","inputs":[
		{"name":"info","type":"tuple","components":[
			{"name":"lastBlockId","type":"uint64"},
			{"name":"blocks","type":"tuple[]","components":[
				{"name":"numTransactions","type":"uint16"},
				{"name":"timeShift","type":"uint8"}
			]}
		],"indexed":false}
	],"anonymous":false}
]`

const routerABIJSON = `[
	{"type":"function","name":"proposeBatch","stateMutability":"nonpayable","inputs":[
		{"name":"params","type":"bytes"},
		{"name":"txList","type":"bytes"}
	],"outputs":[]}
]`

const whitelistABIJSON = `[
	{"type":"function","name":"getOperatorForCurrentEpoch","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getOperatorForNextEpoch","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const forcedInclusionStoreABIJSON = `[
	{"type":"function","name":"head","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tail","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getForcedInclusion","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"type":"tuple","components":[
		{"name":"blobHash","type":"bytes32"},
		{"name":"blobByteOffset","type":"uint32"},
		{"name":"blobByteSize","type":"uint32"},
		{"name":"blobCreatedIn","type":"uint64"}
	]}]},
	{"type":"event","name":"ForcedInclusionStored","inputs":[],"anonymous":false},
	{"type":"event","name":"ForcedInclusionConsumed","inputs":[],"anonymous":false}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const anchorABIJSON = `[
	{"type":"function","name":"anchorV3","stateMutability":"nonpayable","inputs":[
		{"name":"anchorBlockId","type":"uint64"},
		{"name":"anchorStateRoot","type":"bytes32"},
		{"name":"parentGasUsed","type":"uint32"},
		{"name":"baseFeeConfig","type":"tuple","components":[
			{"name":"adjustmentQuotient","type":"uint8"},
			{"name":"sharingPctg","type":"uint8"},
			{"name":"gasIssuancePerSecond","type":"uint32"},
			{"name":"minGasExcess","type":"uint64"},
			{"name":"maxGasIssuancePerBlock","type":"uint32"}
		]},
		{"name":"signalSlots","type":"bytes32[]"}
	],"outputs":[]},
	{"type":"function","name":"getBasefeeV2","stateMutability":"view","inputs":[
		{"name":"parentGasUsed","type":"uint32"},
		{"name":"l2SlotTimestamp","type":"uint64"},
		{"name":"baseFeeConfig","type":"tuple","components":[
			{"name":"adjustmentQuotient","type":"uint8"},
			{"name":"sharingPctg","type":"uint8"},
			{"name":"gasIssuancePerSecond","type":"uint32"},
			{"name":"minGasExcess","type":"uint64"},
			{"name":"maxGasIssuancePerBlock","type":"uint32"}
		]}
	],"outputs":[{"name":"basefee_","type":"uint256"},{"name":"newGasExcess_","type":"uint64"}]},
	{"type":"function","name":"lastSyncedBlock","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]}
]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("bindings: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

// InboxABI, RouterABI, WhitelistABI, ForcedInclusionStoreABI and AnchorABI
// are parsed once at package init and shared by pkg/rpc.
var (
	InboxABI                = mustParseABI(inboxABIJSON)
	RouterABI               = mustParseABI(routerABIJSON)
	WhitelistABI            = mustParseABI(whitelistABIJSON)
	ForcedInclusionStoreABI = mustParseABI(forcedInclusionStoreABIJSON)
	AnchorABI               = mustParseABI(anchorABIJSON)
	ERC20ABI                = mustParseABI(erc20ABIJSON)
)
