// Package config turns CLI flags / environment variables (§6 of the spec)
// into the typed configuration structs each component consumes, the way
// taiko-client's pkg/config package builds a *proposer.Config from a
// *cli.Context.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/NethermindEth/taiko-preconf-node/cmd/flags"
)

// SlotClockConfig configures the C1 Slot Clock.
type SlotClockConfig struct {
	GenesisTimestampSec uint64
	SlotDurationSec     uint64
	SlotsPerEpoch       uint64
	PreconfHeartbeatMs  uint64
}

// HandoverConfig configures the C10 Operator State Machine's hand-off window.
type HandoverConfig struct {
	WindowSlots     uint64
	StartBufferMs   uint64
}

// BatchConfig configures the C8 Batch Builder and C6 Propose-Batch Builder.
type BatchConfig struct {
	BlobsPerBatch                        uint64
	MaxBlocksPerBatch                     uint64 // 0 => use contract limit
	MaxBytesSizeOfBatch                   uint64 // derived from protocol config at runtime
	MaxTimeShiftBetweenBlocksSec          uint64
	MaxAnchorHeightOffsetReductionValue   uint64
	PreconfMinTxs                         uint64
	PreconfMaxSkippedL2Slots              uint64
	MaxBytesPerTxList                     uint64
	MinBytesPerTxList                     uint64
	ThrottlingFactor                      uint64
	ExtraGasPercentage                    uint64
	L1HeightLag                           uint64
}

// TxMonitorConfig configures the C7 Transaction Monitor.
type TxMonitorConfig struct {
	MinPriorityFeePerGasWei   uint64
	TxFeesIncreasePercentage  uint64
	MaxAttemptsToSendTx       uint64
	MaxAttemptsToWaitTx       uint64
	DelayBetweenTxAttempts    time.Duration
}

// L1ClientConfig configures the C5 L1 Client Adapter.
type L1ClientConfig struct {
	RPCURLs                     []string
	BeaconURL                   string
	InboxAddress                common.Address
	RouterAddress               common.Address
	WhitelistAddress            common.Address
	ForcedInclusionStoreAddress common.Address
}

// L2ClientConfig configures the C4 L2 Client Adapter.
type L2ClientConfig struct {
	GethRPCURL     string
	GethAuthRPCURL string
	DriverURL      string
	JWTSecretFile  string
	AnchorAddress  common.Address
}

// SignerConfig selects between an in-process private key signer and a
// remote web3signer backend (§9 "Dynamic dispatch").
type SignerConfig struct {
	PrivateKey       *ecdsa.PrivateKey
	Web3SignerL1URL  string
	Web3SignerL2URL  string
	PreconferAddress common.Address
}

// Config is the fully resolved node configuration.
type Config struct {
	L1        L1ClientConfig
	L2        L2ClientConfig
	Signer    SignerConfig
	SlotClock SlotClockConfig
	Handover  HandoverConfig
	Batch     BatchConfig
	TxMonitor TxMonitorConfig
	MetricsPort uint64
}

// NewConfigFromCliContext builds a Config from the parsed CLI flags,
// validating the mutually-exclusive signer configuration described in §6.
func NewConfigFromCliContext(c *cli.Context) (*Config, error) {
	signerCfg, err := signerConfigFromCliContext(c)
	if err != nil {
		return nil, err
	}

	rpcURLs := c.StringSlice(flags.L1RPCURLs.Name)
	if len(rpcURLs) == 0 {
		return nil, errors.New("at least one L1 RPC URL is required")
	}

	return &Config{
		L1: L1ClientConfig{
			RPCURLs:                     rpcURLs,
			BeaconURL:                   c.String(flags.L1BeaconURL.Name),
			InboxAddress:                common.HexToAddress(c.String(flags.L1InboxAddress.Name)),
			RouterAddress:               common.HexToAddress(c.String(flags.L1RouterAddress.Name)),
			WhitelistAddress:            common.HexToAddress(c.String(flags.L1WhitelistAddress.Name)),
			ForcedInclusionStoreAddress: common.HexToAddress(c.String(flags.L1ForcedInclusionStoreAddress.Name)),
		},
		L2: L2ClientConfig{
			GethRPCURL:     c.String(flags.TaikoGethRPCURL.Name),
			GethAuthRPCURL: c.String(flags.TaikoGethAuthRPCURL.Name),
			DriverURL:      c.String(flags.TaikoDriverURL.Name),
			JWTSecretFile:  c.String(flags.JWTSecretFile.Name),
			AnchorAddress:  common.HexToAddress(c.String(flags.L2AnchorAddress.Name)),
		},
		Signer: *signerCfg,
		SlotClock: SlotClockConfig{
			SlotDurationSec:    c.Uint64(flags.L1SlotDurationSec.Name),
			SlotsPerEpoch:      c.Uint64(flags.L1SlotsPerEpoch.Name),
			PreconfHeartbeatMs: c.Uint64(flags.PreconfHeartbeatMs.Name),
		},
		Handover: HandoverConfig{
			WindowSlots:   c.Uint64(flags.HandoverWindowSlots.Name),
			StartBufferMs: c.Uint64(flags.HandoverStartBufferMs.Name),
		},
		Batch: BatchConfig{
			BlobsPerBatch:                       c.Uint64(flags.BlobsPerBatch.Name),
			MaxBlocksPerBatch:                    c.Uint64(flags.MaxBlocksPerBatch.Name),
			MaxTimeShiftBetweenBlocksSec:         c.Uint64(flags.MaxTimeShiftBetweenBlocksSec.Name),
			MaxAnchorHeightOffsetReductionValue:  c.Uint64(flags.MaxAnchorHeightOffsetReductionValue.Name),
			PreconfMinTxs:                        c.Uint64(flags.PreconfMinTxs.Name),
			PreconfMaxSkippedL2Slots:             c.Uint64(flags.PreconfMaxSkippedL2Slots.Name),
			MaxBytesPerTxList:                    c.Uint64(flags.MaxBytesPerTxList.Name),
			MinBytesPerTxList:                    c.Uint64(flags.MinBytesPerTxList.Name),
			ThrottlingFactor:                     c.Uint64(flags.ThrottlingFactor.Name),
			ExtraGasPercentage:                   c.Uint64(flags.ExtraGasPercentage.Name),
			L1HeightLag:                          c.Uint64(flags.L1HeightLag.Name),
		},
		TxMonitor: TxMonitorConfig{
			MinPriorityFeePerGasWei:  c.Uint64(flags.MinPriorityFeePerGasWei.Name),
			TxFeesIncreasePercentage: c.Uint64(flags.TxFeesIncreasePercentage.Name),
			MaxAttemptsToSendTx:      c.Uint64(flags.MaxAttemptsToSendTx.Name),
			MaxAttemptsToWaitTx:      c.Uint64(flags.MaxAttemptsToWaitTx.Name),
			DelayBetweenTxAttempts:   flags.DelayBetweenTxAttempts(c),
		},
		MetricsPort: c.Uint64(flags.MetricsPort.Name),
	}, nil
}

func signerConfigFromCliContext(c *cli.Context) (*SignerConfig, error) {
	privKeyHex := c.String(flags.CatalystNodeECDSAPrivateKey.Name)
	web3SignerL1 := c.String(flags.Web3SignerL1URL.Name)
	web3SignerL2 := c.String(flags.Web3SignerL2URL.Name)
	preconferAddr := c.String(flags.PreconferAddress.Name)

	hasPrivKey := privKeyHex != ""
	hasWeb3Signer := web3SignerL1 != "" || web3SignerL2 != "" || preconferAddr != ""

	switch {
	case hasPrivKey && hasWeb3Signer:
		return nil, errors.New(
			"CATALYST_NODE_ECDSA_PRIVATE_KEY and WEB3SIGNER_* / PRECONFER_ADDRESS are mutually exclusive",
		)
	case hasPrivKey:
		privKey, err := crypto.HexToECDSA(trimHexPrefix(privKeyHex))
		if err != nil {
			return nil, fmt.Errorf("invalid CATALYST_NODE_ECDSA_PRIVATE_KEY: %w", err)
		}
		return &SignerConfig{PrivateKey: privKey}, nil
	case web3SignerL1 != "" && web3SignerL2 != "" && preconferAddr != "":
		return &SignerConfig{
			Web3SignerL1URL:  web3SignerL1,
			Web3SignerL2URL:  web3SignerL2,
			PreconferAddress: common.HexToAddress(preconferAddr),
		}, nil
	default:
		return nil, errors.New(
			"either CATALYST_NODE_ECDSA_PRIVATE_KEY or all of WEB3SIGNER_L1_URL, " +
				"WEB3SIGNER_L2_URL and PRECONFER_ADDRESS must be set",
		)
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
