// Package encoding holds the ABI encode/decode helpers and protocol
// parameter types shared by the RPC adapters and the propose-batch builder,
// mirroring taiko-client's bindings/encoding package.
package encoding

import "math/big"

// BaseFeeConfig is the LibSharedData.BaseFeeConfig struct returned as part
// of pacayaConfig() (§6).
type BaseFeeConfig struct {
	AdjustmentQuotient     uint8
	SharingPctg            uint8
	GasIssuancePerSecond   uint32
	MinGasExcess           uint64
	MaxGasIssuancePerBlock uint32
}

// ProtocolConfig is the immutable parameter bundle returned by the L1 inbox
// contract's pacayaConfig() (§6, GLOSSARY "Pacaya config").
type ProtocolConfig struct {
	ChainID                uint64
	MaxUnverifiedBatches    uint64
	BatchRingBufferSize     uint64
	MaxBatchesToVerify      uint64
	BlockMaxGasLimit        uint32
	LivenessBondBase        *big.Int
	LivenessBondPerBlock    *big.Int
	StateRootSyncInternal   uint8
	MaxAnchorHeightOffset   uint64
	BaseFeeConfig           BaseFeeConfig
	ProvingWindow           uint32
	CooldownWindow          uint32
	MaxSignalsToReceive     uint8
	MaxBlocksPerBatch       uint16
	ForkHeights             map[string]uint64
}

// TryParsingCustomError returns err unchanged; it does not decode Solidity
// custom errors from the revert data. The concrete selector-based
// classification into the §7 taxonomy lives in proposer/txmonitor, which is
// the only caller allowed to make that classification (§7 "Local
// propagation policy").
func TryParsingCustomError(err error) error {
	return err
}
