package rpc

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/go-resty/resty/v2"
)

// BeaconClient is a thin wrapper over the L1 consensus layer's blob
// sidecars endpoint, used by the Forced-Inclusion Adapter (C14) to resolve
// a stored `blob_hash` to its raw bytes (§6 "L1 forced-inclusion store").
type BeaconClient struct {
	http *resty.Client
}

// NewBeaconClient points at the CATALYST_NODE_L1_BEACON_URL endpoint, the
// same resty-based HTTP client style already used for the L2 driver
// (pkg/rpc.L2Client).
func NewBeaconClient(beaconURL string) *BeaconClient {
	return &BeaconClient{
		http: resty.New().SetBaseURL(beaconURL).SetTimeout(10 * time.Second),
	}
}

type genesisResponse struct {
	Data struct {
		GenesisTime string `json:"genesis_time"`
	} `json:"data"`
}

// GenesisTime fetches the beacon chain's genesis timestamp (§6 "GET
// /eth/v1/beacon/genesis"), used once at startup to build the Slot Clock.
func (c *BeaconClient) GenesisTime(ctx context.Context) (uint64, error) {
	var out genesisResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/eth/v1/beacon/genesis")
	if err != nil {
		return 0, fmt.Errorf("rpc: fetch beacon genesis: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("rpc: fetch beacon genesis: status %d", resp.StatusCode())
	}
	var genesisTime uint64
	if _, err := fmt.Sscanf(out.Data.GenesisTime, "%d", &genesisTime); err != nil {
		return 0, fmt.Errorf("rpc: parse beacon genesis_time %q: %w", out.Data.GenesisTime, err)
	}
	return genesisTime, nil
}

type blobSidecarsResponse struct {
	Data []struct {
		Index         string        `json:"index"`
		Blob          hexutil.Bytes `json:"blob"`
		KZGCommitment hexutil.Bytes `json:"kzg_commitment"`
	} `json:"data"`
}

// BlobByVersionedHash fetches the blob sidecars at slot and returns the raw
// blob whose EIP-4844 versioned hash (sha256 of its KZG commitment, version
// byte 0x01) matches want.
func (c *BeaconClient) BlobByVersionedHash(ctx context.Context, slot uint64, want common.Hash) ([]byte, error) {
	var out blobSidecarsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/eth/v1/beacon/blob_sidecars/%d", slot))
	if err != nil {
		return nil, fmt.Errorf("rpc: fetch blob sidecars at slot %d: %w", slot, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rpc: fetch blob sidecars at slot %d: status %d", slot, resp.StatusCode())
	}

	for _, sidecar := range out.Data {
		var commitment kzg4844.Commitment
		copy(commitment[:], sidecar.KZGCommitment)
		if kzg4844.CalcBlobHashV1(sha256.New(), &commitment) == want {
			var blob kzg4844.Blob
			copy(blob[:], sidecar.Blob)
			return blob[:], nil
		}
	}
	return nil, fmt.Errorf("rpc: blob %s not found among sidecars at slot %d", want, slot)
}
