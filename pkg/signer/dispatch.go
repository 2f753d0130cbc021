package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
)

// Backend is the tagged variant described in §9 "Dynamic dispatch": callers
// choose the signing back-end once at construction, never per call.
type Backend interface {
	// SignTx signs the given transaction for the given chain ID, returning
	// the signed transaction.
	SignTx(ctx context.Context, chainID *int64, tx *types.Transaction) (*types.Transaction, error)
	// Address returns the account address this backend signs for.
	Address() common.Address
}

// PrivateKeyBackend signs in-process with an ecdsa.PrivateKey.
type PrivateKeyBackend struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewPrivateKeyBackend wraps a local private key as a signing Backend.
func NewPrivateKeyBackend(key *ecdsa.PrivateKey) *PrivateKeyBackend {
	return &PrivateKeyBackend{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address implements Backend.
func (b *PrivateKeyBackend) Address() common.Address { return b.addr }

// SignTx implements Backend.
func (b *PrivateKeyBackend) SignTx(
	_ context.Context,
	chainID *int64,
	tx *types.Transaction,
) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(newBigInt(*chainID))
	return types.SignTx(tx, signer, b.key)
}

// RemoteBackend signs via a remote web3signer-compatible HTTP service.
type RemoteBackend struct {
	client *resty.Client
	addr   common.Address
}

// NewRemoteBackend creates a Backend that delegates signing to a remote
// web3signer endpoint.
func NewRemoteBackend(endpoint string, addr common.Address) *RemoteBackend {
	return &RemoteBackend{client: resty.New().SetBaseURL(endpoint), addr: addr}
}

// Address implements Backend.
func (b *RemoteBackend) Address() common.Address { return b.addr }

// SignTx implements Backend by POSTing the transaction's signing hash to the
// web3signer `/api/v1/eth1/sign/{identifier}` endpoint and reassembling the
// signed transaction from the returned signature.
func (b *RemoteBackend) SignTx(
	ctx context.Context,
	chainID *int64,
	tx *types.Transaction,
) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(newBigInt(*chainID))
	hash := signer.Hash(tx)

	var resp struct {
		Signature string `json:"signature"`
	}
	if _, err := b.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"data": hash.Hex()}).
		SetResult(&resp).
		Post(fmt.Sprintf("/api/v1/eth1/sign/%s", b.addr.Hex())); err != nil {
		return nil, fmt.Errorf("web3signer sign request failed: %w", err)
	}

	sig, err := hexutil.Decode(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid web3signer signature: %w", err)
	}

	return tx.WithSignature(signer, sig)
}

func newBigInt(v int64) *big.Int { return big.NewInt(v) }
