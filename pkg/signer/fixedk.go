// Package signer implements the deterministic, fixed-k ECDSA anchor-tx
// signer (§4.C2) and the Signer dispatch variant (§9 "Dynamic dispatch")
// between an in-process private key and a remote web3signer backend.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrFailedToSign is returned when signing fails for both k=1 and k=2.
var ErrFailedToSign = errors.New("signer: failed to sign hash")

// GoldenTouchAddress is the protocol-fixed account every anchor transaction
// is sent from (§4.C4 construct_anchor_tx).
var GoldenTouchAddress = common.HexToAddress("0x0000777735367B36Bc9b61C50022d9D0700dB4Ec")

// goldenTouchPrivateKey is the corresponding fixed private key, the same
// well-known value the reference driver ships.
var goldenTouchPrivateKey = [32]byte{
	0x92, 0x95, 0x43, 0x68, 0xaf, 0xd3, 0xca, 0xa1, 0xf3, 0xce, 0x3e, 0xad, 0x00, 0x69, 0xc1, 0xaf,
	0x41, 0x40, 0x54, 0xae, 0xfe, 0x1e, 0xf9, 0xae, 0xac, 0xc1, 0xbf, 0x42, 0x62, 0x22, 0xce, 0x38,
}

// NewGoldenTouchSigner builds the fixed-k signer for the golden-touch
// account, the only key ever used to sign anchor transactions.
func NewGoldenTouchSigner() (*FixedKSigner, error) {
	priv, err := crypto.ToECDSA(goldenTouchPrivateKey[:])
	if err != nil {
		return nil, fmt.Errorf("signer: golden touch key: %w", err)
	}
	return NewFixedKSigner(priv), nil
}

// fixedKCandidates is tried in order; step 5 of §4.C2 retries with k=2 if
// k=1 fails for any reason.
var fixedKCandidates = [2]uint32{1, 2}

// FixedKSigner signs message hashes with a fixed k (1, falling back to 2)
// and canonical-s normalization, bit-identical to the Taiko anchor-signer
// reference (§4.C2).
type FixedKSigner struct {
	key *secp256k1.PrivateKey
}

// NewFixedKSigner wraps a standard ecdsa.PrivateKey for fixed-k signing.
func NewFixedKSigner(priv *ecdsa.PrivateKey) *FixedKSigner {
	return &FixedKSigner{key: secp256k1.PrivKeyFromBytes(priv.D.Bytes())}
}

// SignHash signs the given 32-byte hash, returning the 65-byte r‖s‖v
// signature described in §4.C2.
func (s *FixedKSigner) SignHash(hash [32]byte) ([65]byte, error) {
	for _, k := range fixedKCandidates {
		if sig, ok := signWithK(s.key, hash, k); ok {
			return sig, nil
		}
	}
	return [65]byte{}, ErrFailedToSign
}

// signWithK implements one attempt of §4.C2 steps 1-4 for a given k.
func signWithK(key *secp256k1.PrivateKey, hash [32]byte, k uint32) ([65]byte, bool) {
	var kScalar secp256k1.ModNScalar
	kScalar.SetInt(k)

	var r secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&kScalar, &r)
	r.ToAffine()

	// r = R.x mod n; SetByteSlice reports whether R.x >= n, which the spec
	// says cannot happen for k in {1, 2}, but we honor the failure path
	// regardless so retry-to-k=2 behaves correctly if it ever did.
	var rScalar secp256k1.ModNScalar
	if overflow := rScalar.SetByteSlice(r.X.Bytes()[:]); overflow {
		return [65]byte{}, false
	}
	if rScalar.IsZero() {
		return [65]byte{}, false
	}

	var h secp256k1.ModNScalar
	h.SetByteSlice(hash[:])

	// s = k^-1 * (h + r*sk) mod n
	var rsk secp256k1.ModNScalar
	rsk.Set(&rScalar)
	rsk.Mul(&key.Key)

	var e secp256k1.ModNScalar
	e.Set(&h)
	e.Add(&rsk)

	var kInv secp256k1.ModNScalar
	kInv.Set(&kScalar)
	kInv.InverseValNonConst()

	var sVal secp256k1.ModNScalar
	sVal.Set(&kInv)
	sVal.Mul(&e)

	if sVal.IsZero() {
		return [65]byte{}, false
	}

	yOdd := r.Y.IsOdd()

	canonicalFlip := false
	if sVal.IsOverHalfOrder() {
		sVal.Negate()
		canonicalFlip = true
	}

	v := byte(0)
	if yOdd {
		v = 1
	}
	if canonicalFlip {
		v ^= 1
	}

	var sig [65]byte
	rBytes := rScalar.Bytes()
	sBytes := sVal.Bytes()
	copy(sig[0:32], rBytes[:])
	copy(sig[32:64], sBytes[:])
	sig[64] = v

	return sig, true
}
