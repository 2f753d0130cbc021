package signer

import (
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func mustHashFromHex(t *testing.T, s string) [32]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, b, 32)
	var h [32]byte
	copy(h[:], b)
	return h
}

func testSigner(t *testing.T) *FixedKSigner {
	t.Helper()
	skBytes, err := hex.DecodeString("92954368afd3caa1f3ce3ead0069c1af414054aefe1ef9aeacc1bf426222ce38")
	require.NoError(t, err)

	priv := new(ecdsa.PrivateKey)
	key := secp256k1.PrivKeyFromBytes(skBytes)
	priv.PublicKey = key.PubKey().ToECDSA().PublicKey
	priv.D = new(big.Int).SetBytes(skBytes)

	return NewFixedKSigner(priv)
}

// TestScenario3 mirrors spec.md scenario 3's two fixed-k=2 test vectors.
func TestScenario3(t *testing.T) {
	s := testSigner(t)

	hash1 := mustHashFromHex(t, "44943399d1507f3ce7525e9be2f987c3db9136dc759cb7f92f742154196868b9")
	sig1, err := s.SignHash(hash1)
	require.NoError(t, err)
	require.Equal(t, "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5", hex.EncodeToString(sig1[0:32]))
	require.Equal(t, "38940d69b21d5b088beb706e9ebabe6422307e12863997a44239774467e240d5", hex.EncodeToString(sig1[32:64]))
	require.Equal(t, byte(1), sig1[64])

	hash2 := mustHashFromHex(t, "663d210fa6dba171546498489de1ba024b89db49e21662f91bf83cdffe788820")
	sig2, err := s.SignHash(hash2)
	require.NoError(t, err)
	require.Equal(t, "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5", hex.EncodeToString(sig2[0:32]))
	require.Equal(t, "5840695138a83611aa9dac67beb95aba7323429787a78df993f1c5c7f2c0ef7f", hex.EncodeToString(sig2[32:64]))
	require.Equal(t, byte(0), sig2[64])
}

// TestCanonicalS checks that the signer normalizes s across many distinct
// hashes without erroring, which requires the IsOverHalfOrder branch in
// signWithK to be exercised and leave a valid recovery bit behind.
func TestCanonicalS(t *testing.T) {
	s := testSigner(t)

	for i := 0; i < 32; i++ {
		var h [32]byte
		h[0] = byte(i)
		h[31] = byte(i * 7)
		sig, err := s.SignHash(h)
		require.NoError(t, err)
		require.True(t, sig[64] == 0 || sig[64] == 1)
	}
}
