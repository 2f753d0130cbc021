package metrics

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeiToEtherConvertsWholeAndFractionalAmounts(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	require.InDelta(t, 1.0, weiToEther(oneEth), 1e-9)

	halfEth, _ := new(big.Int).SetString("500000000000000000", 10)
	require.InDelta(t, 0.5, weiToEther(halfEth), 1e-9)

	require.InDelta(t, 0.0, weiToEther(big.NewInt(0)), 1e-9)
}
