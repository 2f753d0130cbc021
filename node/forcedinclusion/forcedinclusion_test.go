package forcedinclusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasPendingReportsWhetherIndexIsBehindTail(t *testing.T) {
	a := &Adapter{index: 5, tail: 5}
	require.False(t, a.HasPending())

	a.tail = 6
	require.True(t, a.HasPending())
}

// TestStartDecodeWithNothingPendingFailsFast confirms StartDecode never
// touches the L1/beacon clients when the cursor has already caught up to
// the on-chain tail, the case the teacher's RPC-orchestrating methods are
// never unit tested for either (only the quick-reject path here is, since
// everything past it needs a live connection).
func TestStartDecodeWithNothingPendingFailsFast(t *testing.T) {
	a := &Adapter{index: 3, tail: 3}

	result := <-a.StartDecode(context.Background())
	require.Error(t, result.Err)
	require.Nil(t, result.Batch)
	require.Equal(t, uint64(3), a.index, "the cursor must not advance when there is nothing to consume")
}

func TestCancelPendingIsSafeWithNoPriorDecode(t *testing.T) {
	a := &Adapter{}
	require.NotPanics(t, func() { a.CancelPending() })
}
