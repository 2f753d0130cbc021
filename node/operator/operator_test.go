package operator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/taiko-preconf-node/node"
)

func TestStatusAtEpochBoundary(t *testing.T) {
	s := statusAtEpochBoundary(true)
	require.Equal(t, node.StatusPreconferAndSubmitter, s.Kind)

	s = statusAtEpochBoundary(false)
	require.Equal(t, node.StatusNone, s.Kind)
}

func TestStatusOutsideHandover(t *testing.T) {
	require.Equal(t, node.StatusPreconferAndSubmitter, statusOutsideHandover(true).Kind)
	require.Equal(t, node.StatusNone, statusOutsideHandover(false).Kind)
}

func TestStatusInHandoverWindowCurrentOperator(t *testing.T) {
	s := statusInHandoverWindow(true, true, 0, 1000)
	require.Equal(t, node.StatusPreconferAndSubmitter, s.Kind)

	s = statusInHandoverWindow(true, false, 0, 1000)
	require.Equal(t, node.StatusSubmitter, s.Kind)
}

func TestStatusInHandoverWindowNextOperatorWaitsOutBuffer(t *testing.T) {
	s := statusInHandoverWindow(false, true, 500, 1000)
	require.Equal(t, node.StatusPreconferHandoverBuffer, s.Kind)
	require.Equal(t, uint64(500), s.RemainingBufferMs)
}

func TestStatusInHandoverWindowNextOperatorPastBuffer(t *testing.T) {
	s := statusInHandoverWindow(false, true, 1000, 1000)
	require.Equal(t, node.StatusPreconfer, s.Kind)

	s = statusInHandoverWindow(false, true, 5000, 1000)
	require.Equal(t, node.StatusPreconfer, s.Kind)
}

func TestStatusInHandoverWindowNeitherOperator(t *testing.T) {
	s := statusInHandoverWindow(false, false, 0, 1000)
	require.Equal(t, node.StatusNone, s.Kind)
}

func TestFinishMarksPreconformationStartOnlyOnTransition(t *testing.T) {
	m := &Machine{}

	s := m.finish(status(node.StatusNone, "not operator"))
	require.False(t, s.IsPreconformationStart)

	s = m.finish(status(node.StatusPreconfer, "now preconfirming"))
	require.True(t, s.IsPreconformationStart, "first tick granting preconfirmation rights should be flagged")

	s = m.finish(status(node.StatusPreconfer, "still preconfirming"))
	require.False(t, s.IsPreconformationStart, "subsequent ticks in the same role should not re-flag")

	s = m.finish(status(node.StatusNone, "lost the role"))
	require.False(t, s.IsPreconformationStart)

	s = m.finish(status(node.StatusPreconferAndSubmitter, "regained as both roles"))
	require.True(t, s.IsPreconformationStart, "regaining preconfirmer rights after losing them should re-flag")
}
