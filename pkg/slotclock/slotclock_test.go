package slotclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withFixedNow(s *SlotClock, t time.Time) *SlotClock {
	s.now = func() time.Time { return t }
	return s
}

func TestCurrentSlotAndEpoch(t *testing.T) {
	genesis := uint64(1000)
	s := New(genesis, 12, 32, 2000)
	withFixedNow(s, time.Unix(int64(genesis+12*40+5), 0))

	slot, err := s.CurrentSlot()
	require.NoError(t, err)
	require.Equal(t, uint64(40), slot)

	epoch, err := s.CurrentEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch)

	slotInEpoch, err := s.SlotWithinEpoch()
	require.NoError(t, err)
	require.Equal(t, uint64(8), slotInEpoch)
}

func TestSubSlotsPerL1Slot(t *testing.T) {
	s := New(0, 12, 32, 2000)
	require.Equal(t, uint64(6), s.SubSlotsPerL1Slot())
}

func TestSubtractionOverflow(t *testing.T) {
	s := New(1000, 12, 32, 2000)
	withFixedNow(s, time.Unix(500, 0))

	_, err := s.CurrentSlot()
	require.ErrorIs(t, err, ErrSubtractionOverflow)
}

func TestSlotIsInLastNSlotsOfEpoch(t *testing.T) {
	genesis := uint64(0)
	s := New(genesis, 12, 32, 2000)
	// slot 31 (last slot of epoch 0)
	withFixedNow(s, time.Unix(int64(12*31), 0))

	in, err := s.SlotIsInLastNSlotsOfEpoch(4)
	require.NoError(t, err)
	require.True(t, in)

	// slot 27 is just before the last 4 (32-4=28..31), so it is not in range
	withFixedNow(s, time.Unix(int64(12*27), 0))
	in, err = s.SlotIsInLastNSlotsOfEpoch(4)
	require.NoError(t, err)
	require.False(t, in)
}

func TestL2SlotWithinL1Slot(t *testing.T) {
	genesis := uint64(0)
	s := New(genesis, 12, 32, 2000)
	// 5 seconds into the slot, heartbeat 2000ms => sub-slot 2 (5000/2000=2)
	withFixedNow(s, time.Unix(5, 0))

	sub, err := s.L2SlotWithinL1Slot()
	require.NoError(t, err)
	require.Equal(t, uint64(2), sub)
}

func TestSlotsSinceL1Block(t *testing.T) {
	genesis := uint64(0)
	s := New(genesis, 12, 32, 2000)
	withFixedNow(s, time.Unix(120, 0)) // slot 10

	n, err := s.SlotsSinceL1Block(0) // block at slot 0
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)
}
