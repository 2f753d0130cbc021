// Package slotclock maps wall-clock time to L1 slot/epoch and to the L2
// sub-slot within one L1 slot (§4.C1).
package slotclock

import (
	"errors"
	"time"
)

// Errors returned on the integer-arithmetic edge cases named in the spec.
var (
	ErrSubtractionOverflow   = errors.New("slotclock: subtraction overflow")
	ErrMultiplicationOverflow = errors.New("slotclock: multiplication overflow")
)

// SlotClock holds the genesis anchor and cadence parameters needed to
// translate wall-clock time into slots, epochs and L2 heartbeats.
type SlotClock struct {
	genesisTimestampSec uint64
	slotDurationSec     uint64
	slotsPerEpoch       uint64
	heartbeatMs         uint64

	now func() time.Time
}

// New creates a SlotClock. heartbeatMs must evenly relate to slotDurationSec
// for SubSlotsPerL1Slot to be meaningful; it need not divide evenly, the
// result is floored as the spec requires.
func New(genesisTimestampSec, slotDurationSec, slotsPerEpoch, heartbeatMs uint64) *SlotClock {
	return &SlotClock{
		genesisTimestampSec: genesisTimestampSec,
		slotDurationSec:     slotDurationSec,
		slotsPerEpoch:       slotsPerEpoch,
		heartbeatMs:         heartbeatMs,
		now:                 time.Now,
	}
}

// SubSlotsPerL1Slot is floor(slot_duration*1000 / heartbeat_ms).
func (s *SlotClock) SubSlotsPerL1Slot() uint64 {
	return (s.slotDurationSec * 1000) / s.heartbeatMs
}

func (s *SlotClock) nowUnix() uint64 {
	return uint64(s.now().Unix())
}

// sub returns a-b, or ErrSubtractionOverflow if b > a.
func sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrSubtractionOverflow
	}
	return a - b, nil
}

func mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/a != b {
		return 0, ErrMultiplicationOverflow
	}
	return r, nil
}

// CurrentSlot returns the L1 slot at the clock's current time.
func (s *SlotClock) CurrentSlot() (uint64, error) {
	return s.slotAt(s.nowUnix())
}

func (s *SlotClock) slotAt(tsSec uint64) (uint64, error) {
	elapsed, err := sub(tsSec, s.genesisTimestampSec)
	if err != nil {
		return 0, err
	}
	return elapsed / s.slotDurationSec, nil
}

// SlotAtTimestamp returns the L1 slot containing the given wall-clock
// second, used to resolve an L1 block's timestamp to the beacon slot its
// blob sidecars are served under (§4.C14).
func (s *SlotClock) SlotAtTimestamp(tsSec uint64) (uint64, error) {
	return s.slotAt(tsSec)
}

// CurrentEpoch returns the epoch containing the current slot.
func (s *SlotClock) CurrentEpoch() (uint64, error) {
	slot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	return slot / s.slotsPerEpoch, nil
}

// SlotWithinEpoch returns the 0-based offset of the current slot within its epoch.
func (s *SlotClock) SlotWithinEpoch() (uint64, error) {
	slot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	return slot % s.slotsPerEpoch, nil
}

// L2SlotWithinL1Slot returns the 0-based index of the current L2 heartbeat
// sub-slot within the current L1 slot.
func (s *SlotClock) L2SlotWithinL1Slot() (uint64, error) {
	l1SlotBegin, err := s.L1SlotBeginTimestamp()
	if err != nil {
		return 0, err
	}
	elapsed, err := sub(s.nowUnix(), l1SlotBegin)
	if err != nil {
		return 0, err
	}
	elapsedMs, err := mul(elapsed, 1000)
	if err != nil {
		return 0, err
	}
	return elapsedMs / s.heartbeatMs, nil
}

// L1SlotBeginTimestamp returns the wall-clock second at which the current L1
// slot began.
func (s *SlotClock) L1SlotBeginTimestamp() (uint64, error) {
	slot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	offset, err := mul(slot, s.slotDurationSec)
	if err != nil {
		return 0, err
	}
	return s.genesisTimestampSec + offset, nil
}

// L2SlotBeginTimestamp returns the same value as L1SlotBeginTimestamp, the
// second at which the current L1 slot began; it does not add the current L2
// sub-slot's offset (alias kept for naming parity with the spec's
// "l2_slot_begin_timestamp").
func (s *SlotClock) L2SlotBeginTimestamp() (uint64, error) {
	return s.L1SlotBeginTimestamp()
}

// SlotsSinceL1Block returns how many L1 slots have elapsed since the given
// L1 block's timestamp.
func (s *SlotClock) SlotsSinceL1Block(l1BlockTimestamp uint64) (uint64, error) {
	blockSlot, err := s.slotAt(l1BlockTimestamp)
	if err != nil {
		return 0, err
	}
	currentSlot, err := s.CurrentSlot()
	if err != nil {
		return 0, err
	}
	return sub(currentSlot, blockSlot)
}

// DurationToNextL1Slot returns the time.Duration until the next L1 slot boundary.
func (s *SlotClock) DurationToNextL1Slot() (time.Duration, error) {
	begin, err := s.L1SlotBeginTimestamp()
	if err != nil {
		return 0, err
	}
	nextBegin := begin + s.slotDurationSec
	nowSec := s.nowUnix()
	if nextBegin <= nowSec {
		return 0, nil
	}
	return time.Duration(nextBegin-nowSec) * time.Second, nil
}

// SlotIsInLastNSlotsOfEpoch reports whether the current slot falls within
// the last n slots of its epoch (used by the hand-off window check).
func (s *SlotClock) SlotIsInLastNSlotsOfEpoch(n uint64) (bool, error) {
	slotInEpoch, err := s.SlotWithinEpoch()
	if err != nil {
		return false, err
	}
	if n > s.slotsPerEpoch {
		n = s.slotsPerEpoch
	}
	return slotInEpoch >= s.slotsPerEpoch-n, nil
}

// FirstSlotOfNextEpoch returns the slot number of the first slot of the
// epoch following the current one.
func (s *SlotClock) FirstSlotOfNextEpoch() (uint64, error) {
	epoch, err := s.CurrentEpoch()
	if err != nil {
		return 0, err
	}
	return (epoch + 1) * s.slotsPerEpoch, nil
}
