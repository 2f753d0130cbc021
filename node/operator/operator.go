// Package operator implements the Operator State Machine (§4.C10): the
// per-tick rule table that turns slot position and on-chain whitelist reads
// into a role (None / Preconfer / PreconferHandoverBuffer /
// PreconferAndSubmitter / Submitter).
package operator

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
)

// Machine evaluates §4.C10's rule table once per heartbeat. It is not safe
// for concurrent use; the Node Loop drives it from a single goroutine.
type Machine struct {
	l1    *rpc.L1Client
	clock *slotclock.SlotClock
	cfg   config.HandoverConfig
	self  common.Address

	now func() time.Time

	// nominatedForNextOperator is memoized across the "chain lags" window at
	// the start of an epoch, refreshed every tick spent in the handover
	// window of the epoch before.
	nominatedForNextOperator bool

	inHandoverWindow bool
	handoverStart    time.Time

	wasPreconfer bool
}

// New builds an Operator State Machine for the given whitelisted address.
func New(l1 *rpc.L1Client, clock *slotclock.SlotClock, cfg config.HandoverConfig, self common.Address) *Machine {
	return &Machine{
		l1:    l1,
		clock: clock,
		cfg:   cfg,
		self:  self,
		now:   time.Now,
	}
}

// Tick evaluates the rule table for the current slot and returns the
// derived role. The returned status's IsPreconformationStart is true only on
// the tick where the node transitions from non-preconfer to preconfer.
func (m *Machine) Tick(ctx context.Context) (*node.OperatorStatus, error) {
	l1SlotOfEpoch, err := m.clock.SlotWithinEpoch()
	if err != nil {
		return nil, fmt.Errorf("operator: slot within epoch: %w", err)
	}
	l2SubSlot, err := m.clock.L2SlotWithinL1Slot()
	if err != nil {
		return nil, fmt.Errorf("operator: l2 sub slot: %w", err)
	}

	if l1SlotOfEpoch == 0 || (l1SlotOfEpoch == 1 && l2SubSlot == 0) {
		m.inHandoverWindow = false
		return m.finish(statusAtEpochBoundary(m.nominatedForNextOperator)), nil
	}

	inHandover, err := m.clock.SlotIsInLastNSlotsOfEpoch(m.cfg.WindowSlots)
	if err != nil {
		return nil, fmt.Errorf("operator: handover window check: %w", err)
	}

	isCurrent, isNext, err := m.readWhitelist(ctx)
	if err != nil {
		return nil, err
	}

	if !inHandover {
		m.inHandoverWindow = false
		return m.finish(statusOutsideHandover(isCurrent)), nil
	}

	if !m.inHandoverWindow {
		m.handoverStart = m.now()
	}
	m.inHandoverWindow = true
	m.nominatedForNextOperator = isNext
	elapsedMs := uint64(m.now().Sub(m.handoverStart).Milliseconds())

	return m.finish(statusInHandoverWindow(isCurrent, isNext, elapsedMs, m.cfg.StartBufferMs)), nil
}

// statusAtEpochBoundary implements the "chain lags" rule at l1_slot==0 (or
// l1_slot==1 && l2_sub_slot==0), using the memoized next-epoch nomination.
func statusAtEpochBoundary(nominatedForNextOperator bool) *node.OperatorStatus {
	if nominatedForNextOperator {
		return status(node.StatusPreconferAndSubmitter,
			"epoch boundary: chain's current-operator read lags, using memoized next-epoch nomination")
	}
	return status(node.StatusNone, "epoch boundary: not nominated as next operator")
}

// statusOutsideHandover implements the plain current-operator rule used
// everywhere outside the handover window.
func statusOutsideHandover(isCurrent bool) *node.OperatorStatus {
	if isCurrent {
		return status(node.StatusPreconferAndSubmitter, "current operator, outside handover window")
	}
	return status(node.StatusNone, "not the current operator")
}

// statusInHandoverWindow implements the nested handover-window rules:
// current operator drains or keeps both roles, next operator waits out the
// start buffer then preconfirms, anyone else gets no role.
func statusInHandoverWindow(isCurrent, isNext bool, elapsedMs, startBufferMs uint64) *node.OperatorStatus {
	if isCurrent {
		if isNext {
			return status(node.StatusPreconferAndSubmitter, "handover window: still current and next operator")
		}
		return status(node.StatusSubmitter, "handover window: outgoing operator, draining remaining batches only")
	}
	if isNext {
		if elapsedMs < startBufferMs {
			return &node.OperatorStatus{
				Kind:              node.StatusPreconferHandoverBuffer,
				RemainingBufferMs: startBufferMs - elapsedMs,
				Reason:            "handover window: waiting out the start buffer before preconfirming",
			}
		}
		return &node.OperatorStatus{
			Kind:   node.StatusPreconfer,
			Reason: "handover window: incoming operator preconfirming while outgoing operator still submits",
		}
	}
	return status(node.StatusNone, "handover window: neither current nor next operator")
}

// readWhitelist compares the on-chain current/next operator against our own
// address, the two booleans §4.C10's rule table is phrased in terms of.
func (m *Machine) readWhitelist(ctx context.Context) (isCurrent, isNext bool, err error) {
	current, err := m.l1.GetOperatorForCurrentEpoch(ctx)
	if err != nil {
		return false, false, fmt.Errorf("operator: current epoch operator: %w", err)
	}
	next, err := m.l1.GetOperatorForNextEpoch(ctx)
	if err != nil {
		return false, false, fmt.Errorf("operator: next epoch operator: %w", err)
	}
	return current == m.self, next == m.self, nil
}

// finish stamps IsPreconformationStart on the edge transition into a
// preconfirming role and updates wasPreconfer for the next tick.
func (m *Machine) finish(s *node.OperatorStatus) *node.OperatorStatus {
	isPreconfer := s.IsPreconfer()
	s.IsPreconformationStart = isPreconfer && !m.wasPreconfer
	m.wasPreconfer = isPreconfer
	return s
}

func status(kind node.OperatorStatusKind, reason string) *node.OperatorStatus {
	return &node.OperatorStatus{Kind: kind, Reason: reason}
}
