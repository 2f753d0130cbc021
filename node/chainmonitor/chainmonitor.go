// Package chainmonitor implements the C12 Chain Monitor (§4.C12): an
// independent task that watches the L1 inbox's BatchProposed log and the L2
// engine's new-heads feed for any chain-of-custody break the node didn't
// itself request, logging a warning but never mutating node state.
package chainmonitor

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/taiko-preconf-node/bindings"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
)

// messageQueueSize bounds the subscription channels, matching the teacher's
// mpsc channel capacity for the same two event streams.
const messageQueueSize = 20

// status is the chain-of-custody state the monitor tracks. Run owns it
// exclusively from a single goroutine, so unlike the teacher's
// Mutex<TaikoGethStatus> no lock is needed here.
type status struct {
	height        uint64
	hash          common.Hash
	expectedReorg *uint64
}

// Monitor is the C12 Chain Monitor.
type Monitor struct {
	l1 *rpc.L1Client
	l2 *rpc.L2Client

	st status

	expectReorg chan uint64
}

// New builds a Chain Monitor watching l1's inbox and l2's head.
func New(l1 *rpc.L1Client, l2 *rpc.L2Client) *Monitor {
	return &Monitor{l1: l1, l2: l2, expectReorg: make(chan uint64, 1)}
}

// SetExpectedReorg arms the one allowed reorg target, called by the Node
// Loop immediately before it triggers a deliberate re-anchor. A second call
// before the first is consumed replaces the pending target.
func (m *Monitor) SetExpectedReorg(expectedBlockNumber uint64) {
	for {
		select {
		case m.expectReorg <- expectedBlockNumber:
			return
		default:
			select {
			case <-m.expectReorg:
			default:
			}
		}
	}
}

// Run subscribes to the L1 inbox's BatchProposed log (from fromL1Block) and
// L2 new heads, and runs the message loop until ctx is done or a
// subscription fails (§4.C12).
func (m *Monitor) Run(ctx context.Context, fromL1Block uint64) error {
	batchLogs := make(chan types.Log, messageQueueSize)
	l1Sub, err := m.l1.WatchBatchProposed(ctx, fromL1Block, batchLogs)
	if err != nil {
		return fmt.Errorf("chainmonitor: subscribe batch proposed: %w", err)
	}
	defer l1Sub.Unsubscribe()

	heads := make(chan *types.Header, messageQueueSize)
	headSub, err := m.l2.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("chainmonitor: subscribe l2 new heads: %w", err)
	}
	defer headSub.Unsubscribe()

	log.Info("chainmonitor: message loop running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-l1Sub.Err():
			return fmt.Errorf("chainmonitor: batch proposed subscription: %w", err)
		case err := <-headSub.Err():
			return fmt.Errorf("chainmonitor: l2 head subscription: %w", err)
		case expected := <-m.expectReorg:
			m.st.expectedReorg = &expected
		case lg := <-batchLogs:
			m.onBatchProposed(lg)
		case head := <-heads:
			m.onNewHead(head)
		}
	}
}

// onBatchProposed just logs; the Chain Monitor observes proposals but does
// not act on them (§4.C12).
func (m *Monitor) onBatchProposed(lg types.Log) {
	lastBlockID, err := decodeLastBlockID(lg)
	if err != nil {
		log.Warn("chainmonitor: failed to decode BatchProposed log", "err", err)
		return
	}
	log.Info("chainmonitor: BatchProposed event", "lastBlockId", lastBlockID)
}

// onNewHead implements the §4.C12 break detection: any number/parent-hash
// divergence from the tracked (expected_parent_height, expected_parent_hash)
// that isn't the single armed expected-reorg target is a warning.
func (m *Monitor) onNewHead(head *types.Header) {
	number := head.Number.Uint64()
	hash := head.Hash()

	log.Info("chainmonitor: l2 head", "number", number, "hash", hash, "parentHash", head.ParentHash)

	if broke, expected := classifyHeadTransition(m.st, number, head.ParentHash); broke {
		if expected {
			log.Debug("chainmonitor: geth reorg detected, matches expected target",
				"expectedHeight", m.st.height, "expectedHash", m.st.hash)
		} else {
			log.Warn("chainmonitor: geth reorg detected",
				"expectedHeight", m.st.height, "expectedHash", m.st.hash,
				"gotNumber", number, "gotParentHash", head.ParentHash)
		}
	}

	m.st.height = number
	m.st.hash = hash
}

// classifyHeadTransition decides whether a new L2 head breaks the tracked
// chain of custody and, if so, whether it matches the single armed
// expected-reorg target (§4.C12). height==0 is the monitor's unset initial
// state, never itself a break (mirrors the teacher's `status.height != 0`
// guard).
func classifyHeadTransition(prev status, newNumber uint64, newParentHash common.Hash) (broke, expected bool) {
	if prev.height == 0 {
		return false, false
	}
	broke = newNumber != prev.height+1 || newParentHash != prev.hash
	if !broke {
		return false, false
	}
	expected = prev.expectedReorg != nil && newNumber == *prev.expectedReorg
	return true, expected
}

func decodeLastBlockID(lg types.Log) (uint64, error) {
	values, err := bindings.InboxABI.Events["BatchProposed"].Inputs.Unpack(lg.Data)
	if err != nil {
		return 0, fmt.Errorf("unpack BatchProposed log: %w", err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("unpack BatchProposed log: empty result")
	}
	raw, ok := values[0].(struct {
		LastBlockId uint64
		Blocks      []struct {
			NumTransactions uint16
			TimeShift       uint8
		}
	})
	if !ok {
		return 0, fmt.Errorf("unpack BatchProposed log: unexpected return shape %T", values[0])
	}
	return raw.LastBlockId, nil
}
