package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// fakeDeps is an in-memory Deps stand-in; unlike batchmanager/operator this
// package's Deps is already an interface, so the full Tick/verify state
// machine can be exercised directly rather than just its pure helpers.
type fakeDeps struct {
	currentSlot uint64
	inboxHeight uint64
	rootHashes  map[uint64]common.Hash
	withinLimit bool
	recovered   []uint64

	currentSlotErr error
	inboxHeightErr error
	rootHashErr    error
	withinLimitErr error
	recoverErr     error

	// inboxHeightBlock, when non-nil, makes InboxHeight block until closed;
	// used to deterministically observe Tick's background task mid-flight.
	inboxHeightBlock chan struct{}
}

func (f *fakeDeps) CurrentL1Slot(ctx context.Context) (uint64, error) {
	return f.currentSlot, f.currentSlotErr
}

func (f *fakeDeps) InboxHeight(ctx context.Context) (uint64, error) {
	if f.inboxHeightBlock != nil {
		<-f.inboxHeightBlock
	}
	return f.inboxHeight, f.inboxHeightErr
}

func (f *fakeDeps) L2RootHash(ctx context.Context, blockNumber uint64) (common.Hash, error) {
	if f.rootHashErr != nil {
		return common.Hash{}, f.rootHashErr
	}
	return f.rootHashes[blockNumber], nil
}

func (f *fakeDeps) AnchorHeightOffsetWithinLimit(ctx context.Context, blockNumber uint64) (bool, error) {
	return f.withinLimit, f.withinLimitErr
}

func (f *fakeDeps) RecoverFromL2Block(ctx context.Context, blockHeight uint64) error {
	if f.recoverErr != nil {
		return f.recoverErr
	}
	f.recovered = append(f.recovered, blockHeight)
	return nil
}

func TestTickReportsSlotNotValidBeforeVerificationSlot(t *testing.T) {
	deps := &fakeDeps{currentSlot: 10}
	v := New(deps, Root{Number: 100, Hash: common.HexToHash("0xaa")}, 20)

	res, err := v.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, SlotNotValid, res.Kind)
}

// The verify rule table is exercised directly against verify (the pure
// one-shot task body) rather than through Tick, since Tick now only spawns
// it in the background; Tick's own async contract is covered separately
// below.

func TestVerifySuccessNoBatchesWhenInboxMatchesRoot(t *testing.T) {
	rootHash := common.HexToHash("0xaa")
	deps := &fakeDeps{
		currentSlot: 20,
		inboxHeight: 100,
		rootHashes:  map[uint64]common.Hash{100: rootHash},
	}
	v := New(deps, Root{Number: 100, Hash: rootHash}, 20)

	res, err := v.verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, SuccessNoBatches, res.Kind)
}

func TestVerifyReanchorsWhenRootHashChanged(t *testing.T) {
	deps := &fakeDeps{
		currentSlot: 20,
		inboxHeight: 100,
		rootHashes:  map[uint64]common.Hash{100: common.HexToHash("0xbb")},
	}
	v := New(deps, Root{Number: 100, Hash: common.HexToHash("0xaa")}, 20)

	res, err := v.verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReanchorNeeded, res.Kind)
	require.Equal(t, "root changed", res.Reason)
	require.Equal(t, uint64(100), res.ParentBlockID)
}

// TestVerifyRecoversMissingTail mirrors spec Scenario 5: inbox at X, L2
// engine (root) at X+3, the missing X+1..X+3 are recovered and reported
// prepended.
func TestVerifyRecoversMissingTail(t *testing.T) {
	const x = uint64(100)
	rootHash := common.HexToHash("0xaa")
	deps := &fakeDeps{
		currentSlot: 20,
		inboxHeight: x,
		rootHashes:  map[uint64]common.Hash{x + 3: rootHash},
		withinLimit: true,
	}
	v := New(deps, Root{Number: x + 3, Hash: rootHash}, 20)

	res, err := v.verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, SuccessWithBatches, res.Kind)
	require.Equal(t, x+3, res.RecoveredThroughHeight)
	require.Equal(t, []uint64{x + 1, x + 2, x + 3}, deps.recovered)
}

func TestVerifyReanchorsWhenTailPastAnchorOffset(t *testing.T) {
	const x = uint64(100)
	rootHash := common.HexToHash("0xaa")
	deps := &fakeDeps{
		currentSlot: 20,
		inboxHeight: x,
		rootHashes:  map[uint64]common.Hash{x + 3: rootHash},
		withinLimit: false,
	}
	v := New(deps, Root{Number: x + 3, Hash: rootHash}, 20)

	res, err := v.verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReanchorNeeded, res.Kind)
	require.Equal(t, "anchor height offset exceeded during recovery", res.Reason)
	require.Empty(t, deps.recovered)
}

func TestVerifyReanchorsOnUnexpectedProposal(t *testing.T) {
	rootHash := common.HexToHash("0xaa")
	deps := &fakeDeps{
		currentSlot: 20,
		inboxHeight: 105,
		rootHashes:  map[uint64]common.Hash{100: rootHash},
	}
	v := New(deps, Root{Number: 100, Hash: rootHash}, 20)

	res, err := v.verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReanchorNeeded, res.Kind)
	require.Equal(t, "unexpected proposal by previous operator", res.Reason)
	require.Equal(t, uint64(105), res.ParentBlockID)
}

func TestVerifyPropagatesInboxHeightError(t *testing.T) {
	deps := &fakeDeps{currentSlot: 20, inboxHeightErr: errors.New("rpc down")}
	v := New(deps, Root{Number: 100, Hash: common.HexToHash("0xaa")}, 20)

	_, err := v.verify(context.Background())
	require.Error(t, err)
}

func TestTickReturnsVerificationInProgressWhileRunning(t *testing.T) {
	deps := &fakeDeps{currentSlot: 20, inboxHeight: 100, rootHashes: map[uint64]common.Hash{100: common.HexToHash("0xaa")}}
	v := New(deps, Root{Number: 100, Hash: common.HexToHash("0xaa")}, 20)
	v.running = true

	res, err := v.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, VerificationInProgress, res.Kind)
}

// TestTickRunsVerificationInBackground confirms Tick spawns the one-shot
// task rather than blocking the caller: the first call returns
// VerificationInProgress immediately even though the task itself is still
// stuck inside InboxHeight, a second call while it's still stuck reports
// the same, and only once the task is unblocked does a later call surface
// its actual result.
func TestTickRunsVerificationInBackground(t *testing.T) {
	rootHash := common.HexToHash("0xaa")
	deps := &fakeDeps{
		currentSlot:      20,
		inboxHeight:      100,
		rootHashes:       map[uint64]common.Hash{100: rootHash},
		inboxHeightBlock: make(chan struct{}),
	}
	v := New(deps, Root{Number: 100, Hash: rootHash}, 20)

	res, err := v.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, VerificationInProgress, res.Kind)
	require.True(t, v.running)

	res, err = v.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, VerificationInProgress, res.Kind)

	close(deps.inboxHeightBlock)

	var final *Result
	for i := 0; i < 1000; i++ {
		final, err = v.Tick(context.Background())
		require.NoError(t, err)
		if final.Kind != VerificationInProgress {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, SuccessNoBatches, final.Kind)
	require.False(t, v.running)
}
