// Package rpc bundles the C4 L2 Client Adapter and C5 L1 Client Adapter
// behind one Client, mirroring taiko-client's pkg/rpc.Client.
package rpc

import (
	"context"
	"fmt"

	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
)

// Client bundles the L1 and L2 adapters used throughout the node.
type Client struct {
	L1 *L1Client
	L2 *L2Client
}

// NewClient dials both the L1 and L2 endpoints described by cfg.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if len(cfg.L1.RPCURLs) == 0 {
		return nil, fmt.Errorf("rpc: at least one L1 RPC URL is required")
	}

	l1, err := NewL1Client(
		ctx,
		cfg.L1.RPCURLs[0],
		cfg.L1.InboxAddress,
		cfg.L1.RouterAddress,
		cfg.L1.WhitelistAddress,
		cfg.L1.ForcedInclusionStoreAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: connect L1 client: %w", err)
	}

	l2, err := NewL2Client(
		ctx,
		cfg.L2.GethRPCURL,
		cfg.L2.GethAuthRPCURL,
		cfg.L2.DriverURL,
		cfg.L2.JWTSecretFile,
		cfg.L2.AnchorAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: connect L2 client: %w", err)
	}

	return &Client{L1: l1, L2: l2}, nil
}

// WaitTillL2ExecutionEngineSynced checks once whether the L2 execution
// engine reports that it is still syncing and returns an error if so; it
// does not wait or retry itself (cmd/main.go wraps it in utils.Retry).
func (c *Client) WaitTillL2ExecutionEngineSynced(ctx context.Context) error {
	progress, err := c.L2.Client.SyncProgress(ctx)
	if err != nil {
		return fmt.Errorf("rpc: fetch L2 sync progress: %w", err)
	}
	if progress != nil {
		return fmt.Errorf("rpc: L2 execution engine still syncing: %d/%d", progress.CurrentBlock, progress.HighestBlock)
	}
	return nil
}

// GetL2HeightFromTaikoInbox reads the number of batches proposed so far and
// resolves the last L2 block ID of the most recent batch (§6
// get_l2_height_from_taiko_inbox = last block id of batch num_batches-1).
func (c *Client) GetL2HeightFromTaikoInbox(ctx context.Context) (uint64, error) {
	stats, err := c.L1.GetStats2(ctx)
	if err != nil {
		return 0, fmt.Errorf("rpc: getStats2: %w", err)
	}
	if stats.NumBatches == 0 {
		return 0, nil
	}
	return c.L1.GetL2HeightFromTaikoInbox(ctx, stats.NumBatches-1)
}

