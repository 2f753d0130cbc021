// Command preconf-node runs the Taiko preconfirmation proposer node: the
// whole §4 pipeline wired together and driven by the C13 Node Loop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/joho/godotenv"

	"github.com/NethermindEth/taiko-preconf-node/cmd/flags"
	"github.com/NethermindEth/taiko-preconf-node/internal/metrics"
	"github.com/NethermindEth/taiko-preconf-node/node"
	"github.com/NethermindEth/taiko-preconf-node/node/batchbuilder"
	"github.com/NethermindEth/taiko-preconf-node/node/batchmanager"
	"github.com/NethermindEth/taiko-preconf-node/node/chainmonitor"
	"github.com/NethermindEth/taiko-preconf-node/node/forcedinclusion"
	"github.com/NethermindEth/taiko-preconf-node/node/operator"
	"github.com/NethermindEth/taiko-preconf-node/node/verifier"
	"github.com/NethermindEth/taiko-preconf-node/pkg/blobcodec"
	"github.com/NethermindEth/taiko-preconf-node/pkg/config"
	"github.com/NethermindEth/taiko-preconf-node/pkg/rpc"
	"github.com/NethermindEth/taiko-preconf-node/pkg/signer"
	"github.com/NethermindEth/taiko-preconf-node/pkg/slotclock"
	"github.com/NethermindEth/taiko-preconf-node/pkg/utils"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txbuilder"
	"github.com/NethermindEth/taiko-preconf-node/proposer/txmonitor"
)

func main() {
	app := cli.NewApp()
	app.Name = "preconf-node"
	app.Usage = "Taiko preconfirmation proposer node"
	app.Description = "Preconfirms and proposes L2 blocks during a whitelisted operator's sequencing window"
	app.Flags = flags.All
	app.Action = run

	envFile := os.Getenv("PRECONF_NODE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	setupLogging(c.String(flags.Verbosity.Name))

	cfg, err := config.NewConfigFromCliContext(c)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	signalled := make(chan struct{})
	graceDone := make(chan struct{})
	go func() {
		<-sigCh
		log.Warn("main: shutdown signal received, cancelling")
		close(signalled)
		cancel()
		time.Sleep(time.Duration(cfg.SlotClock.SlotDurationSec) * time.Second)
		close(graceDone)
	}()
	defer func() {
		select {
		case <-signalled:
			<-graceDone
		default:
		}
	}()

	client, err := rpc.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect rpc clients: %w", err)
	}
	beacon := rpc.NewBeaconClient(cfg.L1.BeaconURL)

	if err := utils.Retry(ctx, func() error {
		return client.WaitTillL2ExecutionEngineSynced(ctx)
	}); err != nil {
		return fmt.Errorf("wait for l2 execution engine sync: %w", err)
	}

	var genesisTime uint64
	if err := utils.Retry(ctx, func() error {
		var err error
		genesisTime, err = beacon.GenesisTime(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("fetch beacon genesis time: %w", err)
	}
	clock := slotclock.New(genesisTime, cfg.SlotClock.SlotDurationSec, cfg.SlotClock.SlotsPerEpoch, cfg.SlotClock.PreconfHeartbeatMs)

	backend, err := buildSignerBackend(cfg.Signer)
	if err != nil {
		return fmt.Errorf("build signer backend: %w", err)
	}

	chainID, err := client.L1.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetch l1 chain id: %w", err)
	}

	anchorSigner, err := signer.NewGoldenTouchSigner()
	if err != nil {
		return fmt.Errorf("build golden-touch anchor signer: %w", err)
	}

	protocolCfg, err := client.L1.PacayaConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch pacaya config: %w", err)
	}
	maxAnchorHeightOffset := protocolCfg.MaxAnchorHeightOffset - cfg.Batch.MaxAnchorHeightOffsetReductionValue
	maxBlocksPerBatch := cfg.Batch.MaxBlocksPerBatch
	if maxBlocksPerBatch == 0 {
		maxBlocksPerBatch = uint64(protocolCfg.MaxBlocksPerBatch)
	}
	maxBytesSizeOfBatch := cfg.Batch.MaxBytesSizeOfBatch
	if maxBytesSizeOfBatch == 0 {
		maxBytesSizeOfBatch = cfg.Batch.BlobsPerBatch * blobcodec.MaxBlobDataSize
	}
	l2SlotsPerEpoch := cfg.SlotClock.SlotsPerEpoch * clock.SubSlotsPerL1Slot()

	builder := batchbuilder.New(cfg.Batch, clock, cfg.SlotClock.SlotDurationSec, cfg.SlotClock.PreconfHeartbeatMs)
	builder.SetLimits(maxBlocksPerBatch, maxBytesSizeOfBatch)
	builder.SetMaxAnchorHeightOffset(maxAnchorHeightOffset)

	manager := batchmanager.New(
		client.L1, client.L2, clock, builder, anchorSigner,
		backend.Address(), cfg.Batch.L1HeightLag, cfg.Batch.MaxBytesPerTxList,
		cfg.Batch.MinBytesPerTxList, cfg.Batch.ThrottlingFactor,
	)
	manager.SetBaseFeeConfig(protocolCfg.BaseFeeConfig)

	op := operator.New(client.L1, clock, cfg.Handover, backend.Address())
	chainMon := chainmonitor.New(client.L1, client.L2)
	forcedIncl := forcedinclusion.New(client.L1, beacon, clock)
	verifDeps := verifier.NewRPCDeps(client.L1, client.L2, clock, manager, maxAnchorHeightOffset)
	txBuilder := txbuilder.NewBuilder(client.L1, cfg.L1.RouterAddress, cfg.Batch.BlobsPerBatch, cfg.Batch.ExtraGasPercentage)
	txMon := txmonitor.NewMonitor(client.L1, backend, chainID.Int64(), cfg.TxMonitor)

	recorder, metricsHandler := metrics.NewRecorder()
	metricsSrv := metrics.NewServer(cfg.MetricsPort, metricsHandler)
	balanceMon := metrics.NewBalanceMonitor(client.L1, client.L2, backend.Address(), recorder)

	startL1Block, err := startingL1Block(ctx, client.L1)
	if err != nil {
		return fmt.Errorf("resolve chain monitor starting l1 block: %w", err)
	}

	loop := node.New(node.Params{
		L1:                    client.L1,
		L2:                    client.L2,
		Clock:                 clock,
		Operator:              op,
		Manager:               manager,
		Builder:               builder,
		TxBuilder:             txBuilder,
		TxMonitor:             txMon,
		ChainMonitor:          chainMon,
		ForcedInclusion:       forcedIncl,
		VerifierDeps:          verifDeps,
		Metrics:               recorder,
		Backend:               backend,
		ChainID:               chainID.Int64(),
		Heartbeat:             time.Duration(cfg.SlotClock.PreconfHeartbeatMs) * time.Millisecond,
		MaxAnchorHeightOffset: maxAnchorHeightOffset,
		L2SlotsPerEpoch:       l2SlotsPerEpoch,
		Cancel:                cancel,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return chainMon.Run(gctx, startL1Block) })
	g.Go(func() error { return metricsSrv.Run(gctx) })
	g.Go(func() error { return balanceMon.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return fmt.Errorf("node exited: %w", err)
	}
	return nil
}

// startingL1Block picks up the Chain Monitor's BatchProposed watch from the
// current chain head, since it only ever warns about breaks it observes
// going forward (§4.C12).
func startingL1Block(ctx context.Context, l1 *rpc.L1Client) (uint64, error) {
	header, err := l1.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("l1 header by number: %w", err)
	}
	return header.Number.Uint64(), nil
}

// buildSignerBackend picks the private-key or remote web3signer backend
// per §9's dynamic dispatch; NewConfigFromCliContext already validated the
// two are mutually exclusive and one is fully specified. Anchor
// transactions never go through this backend: they are always signed by
// the deterministic golden-touch key (signer.NewGoldenTouchSigner),
// independent of the proposer's own signing configuration, so
// Web3SignerL2URL has no separate call site here.
func buildSignerBackend(cfg config.SignerConfig) (signer.Backend, error) {
	if cfg.PrivateKey != nil {
		return signer.NewPrivateKeyBackend(cfg.PrivateKey), nil
	}
	return signer.NewRemoteBackend(cfg.Web3SignerL1URL, cfg.PreconferAddress), nil
}

// setupLogging maps the VERBOSITY flag onto go-ethereum's slog-based
// handler, the same terminal handler + glog-style level filter taiko-client
// configures its CLI binaries with.
func setupLogging(verbosity string) {
	glogger := log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, false))
	glogger.Verbosity(parseVerbosity(verbosity))
	log.SetDefault(log.NewLogger(glogger))
}

func parseVerbosity(v string) slog.Level {
	switch v {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}
