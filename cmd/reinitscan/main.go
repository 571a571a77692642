package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/ledgerwatch/reinitscan/logging"
	"github.com/ledgerwatch/reinitscan/plainstate"
	"github.com/ledgerwatch/reinitscan/scan"
	"github.com/ledgerwatch/reinitscan/tracerpc"
)

// set through ldflags by the build
var gitCommit string

var (
	startBlockFlag = &cli.Uint64Flag{
		Name:     "start-block",
		Usage:    "First block of the scanned range (inclusive)",
		Required: true,
	}
	endBlockFlag = &cli.Uint64Flag{
		Name:     "end-block",
		Usage:    "Last block of the scanned range (inclusive)",
		Required: true,
	}
	rpcURLFlag = &cli.StringFlag{
		Name:     "rpc-url",
		Usage:    "HTTP endpoint of a node serving trace_block",
		EnvVars:  []string{"RPC_URL"},
		Required: true,
	}
	dbPathFlag = &cli.StringFlag{
		Name:     "db-path",
		Usage:    "Path to the node's chaindata directory, opened read-only",
		EnvVars:  []string{"DB_PATH"},
		Required: true,
	}
	staticFilesFlag = &cli.StringFlag{
		Name:     "static-files-path",
		Usage:    "Path to the node's snapshots directory",
		EnvVars:  []string{"STATIC_FILES_PATH"},
		Required: true,
	}
	fetchWorkersFlag = &cli.IntFlag{
		Name:  "fetch.workers",
		Usage: "Cap on concurrent trace_block requests",
		Value: runtime.GOMAXPROCS(-1) * 4,
	}
	stateWorkersFlag = &cli.IntFlag{
		Name:  "state.workers",
		Usage: "Workers checking the plain state table",
		Value: runtime.GOMAXPROCS(-1),
	}
	rpcRateFlag = &cli.IntFlag{
		Name:  "rpc.rps",
		Usage: "Cap on trace requests per second, 0 is unlimited",
	}
	skipFailedBlocksFlag = &cli.BoolFlag{
		Name:  "skip-failed-blocks",
		Usage: "Log and skip blocks whose traces cannot be fetched instead of aborting the run",
	}
	verifyChainFlag = &cli.BoolFlag{
		Name:  "rpc.verify-chain",
		Usage: "Verify the RPC endpoint serves the same chain as the database",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain.id",
		Usage: "Expected chain id; a mismatch with the database aborts the run",
	}
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "reinitscan",
		Usage:   "Detects contracts self-destructed and later recreated at the same address",
		Version: gitCommit,
		Action:  run,
		Flags: append([]cli.Flag{
			startBlockFlag,
			endBlockFlag,
			rpcURLFlag,
			dbPathFlag,
			staticFilesFlag,
			fetchWorkersFlag,
			stateWorkersFlag,
			rpcRateFlag,
			skipFailedBlocksFlag,
			verifyChainFlag,
			chainIDFlag,
		}, logging.Flags...),
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	logger := logging.SetupLoggerCtx("reinitscan", cliCtx)
	ctx := cliCtx.Context

	startBlock := cliCtx.Uint64(startBlockFlag.Name)
	endBlock := cliCtx.Uint64(endBlockFlag.Name)
	if startBlock > endBlock {
		return fmt.Errorf("start-block %d above end-block %d", startBlock, endBlock)
	}

	client := tracerpc.NewClient(cliCtx.String(rpcURLFlag.Name),
		tracerpc.WithRateLimit(cliCtx.Int(rpcRateFlag.Name)))

	store, err := plainstate.Open(cliCtx.String(dbPathFlag.Name), cliCtx.String(staticFilesFlag.Name), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := checkChain(ctx, cliCtx, store, client, logger); err != nil {
		return err
	}
	size, err := store.StateTableSize(ctx)
	if err != nil {
		return err
	}
	logger.Info("opened chaindata", "plain state size", datasize.ByteSize(size).HumanReadable())

	scanner := scan.NewScanner(client, store, scan.Config{
		StartBlock:       startBlock,
		EndBlock:         endBlock,
		FetchWorkers:     cliCtx.Int(fetchWorkersFlag.Name),
		SkipFailedBlocks: cliCtx.Bool(skipFailedBlocksFlag.Name),
		StateWorkers:     cliCtx.Int(stateWorkersFlag.Name),
	}, logger)

	_, err = scanner.Run(ctx)
	return err
}

// checkChain reads the chain config stored in the database, enforces the
// expected chain id when one is given and, on request, cross-checks the RPC
// endpoint against it.
func checkChain(ctx context.Context, cliCtx *cli.Context, store *plainstate.Store, client *tracerpc.Client, logger log.Logger) error {
	cfg, err := store.ChainConfig(ctx)
	if err != nil {
		return err
	}
	logger.Info("chain config", "name", cfg.ChainName, "id", cfg.ChainID)

	if expected := cliCtx.Uint64(chainIDFlag.Name); cliCtx.IsSet(chainIDFlag.Name) {
		if cfg.ChainID == nil || cfg.ChainID.Uint64() != expected {
			return fmt.Errorf("chain id mismatch: database has %v, expected %d", cfg.ChainID, expected)
		}
	}
	if cliCtx.Bool(verifyChainFlag.Name) {
		rpcChainID, err := client.ChainID(ctx)
		if err != nil {
			return err
		}
		if cfg.ChainID == nil || cfg.ChainID.Uint64() != rpcChainID {
			return fmt.Errorf("rpc endpoint serves chain %d, database has %v", rpcChainID, cfg.ChainID)
		}
	}
	return nil
}
