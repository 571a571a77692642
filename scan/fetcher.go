package scan

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerwatch/reinitscan/tracerpc"
)

// TraceFetcher is the per-block trace source. *tracerpc.Client satisfies it.
type TraceFetcher interface {
	BlockTraces(ctx context.Context, blockNum uint64) ([]tracerpc.Trace, error)
}

// FetchConfig bounds the trace fan-out and sets the per-block failure
// policy.
type FetchConfig struct {
	// Workers caps concurrent trace_block requests. Zero or negative
	// defaults to GOMAXPROCS*4.
	Workers int
	// SkipFailedBlocks logs and skips blocks whose traces cannot be
	// fetched instead of aborting the run; a skipped block contributes no
	// events.
	SkipFailedBlocks bool
}

// FetchRange fetches traces for every block of [startBlock, endBlock],
// classifies each block's batch and returns the flattened event list in
// ascending block order, node order within a block. One fetch task runs per
// block, bounded by cfg.Workers.
func FetchRange(ctx context.Context, fetcher TraceFetcher, startBlock, endBlock uint64, cfg FetchConfig, logger log.Logger) ([]LifecycleEvent, error) {
	if startBlock > endBlock {
		return nil, fmt.Errorf("invalid range: start block %d above end block %d", startBlock, endBlock)
	}

	blocks := endBlock - startBlock + 1
	perBlock := make([][]LifecycleEvent, blocks)

	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(-1) * 4
	}

	var fetched atomic.Uint64
	logEvery := time.NewTicker(30 * time.Second)
	defer logEvery.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := uint64(0); i < blocks; i++ {
		i := i
		blockNum := startBlock + i
		g.Go(func() error {
			traces, err := fetcher.BlockTraces(gctx, blockNum)
			if err != nil {
				if cfg.SkipFailedBlocks {
					logger.Warn("[fetch] skipping block", "block", blockNum, "err", err)
					return nil
				}
				return err
			}
			perBlock[i] = ClassifyBlock(traces, blockNum)

			n := fetched.Add(1)
			select {
			case <-logEvery.C:
				logger.Info("[fetch] tracing blocks", "done", n, "total", blocks)
			default:
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var events []LifecycleEvent
	for _, evs := range perBlock {
		events = append(events, evs...)
	}
	return events, nil
}
