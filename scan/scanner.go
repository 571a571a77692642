package scan

import (
	"context"
	"time"

	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/ledgerwatch/log/v3"
)

// StateChecker is the persistent-state fallback lookup.
// *plainstate.Store satisfies it.
type StateChecker interface {
	CheckExisting(ctx context.Context, addrs []libcommon.Address, workers int) ([]libcommon.Address, error)
}

// Config carries the scan range and the knobs of both concurrent phases.
type Config struct {
	StartBlock uint64
	EndBlock   uint64

	FetchWorkers     int
	SkipFailedBlocks bool
	StateWorkers     int

	// OutputPath defaults to OutputFileName in the working directory.
	OutputPath string
}

// Scanner wires the trace source and the state store into the detection
// pipeline.
type Scanner struct {
	fetcher TraceFetcher
	checker StateChecker
	cfg     Config
	logger  log.Logger
}

func NewScanner(fetcher TraceFetcher, checker StateChecker, cfg Config, logger log.Logger) *Scanner {
	if cfg.OutputPath == "" {
		cfg.OutputPath = OutputFileName
	}
	return &Scanner{fetcher: fetcher, checker: checker, cfg: cfg, logger: logger}
}

// Run executes the pipeline and writes the result artifact.
//
// Phase one traces the whole range and reconciles in-window destruct/create
// pairs. Phase two starts only after phase one fully completes: every
// self-destructed address is checked against persistent state, catching
// recreations whose deploy sits outside the range. The output file is
// written once at the end; any failure aborts with nothing written.
func (s *Scanner) Run(ctx context.Context) ([]libcommon.Address, error) {
	started := time.Now()
	s.logger.Info("[scan] starting", "from", s.cfg.StartBlock, "to", s.cfg.EndBlock)

	events, err := FetchRange(ctx, s.fetcher, s.cfg.StartBlock, s.cfg.EndBlock, FetchConfig{
		Workers:          s.cfg.FetchWorkers,
		SkipFailedBlocks: s.cfg.SkipFailedBlocks,
	}, s.logger)
	if err != nil {
		return nil, err
	}
	destructs, creates := Partition(events)
	s.logger.Info("[scan] traces classified", "blocks", s.cfg.EndBlock-s.cfg.StartBlock+1,
		"selfdestructs", len(destructs), "creates", len(creates), "in", time.Since(started))

	phase := time.Now()
	inWindow := Reconcile(destructs, creates)
	s.logger.Info("[scan] in-window pairs reconciled", "flagged", len(inWindow), "in", time.Since(phase))

	phase = time.Now()
	addrs := make([]libcommon.Address, 0, len(destructs))
	for _, ev := range destructs {
		addrs = append(addrs, ev.Address)
	}
	persisted, err := s.checker.CheckExisting(ctx, addrs, s.cfg.StateWorkers)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[fallback] persistent state checked", "addresses", len(addrs),
		"flagged", len(persisted), "in", time.Since(phase))

	result := Aggregate(inWindow, persisted)
	if err := WriteResult(s.cfg.OutputPath, result); err != nil {
		return nil, err
	}
	s.logger.Info("[scan] done", "reinitialized", len(result),
		"output", s.cfg.OutputPath, "total", time.Since(started))
	return result, nil
}
