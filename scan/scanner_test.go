package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/reinitscan/tracerpc"
)

type checkerFunc func(ctx context.Context, addrs []libcommon.Address, workers int) ([]libcommon.Address, error)

func (f checkerFunc) CheckExisting(ctx context.Context, addrs []libcommon.Address, workers int) ([]libcommon.Address, error) {
	return f(ctx, addrs, workers)
}

func noneInState(context.Context, []libcommon.Address, int) ([]libcommon.Address, error) {
	return nil, nil
}

func tracesByBlock(blocks map[uint64][]tracerpc.Trace) fetcherFunc {
	return func(_ context.Context, blockNum uint64) ([]tracerpc.Trace, error) {
		return blocks[blockNum], nil
	}
}

func TestScannerInWindowReinitialization(t *testing.T) {
	addr := testAddr(0xaa)
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {
			suicideTrace(testHash(1), 1, addr),
			createTrace(testHash(2), 3, addr),
		},
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checkerFunc(noneInState), Config{
		StartBlock: 5, EndBlock: 5, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []libcommon.Address{addr}, result)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.JSONEq(t, `["0x00000000000000000000000000000000000000aa"]`, string(data))
}

func TestScannerDestructWithoutRecreation(t *testing.T) {
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {suicideTrace(testHash(1), 1, testAddr(0xbb))},
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checkerFunc(noneInState), Config{
		StartBlock: 5, EndBlock: 5, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

func TestScannerFallbackCatchesOutOfWindowRecreation(t *testing.T) {
	// destructed at block 100, recreated past the scanned range: only the
	// persistent-state check can see it
	addr := testAddr(0xcc)
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		100: {suicideTrace(testHash(1), 0, addr)},
	})
	checker := checkerFunc(func(_ context.Context, addrs []libcommon.Address, _ int) ([]libcommon.Address, error) {
		require.Equal(t, []libcommon.Address{addr}, addrs)
		return []libcommon.Address{addr}, nil
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checker, Config{
		StartBlock: 100, EndBlock: 110, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []libcommon.Address{addr}, result)
}

func TestScannerChecksEveryDestructedAddress(t *testing.T) {
	// in-window matches are no excuse to skip the state check; the store
	// sees every destructed address, duplicates included
	addr := testAddr(0xdd)
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {suicideTrace(testHash(1), 0, addr), createTrace(testHash(2), 1, addr)},
		6: {suicideTrace(testHash(3), 0, addr)},
	})

	var checked []libcommon.Address
	checker := checkerFunc(func(_ context.Context, addrs []libcommon.Address, _ int) ([]libcommon.Address, error) {
		checked = addrs
		return nil, nil
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checker, Config{
		StartBlock: 5, EndBlock: 6, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []libcommon.Address{addr, addr}, checked)
	require.Equal(t, []libcommon.Address{addr}, result)
}

func TestScannerMergesAndDedupsBothPhases(t *testing.T) {
	inWindow := testAddr(0x01)
	fallbackOnly := testAddr(0x02)
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {
			suicideTrace(testHash(1), 0, inWindow),
			suicideTrace(testHash(2), 1, fallbackOnly),
			createTrace(testHash(3), 2, inWindow),
		},
	})
	checker := checkerFunc(func(_ context.Context, addrs []libcommon.Address, _ int) ([]libcommon.Address, error) {
		// both still exist in state, one already flagged in-window
		return []libcommon.Address{inWindow, fallbackOnly}, nil
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checker, Config{
		StartBlock: 5, EndBlock: 5, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []libcommon.Address{inWindow, fallbackOnly}, result)
}

func TestScannerRunIsDeterministic(t *testing.T) {
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {suicideTrace(testHash(1), 0, testAddr(9)), createTrace(testHash(2), 1, testAddr(9))},
		6: {suicideTrace(testHash(3), 0, testAddr(3)), createTrace(testHash(4), 1, testAddr(3))},
	})

	dir := t.TempDir()
	run := func(name string) []byte {
		outPath := filepath.Join(dir, name)
		scanner := NewScanner(fetcher, checkerFunc(noneInState), Config{
			StartBlock: 5, EndBlock: 6, FetchWorkers: 4, OutputPath: outPath,
		}, log.New())
		_, err := scanner.Run(context.Background())
		require.NoError(t, err)
		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		return data
	}

	require.Equal(t, run("first.json"), run("second.json"))
}

func TestScannerCheckerFailureWritesNothing(t *testing.T) {
	fetcher := tracesByBlock(map[uint64][]tracerpc.Trace{
		5: {suicideTrace(testHash(1), 0, testAddr(1))},
	})
	boom := errors.New("cursor: broken")
	checker := checkerFunc(func(context.Context, []libcommon.Address, int) ([]libcommon.Address, error) {
		return nil, boom
	})

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checker, Config{
		StartBlock: 5, EndBlock: 5, OutputPath: outPath,
	}, log.New())

	_, err := scanner.Run(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = os.Stat(outPath)
	require.True(t, os.IsNotExist(err))
}

func TestScannerEmptyRange(t *testing.T) {
	fetcher := tracesByBlock(nil)

	outPath := filepath.Join(t.TempDir(), OutputFileName)
	scanner := NewScanner(fetcher, checkerFunc(noneInState), Config{
		StartBlock: 1000, EndBlock: 1010, OutputPath: outPath,
	}, log.New())

	result, err := scanner.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}
