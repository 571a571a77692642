package plainstate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/ledgerwatch/erigon-lib/kv"
	"golang.org/x/sync/errgroup"
)

// Addresses are looked up in chunks so workers amortize cursor reuse without
// one worker hogging the whole list.
const checkChunkSize = 10

// CheckExisting looks up every address in the plain state table and returns
// the ones that exist there now. A self-destructed address that is present
// in current state must have been recreated at some point, even if the
// recreating transaction is outside the scanned range.
//
// The lookup fans out over a bounded worker pool. Every worker runs its own
// read transaction and cursor bound to the same snapshot; matches are
// collected per worker and merged once the pool drains. Any cursor open or
// read failure aborts the whole check.
func (s *Store) CheckExisting(ctx context.Context, addrs []libcommon.Address, workers int) ([]libcommon.Address, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}

	chunks := make(chan []libcommon.Address)
	found := make([][]libcommon.Address, workers)

	var checked atomic.Uint64
	logEvery := time.NewTicker(30 * time.Second)
	defer logEvery.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		for start := 0; start < len(addrs); start += checkChunkSize {
			end := min(start+checkChunkSize, len(addrs))
			select {
			case chunks <- addrs[start:end]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return s.db.View(gctx, func(tx kv.Tx) error {
				c, err := tx.Cursor(kv.PlainState)
				if err != nil {
					return fmt.Errorf("open plain state cursor: %w", err)
				}
				defer c.Close()

				for chunk := range chunks {
					for _, addr := range chunk {
						k, v, err := c.SeekExact(addr[:])
						if err != nil {
							return fmt.Errorf("seek account %x: %w", addr, err)
						}
						if k == nil {
							continue
						}
						var acc Account
						if err := acc.DecodeForStorage(v); err != nil {
							return fmt.Errorf("decode account %x: %w", addr, err)
						}
						s.logger.Debug("destructed account present in state", "addr", addr,
							"nonce", acc.Nonce, "incarnation", acc.Incarnation)
						found[worker] = append(found[worker], addr)
					}

					n := checked.Add(uint64(len(chunk)))
					select {
					case <-logEvery.C:
						s.logger.Info("[fallback] checking plain state", "done", n, "total", len(addrs))
					default:
					}
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []libcommon.Address
	for _, f := range found {
		out = append(out, f...)
	}
	return out, nil
}
