package plainstate

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ledgerwatch/erigon-lib/chain"
	"github.com/ledgerwatch/erigon-lib/kv"
	"github.com/ledgerwatch/erigon-lib/kv/mdbx"
	"github.com/ledgerwatch/log/v3"
)

// Store is a read-only handle over a node's chaindata database, scoped to
// what the scanner needs: point lookups in the plain state table and the
// stored chain config. It never opens the database for writing.
type Store struct {
	db     kv.RoDB
	logger log.Logger
}

// Open opens the chaindata database at dbPath read-only. staticFilesPath is
// only validated: plain state lives entirely in the key-value store, but a
// missing snapshots dir means the path configuration is wrong and the run
// should not start.
func Open(dbPath, staticFilesPath string, logger log.Logger) (*Store, error) {
	if fi, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("db path: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("db path %s is not a directory", dbPath)
	}
	if fi, err := os.Stat(staticFilesPath); err != nil {
		return nil, fmt.Errorf("static files path: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("static files path %s is not a directory", staticFilesPath)
	}

	db, err := mdbx.NewMDBX(logger).Path(dbPath).Label(kv.ChainDB).Readonly().Open()
	if err != nil {
		return nil, fmt.Errorf("open chaindata at %s: %w", dbPath, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// NewStore wraps an already opened database. Used by tests; Close stays
// with whoever opened the database.
func NewStore(db kv.RoDB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Close() {
	s.db.Close()
}

// ChainConfig reads the chain config stored under the canonical genesis
// hash.
func (s *Store) ChainConfig(ctx context.Context) (*chain.Config, error) {
	var cfg chain.Config
	if err := s.db.View(ctx, func(tx kv.Tx) error {
		genesisHash, err := tx.GetOne(kv.HeaderCanonical, encodeBlockNumber(0))
		if err != nil {
			return fmt.Errorf("read canonical genesis hash: %w", err)
		}
		if len(genesisHash) == 0 {
			return errors.New("no canonical genesis hash in db")
		}
		data, err := tx.GetOne(kv.ConfigTable, genesisHash)
		if err != nil {
			return fmt.Errorf("read chain config: %w", err)
		}
		if len(data) == 0 {
			return errors.New("no chain config stored for genesis hash")
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("unmarshal chain config: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StateTableSize reports the on-disk size of the plain state table.
func (s *Store) StateTableSize(ctx context.Context) (uint64, error) {
	var size uint64
	if err := s.db.View(ctx, func(tx kv.Tx) error {
		var err error
		size, err = tx.BucketSize(kv.PlainState)
		return err
	}); err != nil {
		return 0, err
	}
	return size, nil
}

// encodeBlockNumber encodes a block number as big endian uint64, the key
// format of the canonical headers table.
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}
