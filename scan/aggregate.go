package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	libcommon "github.com/ledgerwatch/erigon-lib/common"
)

// OutputFileName is the fixed result artifact, written to the process
// working directory.
const OutputFileName = "reinitialized_contracts.json"

// Aggregate merges flagged address lists into the final result: sorted by
// address bytes, duplicates removed. Deterministic for a given input
// multiset regardless of the order matches were discovered in.
func Aggregate(groups ...[]libcommon.Address) []libcommon.Address {
	var total int
	for _, g := range groups {
		total += len(g)
	}
	merged := make([]libcommon.Address, 0, total)
	for _, g := range groups {
		merged = append(merged, g...)
	}
	slices.SortFunc(merged, func(a, b libcommon.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(merged)
}

// WriteResult serializes addresses as a JSON array of 0x-prefixed hex
// strings and writes the file in a single call. An empty result writes a
// valid empty array, never null.
func WriteResult(path string, addrs []libcommon.Address) error {
	if addrs == nil {
		addrs = []libcommon.Address{}
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
