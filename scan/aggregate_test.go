package scan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/stretchr/testify/require"
)

func TestAggregateSortsAndDedups(t *testing.T) {
	a, b, c := testAddr(0x01), testAddr(0x02), testAddr(0x03)

	result := Aggregate(
		[]libcommon.Address{c, a, c},
		[]libcommon.Address{b, a},
	)
	require.Equal(t, []libcommon.Address{a, b, c}, result)
}

func TestAggregateIsDeterministic(t *testing.T) {
	groups := [][]libcommon.Address{
		{testAddr(9), testAddr(1)},
		{testAddr(5), testAddr(9), testAddr(1)},
	}
	first := Aggregate(groups...)
	second := Aggregate(groups[1], groups[0])
	require.Equal(t, first, second)
}

func TestAggregateEmpty(t *testing.T) {
	require.Empty(t, Aggregate())
	require.Empty(t, Aggregate(nil, nil))
}

func TestWriteResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), OutputFileName)
	addrs := []libcommon.Address{testAddr(0xaa), testAddr(0xbb)}

	require.NoError(t, WriteResult(path, addrs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `["0x00000000000000000000000000000000000000aa","0x00000000000000000000000000000000000000bb"]`, string(data))

	var roundtrip []libcommon.Address
	require.NoError(t, json.Unmarshal(data, &roundtrip))
	require.Equal(t, addrs, roundtrip)
}

func TestWriteResultEmptyIsValidArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), OutputFileName)

	require.NoError(t, WriteResult(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}
