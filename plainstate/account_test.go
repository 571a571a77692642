package plainstate

import (
	"testing"

	"github.com/holiman/uint256"
	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/stretchr/testify/require"
)

func TestAccountStorageRoundtrip(t *testing.T) {
	acc := Account{
		Nonce:       983,
		Balance:     *uint256.NewInt(87234098123),
		Incarnation: 3,
		CodeHash:    libcommon.HexToHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"),
	}

	buf := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(buf)

	var decoded Account
	require.NoError(t, decoded.DecodeForStorage(buf))
	require.Equal(t, acc.Nonce, decoded.Nonce)
	require.Equal(t, acc.Balance, decoded.Balance)
	require.Equal(t, acc.Incarnation, decoded.Incarnation)
	require.Equal(t, acc.CodeHash, decoded.CodeHash)
}

func TestAccountStorageRoundtripEmptyCode(t *testing.T) {
	acc := Account{
		Nonce:   1,
		Balance: *uint256.NewInt(1000000000000000000),
	}

	buf := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(buf)

	var decoded Account
	require.NoError(t, decoded.DecodeForStorage(buf))
	require.Equal(t, uint64(1), decoded.Nonce)
	require.Equal(t, acc.Balance, decoded.Balance)
	require.Zero(t, decoded.Incarnation)
	require.True(t, decoded.IsEmptyCodeHash())
}

func TestAccountDecodeEmptyValue(t *testing.T) {
	var acc Account
	require.NoError(t, acc.DecodeForStorage(nil))
	require.Zero(t, acc.Nonce)
	require.True(t, acc.Balance.IsZero())
	require.Zero(t, acc.Incarnation)
	require.True(t, acc.IsEmptyCodeHash())
}

func TestAccountDecodeFieldLayout(t *testing.T) {
	// fieldset 0b101: nonce and incarnation present, single byte each
	enc := []byte{0x05, 0x01, 0x09, 0x01, 0x02}

	var acc Account
	require.NoError(t, acc.DecodeForStorage(enc))
	require.Equal(t, uint64(9), acc.Nonce)
	require.True(t, acc.Balance.IsZero())
	require.Equal(t, uint64(2), acc.Incarnation)
}

func TestAccountDecodeTruncated(t *testing.T) {
	// nonce field claims 8 bytes, only 2 present
	require.Error(t, new(Account).DecodeForStorage([]byte{0x01, 0x08, 0xaa, 0xbb}))
	// balance field claims 4 bytes, none present
	require.Error(t, new(Account).DecodeForStorage([]byte{0x02, 0x04}))
}

func TestAccountDecodeRejectsBadCodeHashLength(t *testing.T) {
	err := new(Account).DecodeForStorage([]byte{0x08, 0x1f})
	require.Error(t, err)
	require.Contains(t, err.Error(), "32 bytes")
}

func TestAccountEncodingLength(t *testing.T) {
	var zero Account
	require.Equal(t, uint(1), zero.EncodingLengthForStorage())

	withNonce := Account{Nonce: 300}
	// fieldset + length byte + two nonce bytes
	require.Equal(t, uint(4), withNonce.EncodingLengthForStorage())
}
