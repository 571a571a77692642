package plainstate

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
	libcommon "github.com/ledgerwatch/erigon-lib/common"
)

// Keccak256 of empty input, the code hash of accounts without code.
var emptyCodeHash = libcommon.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// Account is an account record as stored in the plain state table: a
// fieldset byte followed by length-prefixed nonce, balance, incarnation and
// code hash fields, in that order, each present only when its fieldset bit
// is set. An incarnation above one means the account was destructed and
// recreated at least once.
type Account struct {
	Nonce       uint64
	Balance     uint256.Int
	Incarnation uint64
	CodeHash    libcommon.Hash
}

func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == emptyCodeHash || a.CodeHash == (libcommon.Hash{})
}

func (a *Account) DecodeForStorage(enc []byte) error {
	a.Nonce = 0
	a.Incarnation = 0
	a.Balance.Clear()
	a.CodeHash = emptyCodeHash

	if len(enc) == 0 {
		return nil
	}

	fieldSet := enc[0]
	pos := 1

	if fieldSet&1 > 0 {
		n := int(enc[pos])
		if len(enc) < pos+n+1 {
			return fmt.Errorf("nonce field truncated: have %d bytes, field wants %d", len(enc)-pos-1, n)
		}
		a.Nonce = bytesToUint64(enc[pos+1 : pos+n+1])
		pos += n + 1
	}

	if fieldSet&2 > 0 {
		n := int(enc[pos])
		if len(enc) < pos+n+1 {
			return fmt.Errorf("balance field truncated: have %d bytes, field wants %d", len(enc)-pos-1, n)
		}
		a.Balance.SetBytes(enc[pos+1 : pos+n+1])
		pos += n + 1
	}

	if fieldSet&4 > 0 {
		n := int(enc[pos])
		if len(enc) < pos+n+1 {
			return fmt.Errorf("incarnation field truncated: have %d bytes, field wants %d", len(enc)-pos-1, n)
		}
		a.Incarnation = bytesToUint64(enc[pos+1 : pos+n+1])
		pos += n + 1
	}

	if fieldSet&8 > 0 {
		n := int(enc[pos])
		if n != 32 {
			return fmt.Errorf("code hash should be 32 bytes long, got %d", n)
		}
		if len(enc) < pos+n+1 {
			return fmt.Errorf("code hash field truncated: have %d bytes, field wants %d", len(enc)-pos-1, n)
		}
		a.CodeHash.SetBytes(enc[pos+1 : pos+n+1])
	}

	return nil
}

func (a *Account) EncodingLengthForStorage() uint {
	var structLength uint = 1 // fieldset byte

	if a.Nonce > 0 {
		structLength += uint((bits.Len64(a.Nonce)+7)/8) + 1
	}
	if !a.Balance.IsZero() {
		structLength += uint(a.Balance.ByteLen()) + 1
	}
	if a.Incarnation > 0 {
		structLength += uint((bits.Len64(a.Incarnation)+7)/8) + 1
	}
	if !a.IsEmptyCodeHash() {
		structLength += 33
	}

	return structLength
}

func (a *Account) EncodeForStorage(buffer []byte) {
	var fieldSet = 0
	var pos = 1

	if a.Nonce > 0 {
		fieldSet = 1
		nonceBytes := (bits.Len64(a.Nonce) + 7) / 8
		buffer[pos] = byte(nonceBytes)
		nonce := a.Nonce
		for i := nonceBytes; i > 0; i-- {
			buffer[pos+i] = byte(nonce)
			nonce >>= 8
		}
		pos += nonceBytes + 1
	}

	if !a.Balance.IsZero() {
		fieldSet |= 2
		balanceBytes := a.Balance.ByteLen()
		buffer[pos] = byte(balanceBytes)
		pos++
		a.Balance.WriteToSlice(buffer[pos : pos+balanceBytes])
		pos += balanceBytes
	}

	if a.Incarnation > 0 {
		fieldSet |= 4
		incarnationBytes := (bits.Len64(a.Incarnation) + 7) / 8
		buffer[pos] = byte(incarnationBytes)
		incarnation := a.Incarnation
		for i := incarnationBytes; i > 0; i-- {
			buffer[pos+i] = byte(incarnation)
			incarnation >>= 8
		}
		pos += incarnationBytes + 1
	}

	if !a.IsEmptyCodeHash() {
		fieldSet |= 8
		buffer[pos] = 32
		copy(buffer[pos+1:], a.CodeHash.Bytes())
	}

	buffer[0] = byte(fieldSet)
}

func bytesToUint64(buf []byte) (x uint64) {
	for i, b := range buf {
		x = x<<8 + uint64(b)
		if i == 7 {
			return
		}
	}
	return
}
