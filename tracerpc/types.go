package tracerpc

import (
	libcommon "github.com/ledgerwatch/erigon-lib/common"
	"github.com/ledgerwatch/erigon-lib/common/hexutil"
	"github.com/ledgerwatch/erigon-lib/common/hexutility"
)

// Trace type tags served by trace_block.
const (
	TypeCall    = "call"
	TypeCreate  = "create"
	TypeSuicide = "suicide"
	TypeReward  = "reward"
)

// TraceAction merges the per-type action objects of a parity trace entry.
// The node populates only the fields matching the trace's Type: suicide
// actions carry Address/RefundAddress/Balance, create actions carry
// From/Init/Value, call actions carry From/To/Input.
type TraceAction struct {
	From          *libcommon.Address `json:"from,omitempty"`
	To            *libcommon.Address `json:"to,omitempty"`
	CallType      string             `json:"callType,omitempty"`
	Input         hexutility.Bytes   `json:"input,omitempty"`
	Init          hexutility.Bytes   `json:"init,omitempty"`
	Gas           *hexutil.Big       `json:"gas,omitempty"`
	Value         *hexutil.Big       `json:"value,omitempty"`
	Address       *libcommon.Address `json:"address,omitempty"`
	RefundAddress *libcommon.Address `json:"refundAddress,omitempty"`
	Balance       *hexutil.Big       `json:"balance,omitempty"`
	Author        *libcommon.Address `json:"author,omitempty"`
	RewardType    string             `json:"rewardType,omitempty"`
}

// TraceResult is the result object of a successful trace entry. Create
// traces report the deployed contract address here; a trace that errored
// has no result at all.
type TraceResult struct {
	GasUsed *hexutil.Big       `json:"gasUsed,omitempty"`
	Code    hexutility.Bytes   `json:"code,omitempty"`
	Output  hexutility.Bytes   `json:"output,omitempty"`
	Address *libcommon.Address `json:"address,omitempty"`
}

// Trace is one per-transaction entry of a trace_block response.
type Trace struct {
	Action              *TraceAction    `json:"action"`
	BlockHash           *libcommon.Hash `json:"blockHash,omitempty"`
	BlockNumber         *uint64         `json:"blockNumber,omitempty"`
	Error               string          `json:"error,omitempty"`
	Result              *TraceResult    `json:"result"`
	Subtraces           int             `json:"subtraces"`
	TraceAddress        []int           `json:"traceAddress"`
	TransactionHash     *libcommon.Hash `json:"transactionHash,omitempty"`
	TransactionPosition *uint64         `json:"transactionPosition,omitempty"`
	Type                string          `json:"type"`
}
