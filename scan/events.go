package scan

import (
	libcommon "github.com/ledgerwatch/erigon-lib/common"

	"github.com/ledgerwatch/reinitscan/tracerpc"
)

// EventKind distinguishes the two lifecycle operations the scanner tracks.
type EventKind uint8

const (
	SelfDestruct EventKind = iota
	Create
)

func (k EventKind) String() string {
	switch k {
	case SelfDestruct:
		return "selfdestruct"
	case Create:
		return "create"
	}
	return "unknown"
}

// LifecycleEvent is one contract lifecycle operation observed in a block's
// traces: code removed from an address, or code deployed to one.
type LifecycleEvent struct {
	Kind        EventKind
	Address     libcommon.Address
	BlockNumber uint64
	TxPosition  uint64
}

// InvalidTxSet collects hashes of transactions whose traces reported an
// execution error while one block's batch is classified. Events belonging
// to those transactions are suppressed. Scoped to a single block.
type InvalidTxSet map[libcommon.Hash]struct{}

// ClassifyTrace reduces one raw trace entry to at most one lifecycle event.
//
// A trace carrying an execution error marks its whole transaction invalid
// and yields nothing; selfdestruct and create traces of transactions already
// marked invalid are dropped. The invalid set only affects records consumed
// after the error record: a batch is classified in node order, so an error
// surfacing later in the batch does not recall events already emitted for
// the same transaction. Traces of any other shape, such as calls, rewards,
// creates without a result or records missing hash or position, yield
// nothing; informational-only entries are expected and not an error.
func ClassifyTrace(trace *tracerpc.Trace, blockNum uint64, invalid InvalidTxSet) (LifecycleEvent, bool) {
	if trace.TransactionHash == nil {
		return LifecycleEvent{}, false
	}
	txHash := *trace.TransactionHash

	if trace.Error != "" {
		invalid[txHash] = struct{}{}
		return LifecycleEvent{}, false
	}
	if _, bad := invalid[txHash]; bad {
		return LifecycleEvent{}, false
	}
	if trace.TransactionPosition == nil {
		return LifecycleEvent{}, false
	}

	switch trace.Type {
	case tracerpc.TypeSuicide:
		if trace.Action == nil || trace.Action.Address == nil {
			return LifecycleEvent{}, false
		}
		return LifecycleEvent{
			Kind:        SelfDestruct,
			Address:     *trace.Action.Address,
			BlockNumber: blockNum,
			TxPosition:  *trace.TransactionPosition,
		}, true
	case tracerpc.TypeCreate:
		if trace.Result == nil || trace.Result.Address == nil {
			return LifecycleEvent{}, false
		}
		return LifecycleEvent{
			Kind:        Create,
			Address:     *trace.Result.Address,
			BlockNumber: blockNum,
			TxPosition:  *trace.TransactionPosition,
		}, true
	}
	return LifecycleEvent{}, false
}

// ClassifyBlock reduces one block's trace batch to its lifecycle events,
// carrying the invalid-transaction set across the whole batch.
func ClassifyBlock(traces []tracerpc.Trace, blockNum uint64) []LifecycleEvent {
	var events []LifecycleEvent
	invalid := make(InvalidTxSet)
	for i := range traces {
		if ev, ok := ClassifyTrace(&traces[i], blockNum, invalid); ok {
			events = append(events, ev)
		}
	}
	return events
}
