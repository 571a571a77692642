package scan

import (
	libcommon "github.com/ledgerwatch/erigon-lib/common"
)

// Partition splits an event list into self-destructs and creates, keeping
// the relative order inside each class.
func Partition(events []LifecycleEvent) (destructs, creates []LifecycleEvent) {
	for _, ev := range events {
		switch ev.Kind {
		case SelfDestruct:
			destructs = append(destructs, ev)
		case Create:
			creates = append(creates, ev)
		}
	}
	return destructs, creates
}

// Reconcile flags every address destroyed and then recreated inside the
// scanned window. A destruct matches a create at the same address when the
// create sits later in the same block or in any strictly later block; a
// create earlier in the same block, or in an earlier block, never matches.
//
// The pairwise scan is O(|S|*|C|), bounded by the number of selfdestruct and
// create opcodes in the range rather than transaction volume. The result may
// repeat an address once per matching pair; Aggregate dedups.
func Reconcile(destructs, creates []LifecycleEvent) []libcommon.Address {
	var flagged []libcommon.Address
	for _, s := range destructs {
		for _, c := range creates {
			if s.Address != c.Address {
				continue
			}
			recreatedSameBlock := s.BlockNumber == c.BlockNumber && s.TxPosition < c.TxPosition
			recreatedLaterBlock := s.BlockNumber < c.BlockNumber
			if recreatedSameBlock || recreatedLaterBlock {
				flagged = append(flagged, s.Address)
			}
		}
	}
	return flagged
}
