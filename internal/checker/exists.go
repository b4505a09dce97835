package checker

import (
	"sync/atomic"

	"LedgerGuard/internal/ledger"
)

// ExistsCallback receives the outcome of an existence probe. exists is
// true when any replica answered with something other than "no such
// entry" or "no such ledger". Any such answer suggests the entry was
// written, even if it cannot be read back now.
type ExistsCallback func(rc ledger.ResultCode, exists bool)

// entryExistsTracker fans the write-quorum probe reads into one answer.
// It deliberately waits for every completion rather than short-circuiting
// on the first "may exist" signal, so the countdown always accounts for
// all issued reads; the callback carries the last received result code.
type entryExistsTracker struct {
	remaining atomic.Int32 // remaining counts outstanding probe reads
	mayExist  atomic.Bool  // mayExist latches any non-missing answer
	cb        ExistsCallback
}

// readComplete handles one probe read completion.
func (t *entryExistsTracker) readComplete(rc ledger.ResultCode, _ int64, _ ledger.EntryID, _ []byte) {
	if rc != ledger.CodeNoSuchEntry && rc != ledger.CodeNoSuchLedger {
		t.mayExist.Store(true)
	}

	if t.remaining.Add(-1) == 0 {
		t.cb(rc, t.mayExist.Load())
	}
}

// probeEntryExists asks every replica in the entry's write set whether the
// entry was ever written. Used to resolve the ambiguous tail of a ledger
// whose last-add-confirmed id cannot be trusted.
func (c *Checker) probeEntryExists(md *ledger.Metadata, ensemble []ledger.BookieID,
	entry ledger.EntryID, cb ExistsCallback) {

	writeSet := ledger.WriteSet(entry, len(ensemble), md.WriteQuorum)

	t := &entryExistsTracker{cb: cb}
	t.remaining.Store(int32(len(writeSet)))

	for _, slot := range writeSet {
		c.client.ReadEntry(ensemble[slot], md.LedgerID, entry, t.readComplete)
	}
}
