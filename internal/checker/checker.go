package checker

import (
	"sync"
	"sync/atomic"

	"LedgerGuard/internal/ledger"
	"LedgerGuard/internal/logger"
)

// ReadCallback receives the completion of one entry read. The client
// invokes it exactly once per read, on an arbitrary goroutine.
type ReadCallback func(rc ledger.ResultCode, ledgerID int64, entryID ledger.EntryID, data []byte)

// ReadClient is the asynchronous read boundary against storage nodes.
// ReadEntry must return immediately; retry and timeout policy belong to
// the implementation, never to the checker.
type ReadClient interface {
	ReadEntry(addr ledger.BookieID, ledgerID int64, entryID ledger.EntryID, cb ReadCallback)
}

// CheckCallback receives the terminal result of a ledger check: CodeOK
// with the accumulated bad fragments, or CodeClientClosed if the read
// client shut down mid-check.
type CheckCallback func(rc ledger.ResultCode, bad []*Fragment)

// Checker audits a ledger's fragments by reading entries directly from
// the storage nodes. It keeps no state across invocations.
type Checker struct {
	client ReadClient
}

// New creates a Checker on top of the given read client.
func New(client ReadClient) *Checker {
	return &Checker{client: client}
}

// ledgerTracker fans all per-fragment verdicts into the terminal callback.
// ClientClosed short-circuits with whatever bad fragments accumulated so
// far; the done guard absorbs any completions arriving afterwards.
type ledgerTracker struct {
	remaining atomic.Int64 // remaining counts outstanding fragment verdicts
	done      atomic.Bool  // done guards the one-shot terminal callback

	mu  sync.Mutex  // mu protects bad
	bad []*Fragment // bad accumulates fragments with non-OK verdicts

	cb CheckCallback
}

// fragmentComplete handles one fragment verdict.
func (t *ledgerTracker) fragmentComplete(rc ledger.ResultCode, f *Fragment) {
	if rc == ledger.CodeClientClosed {
		if t.done.CompareAndSwap(false, true) {
			t.cb(ledger.CodeClientClosed, t.snapshot())
		}

		return
	}

	if rc != ledger.CodeOK {
		t.mu.Lock()
		t.bad = append(t.bad, f)
		t.mu.Unlock()
	}

	if t.remaining.Add(-1) == 0 && t.done.CompareAndSwap(false, true) {
		t.cb(ledger.CodeOK, t.snapshot())
	}
}

func (t *ledgerTracker) snapshot() []*Fragment {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Fragment, len(t.bad))
	copy(out, t.bad)

	return out
}

// CheckLedger verifies every stored entry of every fragment and reports
// the bad fragments through cb. Equivalent to CheckLedgerSampled at 100%.
func (c *Checker) CheckLedger(md *ledger.Metadata, cb CheckCallback) {
	c.CheckLedgerSampled(md, 100, cb)
}

// CheckLedgerSampled decomposes the ledger's ensemble history into
// fragments and verifies a sample of each. It returns immediately; cb
// fires exactly once when all verdicts are in, or earlier if the read
// client closes.
func (c *Checker) CheckLedgerSampled(md *ledger.Metadata, percentage float64, cb CheckCallback) {
	fragments := make([]*Fragment, 0, len(md.Segments)*md.WriteQuorum)

	// Every segment except the last is bounded by its successor's start.
	for i := 0; i+1 < len(md.Segments); i++ {
		seg := md.Segments[i]
		last := md.Segments[i+1].FirstEntry - 1

		for slot := range seg.Ensemble {
			fragments = append(fragments,
				NewFragment(md.LedgerID, seg.FirstEntry, last, slot, seg.Ensemble, md.WriteQuorum))
		}
	}

	if len(md.Segments) == 0 {
		c.checkFragments(fragments, percentage, cb)
		return
	}

	// The final segment is the hard case. A closed ledger whose
	// last-add-confirmed id never reached this segment was opened but
	// never written: nothing to check. An open ledger with enough
	// confirmed entries is checked normally. But when last-add-confirmed
	// cannot be trusted (below or at the segment start), the only way to
	// know whether the segment holds data is to ask the replicas that
	// should have its first entry: all "no such entry" means it was never
	// written, anything else means it may exist and must be checked.
	seg := md.Segments[len(md.Segments)-1]

	if md.Closed && md.LastConfirmed < seg.FirstEntry {
		c.checkFragments(fragments, percentage, cb)
		return
	}

	lastEntry := md.LastConfirmed
	if lastEntry < seg.FirstEntry {
		lastEntry = seg.FirstEntry
	}

	finalFragments := make([]*Fragment, 0, len(seg.Ensemble))
	for slot := range seg.Ensemble {
		finalFragments = append(finalFragments,
			NewFragment(md.LedgerID, seg.FirstEntry, lastEntry, slot, seg.Ensemble, md.WriteQuorum))
	}

	if lastEntry == seg.FirstEntry {
		c.probeEntryExists(md, seg.Ensemble, seg.FirstEntry, func(rc ledger.ResultCode, exists bool) {
			if exists {
				fragments = append(fragments, finalFragments...)
			}

			logger.Debug("tail probe resolved",
				"ledger", md.LedgerID, "entry", seg.FirstEntry, "rc", rc, "exists", exists)

			c.checkFragments(fragments, percentage, cb)
		})

		return
	}

	fragments = append(fragments, finalFragments...)
	c.checkFragments(fragments, percentage, cb)
}

// checkFragments verifies each fragment and aggregates the verdicts. An
// empty fragment set completes immediately with an empty bad set.
func (c *Checker) checkFragments(fragments []*Fragment, percentage float64, cb CheckCallback) {
	if len(fragments) == 0 {
		cb(ledger.CodeOK, nil)
		return
	}

	t := &ledgerTracker{cb: cb}
	t.remaining.Store(int64(len(fragments)))

	for _, f := range fragments {
		logger.Debug("checking fragment", "fragment", f)

		if err := c.verifyFragment(f, percentage, t.fragmentComplete); err != nil {
			// Internal contradiction in the fragment's stored bounds.
			// Reported as a bad fragment; the rest of the check goes on.
			logger.Error("invalid fragment", "fragment", f, "error", err)
			t.fragmentComplete(ledger.CodeInvalidFragment, f)
		}
	}
}
