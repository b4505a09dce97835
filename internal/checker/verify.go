package checker

import (
	"errors"
	"math/rand"
	"sort"
	"sync/atomic"

	"LedgerGuard/internal/ledger"
)

// ErrInvalidFragment marks a fragment whose stored-range bounds contradict
// each other: no first stored entry but a last stored entry.
var ErrInvalidFragment = errors.New("invalid fragment: stored-range bounds contradict")

// FragmentCallback receives the verdict for one fragment. It is invoked
// exactly once per verification, possibly on a completion goroutine.
type FragmentCallback func(rc ledger.ResultCode, f *Fragment)

// readManyTracker fans a batch of entry reads into a single fragment
// verdict. The first non-OK completion latches the verdict immediately;
// otherwise the verdict is OK when the countdown reaches zero. The done
// guard keeps the callback exactly-once under concurrent completions.
type readManyTracker struct {
	remaining atomic.Int64 // remaining counts outstanding reads
	done      atomic.Bool  // done guards the one-shot callback
	fragment  *Fragment
	cb        FragmentCallback
}

func newReadManyTracker(reads int64, f *Fragment, cb FragmentCallback) *readManyTracker {
	t := &readManyTracker{fragment: f, cb: cb}
	t.remaining.Store(reads)

	return t
}

// readComplete handles one entry read completion.
func (t *readManyTracker) readComplete(rc ledger.ResultCode, _ int64, _ ledger.EntryID, _ []byte) {
	if rc == ledger.CodeOK {
		if t.remaining.Add(-1) == 0 && t.done.CompareAndSwap(false, true) {
			t.cb(ledger.CodeOK, t.fragment)
		}

		return
	}

	if t.done.CompareAndSwap(false, true) {
		t.cb(rc, t.fragment)
	}
}

// verifyFragment reads a sample (or all) of the fragment's stored entries
// and delivers one verdict through cb. A fragment that stores nothing is
// vacuously OK and issues no reads. Returns ErrInvalidFragment without
// invoking cb when the stored bounds contradict each other.
func (c *Checker) verifyFragment(f *Fragment, percentage float64, cb FragmentCallback) error {
	firstStored := f.FirstStoredEntryID()
	lastStored := f.LastStoredEntryID()

	if firstStored == ledger.InvalidEntryID {
		if lastStored != ledger.InvalidEntryID {
			return ErrInvalidFragment
		}

		cb(ledger.CodeOK, f)

		return nil
	}

	if firstStored == lastStored {
		t := newReadManyTracker(1, f, cb)
		c.client.ReadEntry(f.Address(), f.LedgerID, firstStored, t.readComplete)

		return nil
	}

	entries := selectEntries(f, firstStored, lastStored, percentage)
	t := newReadManyTracker(int64(len(entries)), f, cb)

	for _, entry := range entries {
		c.client.ReadEntry(f.Address(), f.LedgerID, entry, t.readComplete)
	}

	return nil
}

// selectEntries picks the entry ids to verify. Below 100% it partitions
// the stored range into equal-width buckets and takes one random pick per
// bucket, keeping only picks the slot actually stores; the first and last
// stored entries are always included. At 100% and above it returns every
// stored entry in the range.
func selectEntries(f *Fragment, firstStored, lastStored ledger.EntryID, percentage float64) []ledger.EntryID {
	length := int64(lastStored-firstStored) + 1
	count := int64(float64(length) * percentage / 100.0)

	picked := make(map[ledger.EntryID]struct{})

	if count < length {
		if count != 0 {
			bucket := ledger.EntryID(length / count)

			for idx := firstStored; idx < lastStored-bucket-1; idx += bucket {
				candidate := idx + ledger.EntryID(rand.Int63n(int64(bucket)))

				if f.IsStoredEntryID(candidate) {
					picked[candidate] = struct{}{}
				}
			}
		}

		picked[firstStored] = struct{}{}
		picked[lastStored] = struct{}{}
	} else {
		for e := firstStored; e <= lastStored; e++ {
			if f.IsStoredEntryID(e) {
				picked[e] = struct{}{}
			}
		}
	}

	entries := make([]ledger.EntryID, 0, len(picked))
	for e := range picked {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i] < entries[j] })

	return entries
}
