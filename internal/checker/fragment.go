package checker

import (
	"fmt"

	"LedgerGuard/internal/ledger"
)

// Fragment is one replica's view of one ledger segment: the range
// [First, Last] restricted to the entries that the striping scheme places
// on the replica at Slot. A fragment is a pure computation over metadata;
// it is immutable once constructed and lives for one check only.
type Fragment struct {
	LedgerID    int64             // LedgerID identifies the ledger being checked
	First       ledger.EntryID    // First is the first entry id of the segment range
	Last        ledger.EntryID    // Last is the last entry id of the segment range
	Slot        int               // Slot is the replica slot index within the ensemble
	Ensemble    []ledger.BookieID // Ensemble is the segment's replica addresses
	WriteQuorum int               // WriteQuorum is the striping width

	firstStored ledger.EntryID // firstStored is the lowest stored entry id, or invalid
	lastStored  ledger.EntryID // lastStored is the highest stored entry id, or invalid
}

// NewFragment builds a fragment and precomputes its stored-range bounds.
func NewFragment(ledgerID int64, first, last ledger.EntryID, slot int,
	ensemble []ledger.BookieID, writeQuorum int) *Fragment {

	f := &Fragment{
		LedgerID:    ledgerID,
		First:       first,
		Last:        last,
		Slot:        slot,
		Ensemble:    ensemble,
		WriteQuorum: writeQuorum,
		firstStored: ledger.InvalidEntryID,
		lastStored:  ledger.InvalidEntryID,
	}

	// The striping pattern repeats with period len(ensemble), so scanning
	// one period from either end finds the bound if it exists.
	period := ledger.EntryID(len(ensemble))

	for e := first; e <= last && e < first+period; e++ {
		if f.IsStoredEntryID(e) {
			f.firstStored = e
			break
		}
	}

	for e := last; e >= first && e > last-period; e-- {
		if f.IsStoredEntryID(e) {
			f.lastStored = e
			break
		}
	}

	return f
}

// Address returns the storage node this fragment lives on.
func (f *Fragment) Address() ledger.BookieID {
	return f.Ensemble[f.Slot]
}

// IsStoredEntryID reports whether the striping scheme places the entry on
// this fragment's replica slot.
func (f *Fragment) IsStoredEntryID(entry ledger.EntryID) bool {
	return ledger.SlotStoresEntry(f.Slot, entry, len(f.Ensemble), f.WriteQuorum)
}

// FirstStoredEntryID returns the lowest entry id in [First, Last] stored
// on this slot, or InvalidEntryID if the slot stores nothing in the range.
func (f *Fragment) FirstStoredEntryID() ledger.EntryID {
	return f.firstStored
}

// LastStoredEntryID returns the highest entry id in [First, Last] stored
// on this slot, or InvalidEntryID if the slot stores nothing in the range.
func (f *Fragment) LastStoredEntryID() ledger.EntryID {
	return f.lastStored
}

func (f *Fragment) String() string {
	return fmt.Sprintf("fragment(ledger=%d range=[%d,%d] slot=%d bookie=%s)",
		f.LedgerID, f.First, f.Last, f.Slot, f.Address())
}
