package ledger

// Entry placement uses round-robin striping: entry e is written to the
// writeQuorum consecutive replica slots starting at slot e mod ensembleSize.
// This must reproduce the exact placement used when entries were written;
// any divergence makes verification report false positives or negatives.

// WriteSet returns the replica slots that store the given entry, in
// write order.
func WriteSet(entry EntryID, ensembleSize, writeQuorum int) []int {
	slots := make([]int, writeQuorum)

	for j := 0; j < writeQuorum; j++ {
		slots[j] = int((int64(entry) + int64(j)) % int64(ensembleSize))
	}

	return slots
}

// SlotStoresEntry reports whether the replica at the given slot index
// stores the entry.
func SlotStoresEntry(slot int, entry EntryID, ensembleSize, writeQuorum int) bool {
	base := int(int64(entry) % int64(ensembleSize))
	offset := (slot - base + ensembleSize) % ensembleSize

	return offset < writeQuorum
}
