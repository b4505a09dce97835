package checker

import (
	"testing"

	"LedgerGuard/internal/ledger"
)

// TestNewFragment_StoredBounds tests the precomputed stored-range bounds
// under striping.
func TestNewFragment_StoredBounds(t *testing.T) {
	ensemble := []ledger.BookieID{"a", "b", "c", "d", "e"}

	// Slot 0 with quorum 2 stores entries whose id mod 5 is 0 or 4.
	f := NewFragment(1, 0, 9, 0, ensemble, 2)

	if got := f.FirstStoredEntryID(); got != 0 {
		t.Fatalf("first stored = %d, want 0", got)
	}

	if got := f.LastStoredEntryID(); got != 9 {
		t.Fatalf("last stored = %d, want 9", got)
	}

	// Slot 2 stores entries whose id mod 5 is 1 or 2: 1, 2, 6, 7.
	f = NewFragment(1, 0, 9, 2, ensemble, 2)

	if got := f.FirstStoredEntryID(); got != 1 {
		t.Fatalf("first stored = %d, want 1", got)
	}

	if got := f.LastStoredEntryID(); got != 7 {
		t.Fatalf("last stored = %d, want 7", got)
	}
}

// TestNewFragment_EmptySlot tests a fragment whose slot stores nothing in
// the range.
func TestNewFragment_EmptySlot(t *testing.T) {
	ensemble := []ledger.BookieID{"a", "b", "c"}

	// Entry 1 with quorum 1 lives on slot 1 only.
	f := NewFragment(1, 1, 1, 0, ensemble, 1)

	if got := f.FirstStoredEntryID(); got != ledger.InvalidEntryID {
		t.Fatalf("first stored = %d, want invalid", got)
	}

	if got := f.LastStoredEntryID(); got != ledger.InvalidEntryID {
		t.Fatalf("last stored = %d, want invalid", got)
	}
}

// TestFragment_IsStoredEntryID tests wrap-around membership.
func TestFragment_IsStoredEntryID(t *testing.T) {
	ensemble := []ledger.BookieID{"a", "b", "c"}

	// Entry 2 with quorum 2 lands on slots 2 and 0.
	f := NewFragment(1, 0, 5, 0, ensemble, 2)

	if !f.IsStoredEntryID(2) {
		t.Fatal("slot 0 should store entry 2 via wrap-around")
	}

	if f.IsStoredEntryID(1) {
		t.Fatal("slot 0 should not store entry 1")
	}
}

// TestFragment_Address tests the slot-to-bookie resolution.
func TestFragment_Address(t *testing.T) {
	ensemble := []ledger.BookieID{"a", "b", "c"}
	f := NewFragment(1, 0, 5, 1, ensemble, 2)

	if got := f.Address(); got != "b" {
		t.Fatalf("address = %s, want b", got)
	}
}
