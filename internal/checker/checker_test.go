package checker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"LedgerGuard/internal/ledger"
)

// mockClient serves reads from an in-memory entry table, completing each
// callback on its own goroutine like a real client would.
type mockClient struct {
	mu     sync.Mutex
	stored map[ledger.BookieID]map[ledger.EntryID]struct{}
	forced map[ledger.BookieID]ledger.ResultCode // forced overrides the table
	reads  []mockRead
}

type mockRead struct {
	addr  ledger.BookieID
	entry ledger.EntryID
}

func newMockClient() *mockClient {
	return &mockClient{
		stored: make(map[ledger.BookieID]map[ledger.EntryID]struct{}),
		forced: make(map[ledger.BookieID]ledger.ResultCode),
	}
}

// storeRange marks entries [from, to] as present on the bookie.
func (m *mockClient) storeRange(addr ledger.BookieID, from, to ledger.EntryID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stored[addr] == nil {
		m.stored[addr] = make(map[ledger.EntryID]struct{})
	}

	for e := from; e <= to; e++ {
		m.stored[addr][e] = struct{}{}
	}
}

// force makes every read against the bookie complete with the given code.
func (m *mockClient) force(addr ledger.BookieID, rc ledger.ResultCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.forced[addr] = rc
}

func (m *mockClient) ReadEntry(addr ledger.BookieID, ledgerID int64,
	entryID ledger.EntryID, cb ReadCallback) {

	m.mu.Lock()
	m.reads = append(m.reads, mockRead{addr: addr, entry: entryID})
	rc, forced := m.forced[addr]
	_, present := m.stored[addr][entryID]
	m.mu.Unlock()

	switch {
	case forced:
		go cb(rc, ledgerID, entryID, nil)
	case present:
		go cb(ledger.CodeOK, ledgerID, entryID, []byte("payload"))
	default:
		go cb(ledger.CodeNoSuchEntry, ledgerID, entryID, nil)
	}
}

// readLog returns a copy of all reads issued so far.
func (m *mockClient) readLog() []mockRead {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]mockRead, len(m.reads))
	copy(out, m.reads)

	return out
}

type checkResult struct {
	rc  ledger.ResultCode
	bad []*Fragment
}

// runCheck runs a sampled check and waits for its terminal callback.
func runCheck(t *testing.T, c *Checker, md *ledger.Metadata, percentage float64) checkResult {
	t.Helper()

	done := make(chan checkResult, 1)

	c.CheckLedgerSampled(md, percentage, func(rc ledger.ResultCode, bad []*Fragment) {
		done <- checkResult{rc: rc, bad: bad}
	})

	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("check timed out")
		return checkResult{}
	}
}

// twoSegmentMetadata builds a closed ledger whose ensemble changed once:
// entries 0-99 on {A, B}, entries 100-199 on {B, C}.
func twoSegmentMetadata() *ledger.Metadata {
	return &ledger.Metadata{
		LedgerID:      1,
		WriteQuorum:   2,
		AckQuorum:     2,
		Closed:        true,
		LastConfirmed: 199,
		Segments: []ledger.Segment{
			{FirstEntry: 0, Ensemble: []ledger.BookieID{"A", "B"}},
			{FirstEntry: 100, Ensemble: []ledger.BookieID{"B", "C"}},
		},
	}
}

// TestCheckLedger_AllPresent tests a fully replicated ledger.
func TestCheckLedger_AllPresent(t *testing.T) {
	client := newMockClient()
	client.storeRange("A", 0, 99)
	client.storeRange("B", 0, 199)
	client.storeRange("C", 100, 199)

	res := runCheck(t, New(client), twoSegmentMetadata(), 100)

	if res.rc != ledger.CodeOK {
		t.Fatalf("rc = %v, want OK", res.rc)
	}

	if len(res.bad) != 0 {
		t.Fatalf("bad = %v, want none", res.bad)
	}
}

// TestCheckLedger_Repeated tests that checking an unchanged healthy
// ledger is idempotent: every pass comes back clean.
func TestCheckLedger_Repeated(t *testing.T) {
	client := newMockClient()
	client.storeRange("A", 0, 99)
	client.storeRange("B", 0, 199)
	client.storeRange("C", 100, 199)

	c := New(client)
	md := twoSegmentMetadata()

	for i := 0; i < 3; i++ {
		res := runCheck(t, c, md, 100)
		if res.rc != ledger.CodeOK || len(res.bad) != 0 {
			t.Fatalf("pass %d: rc = %v bad = %v, want clean", i, res.rc, res.bad)
		}
	}
}

// TestCheckLedger_MissingRange tests that a bookie missing its share of a
// segment is reported as exactly that segment's fragment.
func TestCheckLedger_MissingRange(t *testing.T) {
	client := newMockClient()
	client.storeRange("A", 0, 99)
	client.storeRange("B", 0, 199)
	// C lost everything.

	res := runCheck(t, New(client), twoSegmentMetadata(), 100)

	if res.rc != ledger.CodeOK {
		t.Fatalf("rc = %v, want OK", res.rc)
	}

	if len(res.bad) != 1 {
		t.Fatalf("bad = %v, want exactly one fragment", res.bad)
	}

	f := res.bad[0]
	if f.Address() != "C" || f.First != 100 || f.Last != 199 {
		t.Fatalf("bad fragment = %s, want range [100,199] on C", f)
	}
}

// TestCheckLedgerSampled_Decomposition tests that the ensemble history
// decomposes into one fragment per replica per segment. Forcing every read
// to fail makes the bad set enumerate the full decomposition.
func TestCheckLedgerSampled_Decomposition(t *testing.T) {
	client := newMockClient()
	for _, b := range []ledger.BookieID{"A", "B", "C"} {
		client.force(b, ledger.CodeReadError)
	}

	res := runCheck(t, New(client), twoSegmentMetadata(), 100)

	if res.rc != ledger.CodeOK {
		t.Fatalf("rc = %v, want OK", res.rc)
	}

	want := map[string]bool{
		"A[0,99]":    true,
		"B[0,99]":    true,
		"B[100,199]": true,
		"C[100,199]": true,
	}

	if len(res.bad) != len(want) {
		t.Fatalf("bad has %d fragments, want %d: %v", len(res.bad), len(want), res.bad)
	}

	for _, f := range res.bad {
		key := fmt.Sprintf("%s[%d,%d]", f.Address(), f.First, f.Last)
		if !want[key] {
			t.Fatalf("unexpected bad fragment %s", f)
		}

		delete(want, key)
	}
}

// TestCheckLedgerSampled_SkipsUnwrittenTail tests that a closed ledger's
// final segment is skipped when the confirmed id never reached it.
func TestCheckLedgerSampled_SkipsUnwrittenTail(t *testing.T) {
	client := newMockClient()
	for _, b := range []ledger.BookieID{"A", "B", "C", "D"} {
		client.force(b, ledger.CodeReadError)
	}

	md := &ledger.Metadata{
		LedgerID:      2,
		WriteQuorum:   2,
		AckQuorum:     2,
		Closed:        true,
		LastConfirmed: 50,
		Segments: []ledger.Segment{
			{FirstEntry: 0, Ensemble: []ledger.BookieID{"A", "B"}},
			{FirstEntry: 100, Ensemble: []ledger.BookieID{"C", "D"}},
		},
	}

	res := runCheck(t, New(client), md, 100)

	if res.rc != ledger.CodeOK {
		t.Fatalf("rc = %v, want OK", res.rc)
	}

	if len(res.bad) != 2 {
		t.Fatalf("bad = %v, want the two fragments of the first segment", res.bad)
	}

	for _, f := range res.bad {
		if f.First != 0 || f.Last != 99 {
			t.Fatalf("bad fragment %s outside the first segment", f)
		}

		if addr := f.Address(); addr != "A" && addr != "B" {
			t.Fatalf("bad fragment %s on unexpected bookie", f)
		}
	}
}

// TestCheckLedgerSampled_TailProbeNegative tests that an open ledger with
// no confirmed entries resolves through the existence probe: all replicas
// answering "no such entry" means the tail was never written.
func TestCheckLedgerSampled_TailProbeNegative(t *testing.T) {
	client := newMockClient()

	md := &ledger.Metadata{
		LedgerID:      3,
		WriteQuorum:   2,
		AckQuorum:     2,
		LastConfirmed: ledger.InvalidEntryID,
		Segments: []ledger.Segment{
			{FirstEntry: 0, Ensemble: []ledger.BookieID{"A", "B", "C"}},
		},
	}

	res := runCheck(t, New(client), md, 100)

	if res.rc != ledger.CodeOK || len(res.bad) != 0 {
		t.Fatalf("rc = %v bad = %v, want OK with no bad fragments", res.rc, res.bad)
	}

	// The probe asks exactly the write set of entry 0: slots 0 and 1.
	reads := client.readLog()
	if len(reads) != 2 {
		t.Fatalf("reads = %v, want exactly the two probe reads", reads)
	}

	for _, r := range reads {
		if r.entry != 0 || (r.addr != "A" && r.addr != "B") {
			t.Fatalf("unexpected read %+v", r)
		}
	}
}

// TestCheckLedgerSampled_TailProbePositive tests that any replica holding
// the first tail entry forces the tail fragments into the check.
func TestCheckLedgerSampled_TailProbePositive(t *testing.T) {
	client := newMockClient()
	client.storeRange("A", 0, 0)
	// B should hold entry 0 too but lost it.

	md := &ledger.Metadata{
		LedgerID:      4,
		WriteQuorum:   2,
		AckQuorum:     2,
		LastConfirmed: ledger.InvalidEntryID,
		Segments: []ledger.Segment{
			{FirstEntry: 0, Ensemble: []ledger.BookieID{"A", "B", "C"}},
		},
	}

	res := runCheck(t, New(client), md, 100)

	if res.rc != ledger.CodeOK {
		t.Fatalf("rc = %v, want OK", res.rc)
	}

	if len(res.bad) != 1 || res.bad[0].Address() != "B" {
		t.Fatalf("bad = %v, want exactly B's fragment", res.bad)
	}
}

// TestCheckLedger_ClientClosed tests that a closed client short-circuits
// the check with exactly one terminal callback.
func TestCheckLedger_ClientClosed(t *testing.T) {
	client := newMockClient()
	for _, b := range []ledger.BookieID{"A", "B", "C"} {
		client.force(b, ledger.CodeClientClosed)
	}

	var calls atomic.Int32
	done := make(chan checkResult, 8)

	New(client).CheckLedger(twoSegmentMetadata(), func(rc ledger.ResultCode, bad []*Fragment) {
		calls.Add(1)
		done <- checkResult{rc: rc, bad: bad}
	})

	var res checkResult
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("check timed out")
	}

	if res.rc != ledger.CodeClientClosed {
		t.Fatalf("rc = %v, want ClientClosed", res.rc)
	}

	// Give any stray completions a chance to misfire the callback again.
	time.Sleep(100 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Fatalf("terminal callback fired %d times, want once", n)
	}
}

// TestCheckLedgerSampled_NoSegments tests that an empty ensemble history
// completes immediately without issuing reads.
func TestCheckLedgerSampled_NoSegments(t *testing.T) {
	client := newMockClient()

	res := runCheck(t, New(client), &ledger.Metadata{LedgerID: 5, WriteQuorum: 1, AckQuorum: 1}, 100)

	if res.rc != ledger.CodeOK || len(res.bad) != 0 {
		t.Fatalf("rc = %v bad = %v, want OK with no bad fragments", res.rc, res.bad)
	}

	if reads := client.readLog(); len(reads) != 0 {
		t.Fatalf("reads = %v, want none", reads)
	}
}

// TestProbeEntryExists_ErrorLatchesMayExist tests that a failing replica
// counts as "may exist": only unanimous missing answers clear the tail.
func TestProbeEntryExists_ErrorLatchesMayExist(t *testing.T) {
	client := newMockClient()
	client.force("B", ledger.CodeReadError)

	md := &ledger.Metadata{LedgerID: 6, WriteQuorum: 2, AckQuorum: 2}
	ensemble := []ledger.BookieID{"A", "B", "C"}

	done := make(chan bool, 1)

	New(client).probeEntryExists(md, ensemble, 0, func(_ ledger.ResultCode, exists bool) {
		done <- exists
	})

	select {
	case exists := <-done:
		if !exists {
			t.Fatal("read error should latch may-exist")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("probe timed out")
	}
}
