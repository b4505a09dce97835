package registry

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"LedgerGuard/internal/ledger"
)

// newTestRegistry creates a temporary registry.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	dir, err := os.MkdirTemp("", "registry_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	t.Cleanup(func() { os.RemoveAll(dir) })

	r, err := Open(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}

	t.Cleanup(func() { r.Close() })

	return r
}

// testMetadata builds valid metadata for the given ledger id.
func testMetadata(id int64) *ledger.Metadata {
	return &ledger.Metadata{
		LedgerID:      id,
		WriteQuorum:   2,
		AckQuorum:     2,
		Closed:        true,
		LastConfirmed: 10,
		Segments: []ledger.Segment{
			{FirstEntry: 0, Ensemble: []ledger.BookieID{"127.0.0.1:9001", "127.0.0.1:9002"}},
		},
	}
}

// TestSaveLoad tests the metadata round trip.
func TestSaveLoad(t *testing.T) {
	r := newTestRegistry(t)
	md := testMetadata(1)

	if err := r.Save(md); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.Load(1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !reflect.DeepEqual(md, got) {
		t.Fatalf("loaded = %+v, want %+v", got, md)
	}
}

// TestLoad_NotFound tests the unknown-ledger case.
func TestLoad_NotFound(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Load(404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestSave_Invalid tests that invalid metadata never reaches disk.
func TestSave_Invalid(t *testing.T) {
	r := newTestRegistry(t)

	md := testMetadata(2)
	md.Segments = nil

	if err := r.Save(md); !errors.Is(err, ledger.ErrNoSegments) {
		t.Fatalf("err = %v, want ErrNoSegments", err)
	}

	if _, err := r.Load(2); !errors.Is(err, ErrNotFound) {
		t.Fatal("invalid metadata should not have been saved")
	}
}

// TestList tests ascending id enumeration.
func TestList(t *testing.T) {
	r := newTestRegistry(t)

	for _, id := range []int64{7, 1, 3} {
		if err := r.Save(testMetadata(id)); err != nil {
			t.Fatalf("save %d: %v", id, err)
		}
	}

	ids, err := r.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if !reflect.DeepEqual(ids, []int64{1, 3, 7}) {
		t.Fatalf("ids = %v, want [1 3 7]", ids)
	}
}
