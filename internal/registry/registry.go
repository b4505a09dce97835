package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"LedgerGuard/internal/ledger"
)

// metaPrefix namespaces metadata records.
//
//	m/<8B ledgerID> -> encoded metadata
var metaPrefix = []byte("m/")

// ErrNotFound means the registry holds no metadata for the ledger.
var ErrNotFound = errors.New("ledger metadata not found")

// Registry persists ledger metadata, backed by Pebble. Metadata records
// are small and written rarely, so every write is synced.
type Registry struct {
	db *pebble.DB // db is the underlying Pebble database
}

// Open creates or opens a Registry at the given path.
func Open(path string) (*Registry, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &Registry{db: db}, nil
}

// Save validates and stores one ledger's metadata.
func (r *Registry) Save(md *ledger.Metadata) error {
	if err := md.Validate(); err != nil {
		return fmt.Errorf("invalid metadata for ledger %d: %w", md.LedgerID, err)
	}

	return r.db.Set(metaKey(md.LedgerID), ledger.EncodeMetadata(md), pebble.Sync)
}

// Load retrieves one ledger's metadata.
func (r *Registry) Load(ledgerID int64) (*ledger.Metadata, error) {
	data, closer, err := r.db.Get(metaKey(ledgerID))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return ledger.DecodeMetadata(data)
}

// List returns the ids of all registered ledgers in ascending order.
func (r *Registry) List() ([]int64, error) {
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: metaPrefix,
		UpperBound: []byte("m0"), // first key past the "m/" prefix
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []int64

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(metaPrefix)+8 {
			continue
		}

		ids = append(ids, int64(binary.BigEndian.Uint64(key[len(metaPrefix):])))
	}

	return ids, iter.Error()
}

// Close closes the registry.
func (r *Registry) Close() error {
	return r.db.Close()
}

// metaKey builds the key for one ledger's metadata.
func metaKey(ledgerID int64) []byte {
	key := make([]byte, len(metaPrefix)+8)
	copy(key, metaPrefix)
	binary.BigEndian.PutUint64(key[len(metaPrefix):], uint64(ledgerID))

	return key
}
