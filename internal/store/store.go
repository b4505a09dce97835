package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	// defaultSyncInterval is the interval between WAL syncs.
	defaultSyncInterval = 100 * time.Millisecond

	// digestSize is the size of the blake3 digest framing each entry.
	digestSize = 32
)

// Key layout:
//
//	e/<8B ledgerID><8B entryID> -> [32B blake3(payload)] [zstd(payload)]
//	l/<8B ledgerID>             -> (empty) ledger presence marker
var (
	entryPrefix  = []byte("e/")
	ledgerPrefix = []byte("l/")
)

var (
	// ErrNoSuchEntry means the ledger is known but the entry is not stored.
	ErrNoSuchEntry = errors.New("no such entry")

	// ErrNoSuchLedger means the ledger has never been written here.
	ErrNoSuchLedger = errors.New("no such ledger")

	// ErrCorrupt means the stored payload failed digest verification.
	ErrCorrupt = errors.New("entry corrupt: digest mismatch")
)

// Store persists ledger entries for one bookie, backed by Pebble. Writes
// are non-blocking (NoSync) and a background goroutine periodically syncs
// the WAL. Payloads are zstd-compressed and framed with a blake3 digest
// that is re-verified on every read.
type Store struct {
	db       *pebble.DB    // db is the underlying Pebble database
	enc      *zstd.Encoder // enc compresses entry payloads
	dec      *zstd.Decoder // dec decompresses entry payloads
	stopSync chan struct{} // stopSync signals the sync goroutine to stop
	wg       sync.WaitGroup
}

// Open creates or opens a Store at the given path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		enc:      enc,
		dec:      dec,
		stopSync: make(chan struct{}),
	}

	s.startSyncLoop()

	return s, nil
}

// PutEntry stores one entry payload. The entry frame and the ledger
// presence marker are committed atomically.
func (s *Store) PutEntry(ledgerID, entryID int64, payload []byte) error {
	digest := blake3.Sum256(payload)

	frame := make([]byte, digestSize, digestSize+len(payload))
	copy(frame, digest[:])
	frame = s.enc.EncodeAll(payload, frame)

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(entryKey(ledgerID, entryID), frame, nil); err != nil {
		return err
	}

	if err := batch.Set(ledgerKey(ledgerID), nil, nil); err != nil {
		return err
	}

	return batch.Commit(pebble.NoSync)
}

// GetEntry retrieves one entry payload, verifying its digest. Returns
// ErrNoSuchLedger if the ledger was never written here, ErrNoSuchEntry if
// the ledger is known but the entry is missing, and ErrCorrupt if the
// stored frame fails verification.
func (s *Store) GetEntry(ledgerID, entryID int64) ([]byte, error) {
	frame, closer, err := s.db.Get(entryKey(ledgerID, entryID))
	if err == pebble.ErrNotFound {
		known, lerr := s.HasLedger(ledgerID)
		if lerr != nil {
			return nil, lerr
		}

		if !known {
			return nil, ErrNoSuchLedger
		}

		return nil, ErrNoSuchEntry
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if len(frame) < digestSize {
		return nil, ErrCorrupt
	}

	payload, err := s.dec.DecodeAll(frame[digestSize:], nil)
	if err != nil {
		return nil, ErrCorrupt
	}

	digest := blake3.Sum256(payload)
	if !bytes.Equal(digest[:], frame[:digestSize]) {
		return nil, ErrCorrupt
	}

	return payload, nil
}

// HasLedger reports whether any entry of the ledger was ever stored here.
func (s *Store) HasLedger(ledgerID int64) (bool, error) {
	_, closer, err := s.db.Get(ledgerKey(ledgerID))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	closer.Close()

	return true, nil
}

// Close stops the sync goroutine and closes the database, syncing once
// more for durability.
func (s *Store) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	s.enc.Close()
	s.dec.Close()

	return s.db.Close()
}

// entryKey builds the key for one entry.
func entryKey(ledgerID, entryID int64) []byte {
	key := make([]byte, len(entryPrefix)+16)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], uint64(ledgerID))
	binary.BigEndian.PutUint64(key[len(entryPrefix)+8:], uint64(entryID))

	return key
}

// ledgerKey builds the presence-marker key for one ledger.
func ledgerKey(ledgerID int64) []byte {
	key := make([]byte, len(ledgerPrefix)+8)
	copy(key, ledgerPrefix)
	binary.BigEndian.PutUint64(key[len(ledgerPrefix):], uint64(ledgerID))

	return key
}

// startSyncLoop starts the background goroutine that periodically syncs
// the WAL.
func (s *Store) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(defaultSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Store) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
